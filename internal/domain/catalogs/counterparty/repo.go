package counterparty

import (
	"context"

	"gatepass/internal/domain"
)

// Repository defines the interface for Counterparty persistence.
type Repository interface {
	domain.CatalogRepository[*Counterparty]

	// FindByTaxID retrieves a counterparty by fiscal identification number.
	FindByTaxID(ctx context.Context, taxID string) (*Counterparty, error)
}
