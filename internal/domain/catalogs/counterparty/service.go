package counterparty

import (
	"context"

	"gatepass/internal/core/apperror"
	"gatepass/internal/core/id"
	"gatepass/internal/core/tx"
	"gatepass/internal/domain"
	"gatepass/pkg/sequence"
)

// Service provides business logic for the Counterparty catalog.
// Uses composition with domain.CatalogService for common CRUD operations.
type Service struct {
	*domain.CatalogService[*Counterparty]
	repo Repository
}

// NewService creates a new Counterparty service.
func NewService(repo Repository, txManager tx.Manager, codes *sequence.Service) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Counterparty]{
		Repo:       repo,
		TxManager:  txManager,
		Codes:      codes,
		CodeConfig: sequence.DefaultConfig("C"),
		EntityName: "counterparty",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
	}

	base.Hooks().On(domain.BeforeCreate, svc.checkTaxID)
	base.Hooks().On(domain.BeforeUpdate, svc.checkTaxID)

	return svc
}

// checkTaxID enforces fiscal number uniqueness across counterparties.
func (s *Service) checkTaxID(ctx context.Context, cp *Counterparty) error {
	if cp.TaxID == nil || *cp.TaxID == "" {
		return nil
	}

	exists, err := s.taxIDExists(ctx, *cp.TaxID, cp.ID)
	if err != nil {
		return err
	}
	if exists {
		return apperror.NewConflict("counterparty with this tax ID already exists").
			WithDetail("tax_id", *cp.TaxID)
	}
	return nil
}

// FindByTaxID retrieves a counterparty by fiscal identification number.
func (s *Service) FindByTaxID(ctx context.Context, taxID string) (*Counterparty, error) {
	return s.repo.FindByTaxID(ctx, taxID)
}

func (s *Service) taxIDExists(ctx context.Context, taxID string, excludeID id.ID) (bool, error) {
	existing, err := s.repo.FindByTaxID(ctx, taxID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return existing.ID != excludeID, nil
}
