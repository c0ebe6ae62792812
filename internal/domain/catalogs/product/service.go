package product

import (
	"context"

	"gatepass/internal/core/apperror"
	"gatepass/internal/core/tx"
	"gatepass/internal/domain"
	"gatepass/internal/domain/ledger"
	"gatepass/pkg/sequence"
)

// Service provides business logic for the Product catalog.
// Uses composition with domain.CatalogService for common CRUD operations.
type Service struct {
	*domain.CatalogService[*Product]
	repo   Repository
	ledger *ledger.Service
}

// NewService creates a new Product service.
func NewService(repo Repository, txManager tx.Manager, codes *sequence.Service, ledgerSvc *ledger.Service) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Product]{
		Repo:       repo,
		TxManager:  txManager,
		Codes:      codes,
		CodeConfig: sequence.DefaultConfig("P"),
		EntityName: "product",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		ledger:         ledgerSvc,
	}

	base.Hooks().On(domain.BeforeDelete, svc.guardDelete)

	return svc
}

// guardDelete refuses to delete a product with movement history.
// Deleting it would orphan the journal and break voucher reverts.
func (s *Service) guardDelete(ctx context.Context, p *Product) error {
	movements, err := s.ledger.GetMovementHistory(ctx, p.ID, ledger.MovementFilter{Limit: 1})
	if err != nil {
		return err
	}
	if len(movements) > 0 {
		return apperror.NewConflict("product has stock movement history and cannot be deleted").
			WithDetail("product_id", p.ID.String())
	}
	return nil
}

// FindLowStock retrieves products at or below their reorder point.
func (s *Service) FindLowStock(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Product], error) {
	return s.repo.FindLowStock(ctx, filter)
}
