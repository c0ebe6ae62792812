package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"gatepass/internal/core/apperror"
	"gatepass/internal/domain/catalogs/counterparty"
	"gatepass/internal/infrastructure/storage/postgres"
)

const counterpartyTable = "cat_counterparties"

// CounterpartyRepo implements counterparty.Repository.
type CounterpartyRepo struct {
	*BaseCatalogRepo[*counterparty.Counterparty]
}

// NewCounterpartyRepo creates a new counterparty repository.
func NewCounterpartyRepo(txm *postgres.TxManager) *CounterpartyRepo {
	return &CounterpartyRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txm,
			counterpartyTable,
			"C",
			postgres.ExtractDBColumns[counterparty.Counterparty](),
			func() *counterparty.Counterparty { return &counterparty.Counterparty{} },
		),
	}
}

// FindByTaxID retrieves a counterparty by fiscal identification number.
func (r *CounterpartyRepo) FindByTaxID(ctx context.Context, taxID string) (*counterparty.Counterparty, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"tax_id": taxID}).
		Limit(1)

	cp, err := r.FindOne(ctx, q)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("counterparty", taxID)
		}
		return nil, err
	}
	return cp, nil
}
