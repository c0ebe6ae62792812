// Package ledger_repo provides the PostgreSQL implementation of the stock
// ledger repository: product stock levels plus the movement journal.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"gatepass/internal/core/apperror"
	"gatepass/internal/core/entity"
	"gatepass/internal/core/id"
	"gatepass/internal/core/types"
	"gatepass/internal/domain/ledger"
	"gatepass/internal/infrastructure/storage/postgres"
)

const (
	productTable  = "cat_products"
	movementTable = "reg_stock_movements"
)

var movementCols = postgres.ExtractDBColumns[entity.StockMovement]()

// StockRepo stores stock levels on the product record and movements in a
// dedicated journal table.
type StockRepo struct {
	txm *postgres.TxManager
}

var _ ledger.Repository = (*StockRepo)(nil)

func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{txm: txm}
}

func (r *StockRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *StockRepo) querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

func (r *StockRepo) getStock(ctx context.Context, productID id.ID, lock bool) (types.Quantity, error) {
	q := r.builder().
		Select("stock").
		From(productTable).
		Where(squirrel.Eq{"id": productID})
	if lock {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var stock types.Quantity
	if err := pgxscan.Get(ctx, r.querier(ctx), &stock, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return 0, apperror.NewNotFound(productTable, productID.String())
		}
		return 0, fmt.Errorf("get stock: %w", err)
	}

	return stock, nil
}

// GetStock returns the current stock level for a product.
func (r *StockRepo) GetStock(ctx context.Context, productID id.ID) (types.Quantity, error) {
	return r.getStock(ctx, productID, false)
}

// GetStockForUpdate returns the stock level with a row lock.
// The lock is held until the surrounding transaction commits.
func (r *StockRepo) GetStockForUpdate(ctx context.Context, productID id.ID) (types.Quantity, error) {
	return r.getStock(ctx, productID, true)
}

// SaveStock writes the new stock level for a product.
func (r *StockRepo) SaveStock(ctx context.Context, productID id.ID, qty types.Quantity) error {
	q := r.builder().
		Update(productTable).
		Set("stock", qty).
		Where(squirrel.Eq{"id": productID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("save stock: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(productTable, productID.String())
	}

	return nil
}

// CreateMovements batch inserts journal rows.
func (r *StockRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	q := r.builder().
		Insert(movementTable).
		Columns(movementCols...)

	for _, m := range movements {
		data := postgres.StructToMap(&m)
		vals := make([]any, 0, len(movementCols))
		for _, col := range movementCols {
			vals = append(vals, data[col])
		}
		q = q.Values(vals...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}

	return nil
}

// GetMovementsByRecorder retrieves all movements recorded by one document,
// oldest first.
func (r *StockRepo) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	q := r.builder().
		Select(movementCols...).
		From(movementTable).
		Where(squirrel.Eq{"recorder_id": recorderID}).
		OrderBy("created_at ASC", "line_id ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.StockMovement
	if err := pgxscan.Select(ctx, r.querier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("get movements by recorder: %w", err)
	}

	return movements, nil
}

// GetMovementHistory returns movement history for a product, newest first.
func (r *StockRepo) GetMovementHistory(ctx context.Context, productID id.ID, filter ledger.MovementFilter) ([]entity.StockMovement, error) {
	q := r.builder().
		Select(movementCols...).
		From(movementTable).
		Where(squirrel.Eq{"product_id": productID})

	if filter.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *filter.Kind})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.ToDate})
	}

	q = q.OrderBy("created_at DESC", "line_id DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.StockMovement
	if err := pgxscan.Select(ctx, r.querier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("get movement history: %w", err)
	}

	return movements, nil
}
