// Package ledger provides the stock ledger: the single write path for
// product stock levels and the movement journal behind them.
package ledger

import (
	"context"
	"time"

	"gatepass/internal/core/entity"
	"gatepass/internal/core/id"
	"gatepass/internal/core/types"
)

// Repository defines persistence operations for the stock ledger.
type Repository interface {
	// Stock level operations

	// GetStock returns the current stock level for a product
	GetStock(ctx context.Context, productID id.ID) (types.Quantity, error)

	// GetStockForUpdate returns the stock level with a row lock.
	// Must be called within a transaction; the lock is held until commit.
	GetStockForUpdate(ctx context.Context, productID id.ID) (types.Quantity, error)

	// SaveStock writes the new stock level for a product
	SaveStock(ctx context.Context, productID id.ID, qty types.Quantity) error

	// Movement journal operations

	// CreateMovements batch inserts movements
	CreateMovements(ctx context.Context, movements []entity.StockMovement) error

	// GetMovementsByRecorder retrieves all movements recorded by a voucher,
	// oldest first
	GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error)

	// GetMovementHistory returns movement history for a product
	GetMovementHistory(ctx context.Context, productID id.ID, filter MovementFilter) ([]entity.StockMovement, error)
}

// MovementFilter for filtering movement history.
type MovementFilter struct {
	Kind     *entity.MovementKind
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}
