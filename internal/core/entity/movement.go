package entity

import (
	"time"

	"gatepass/internal/core/id"
	"gatepass/internal/core/types"
)

// MovementKind defines the direction of a stock movement.
type MovementKind string

const (
	// MovementKindIssue decreases stock (goods leave inventory)
	MovementKindIssue MovementKind = "issue"
	// MovementKindReversal compensates a prior issue (voucher update/delete)
	MovementKindReversal MovementKind = "reversal"
)

// StockMovement is a journal row for a single ledger apply.
// Movements are immutable history - they are never updated in place.
type StockMovement struct {
	// LineID is unique identifier for this movement line (UUIDv7)
	LineID id.ID `db:"line_id" json:"lineId"`

	// RecorderID is the voucher that caused this movement
	RecorderID id.ID `db:"recorder_id" json:"recorderId"`

	// ProductID is the product whose stock changed
	ProductID id.ID `db:"product_id" json:"productId"`

	// Kind: issue or reversal
	Kind MovementKind `db:"kind" json:"kind"`

	// Delta is the signed quantity applied to stock
	Delta types.Quantity `db:"delta" json:"delta"`

	// StockBefore / StockAfter snapshot the product stock around the apply
	StockBefore types.Quantity `db:"stock_before" json:"stockBefore"`
	StockAfter  types.Quantity `db:"stock_after" json:"stockAfter"`

	// CreatedAt is when the movement was recorded
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewStockMovement creates a new stock movement with generated LineID.
// Kind is derived from the delta sign; delta must be nonzero, the ledger
// never journals zero-net changes.
func NewStockMovement(recorderID, productID id.ID, delta, before, after types.Quantity) StockMovement {
	kind := MovementKindIssue
	if delta > 0 {
		kind = MovementKindReversal
	}
	return StockMovement{
		LineID:      id.New(),
		RecorderID:  recorderID,
		ProductID:   productID,
		Kind:        kind,
		Delta:       delta,
		StockBefore: before,
		StockAfter:  after,
		CreatedAt:   time.Now().UTC(),
	}
}
