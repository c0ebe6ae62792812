package dto

import (
	"time"

	"gatepass/internal/core/entity"
)

// --- Stock Movement DTOs ---

// StockMovementResponse is one journal row of the stock ledger.
type StockMovementResponse struct {
	LineID      string              `json:"lineId"`
	RecorderID  string              `json:"recorderId"`
	ProductID   string              `json:"productId"`
	Kind        entity.MovementKind `json:"kind"`
	Delta       float64             `json:"delta"`
	StockBefore float64             `json:"stockBefore"`
	StockAfter  float64             `json:"stockAfter"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// FromStockMovement creates response DTO from a journal row.
func FromStockMovement(m entity.StockMovement) StockMovementResponse {
	return StockMovementResponse{
		LineID:      m.LineID.String(),
		RecorderID:  m.RecorderID.String(),
		ProductID:   m.ProductID.String(),
		Kind:        m.Kind,
		Delta:       m.Delta.Float64(),
		StockBefore: m.StockBefore.Float64(),
		StockAfter:  m.StockAfter.Float64(),
		CreatedAt:   m.CreatedAt,
	}
}

// FromStockMovements maps a slice of journal rows.
func FromStockMovements(movements []entity.StockMovement) []StockMovementResponse {
	out := make([]StockMovementResponse, len(movements))
	for i, m := range movements {
		out[i] = FromStockMovement(m)
	}
	return out
}

// StockLevelResponse reports current stock for a product.
type StockLevelResponse struct {
	ProductID string  `json:"productId"`
	Stock     float64 `json:"stock"`
}
