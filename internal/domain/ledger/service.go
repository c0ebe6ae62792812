package ledger

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"gatepass/internal/core/apperror"
	"gatepass/internal/core/entity"
	"gatepass/internal/core/id"
	"gatepass/internal/core/types"
	"gatepass/pkg/logger"
)

// Delta is a signed stock change request for one product.
// Negative quantities issue stock out, positive quantities return it.
type Delta struct {
	ProductID id.ID
	Quantity  types.Quantity
}

// StockSnapshot captures product stock around a single apply.
type StockSnapshot struct {
	ProductID id.ID          `json:"productId"`
	Before    types.Quantity `json:"before"`
	After     types.Quantity `json:"after"`
	Delta     types.Quantity `json:"delta"`
}

// Service is the only component allowed to mutate stock levels.
// All methods must run inside a caller-managed transaction: row locks taken
// here are held until the surrounding transaction commits or rolls back.
type Service struct {
	repo Repository
}

// NewService creates a new stock ledger service.
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
	}
}

// Apply executes the given deltas against product stock, journaling one
// movement per product. Deltas for the same product are aggregated before
// locking so each product row is locked and written exactly once, and rows
// are locked in ascending product ID order, the same order the validator
// uses.
//
// Any delta that would drive stock below zero fails the whole batch with
// NegativeStock; the caller's transaction rollback undoes partial writes.
func (s *Service) Apply(ctx context.Context, recorderID id.ID, deltas []Delta) ([]StockSnapshot, error) {
	if id.IsNil(recorderID) {
		return nil, apperror.NewValidation("recorder_id is required")
	}

	deltas = AggregateDeltas(deltas)
	if len(deltas) == 0 {
		return nil, nil
	}

	snapshots := make([]StockSnapshot, 0, len(deltas))
	movements := make([]entity.StockMovement, 0, len(deltas))

	for _, d := range deltas {
		before, err := s.repo.GetStockForUpdate(ctx, d.ProductID)
		if err != nil {
			return nil, fmt.Errorf("lock stock for %s: %w", d.ProductID, err)
		}

		after := before + d.Quantity
		if after.IsNegative() {
			return nil, apperror.NewNegativeStock(
				d.ProductID.String(),
				before.Float64(),
				d.Quantity.Float64(),
			)
		}

		if err := s.repo.SaveStock(ctx, d.ProductID, after); err != nil {
			return nil, fmt.Errorf("save stock for %s: %w", d.ProductID, err)
		}

		snapshots = append(snapshots, StockSnapshot{
			ProductID: d.ProductID,
			Before:    before,
			After:     after,
			Delta:     d.Quantity,
		})
		movements = append(movements, entity.NewStockMovement(
			recorderID, d.ProductID, d.Quantity, before, after,
		))
	}

	if err := s.repo.CreateMovements(ctx, movements); err != nil {
		return nil, fmt.Errorf("create movements: %w", err)
	}

	logger.Info(ctx, "applied stock deltas",
		"recorder_id", recorderID,
		"products", len(deltas),
	)

	return snapshots, nil
}

// Revert compensates every movement previously recorded by a voucher.
// It nets the recorded deltas per product and applies the negation, so a
// voucher can be reverted any number of update cycles after creation.
// Reverting a voucher with no movements is a no-op.
func (s *Service) Revert(ctx context.Context, recorderID id.ID) error {
	movements, err := s.repo.GetMovementsByRecorder(ctx, recorderID)
	if err != nil {
		return fmt.Errorf("load movements: %w", err)
	}
	if len(movements) == 0 {
		return nil
	}

	net := make(map[id.ID]types.Quantity, len(movements))
	order := make([]id.ID, 0, len(movements))
	for _, m := range movements {
		if _, seen := net[m.ProductID]; !seen {
			order = append(order, m.ProductID)
		}
		net[m.ProductID] += m.Delta
	}

	deltas := make([]Delta, 0, len(order))
	for _, productID := range order {
		if net[productID].IsZero() {
			continue
		}
		deltas = append(deltas, Delta{ProductID: productID, Quantity: net[productID].Neg()})
	}

	if _, err := s.Apply(ctx, recorderID, deltas); err != nil {
		return err
	}

	logger.Info(ctx, "reverted stock movements", "recorder_id", recorderID)
	return nil
}

// GetProductStock returns the current stock level without locking.
func (s *Service) GetProductStock(ctx context.Context, productID id.ID) (types.Quantity, error) {
	return s.repo.GetStock(ctx, productID)
}

// GetMovementsByRecorder returns the movement journal for a voucher.
func (s *Service) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	return s.repo.GetMovementsByRecorder(ctx, recorderID)
}

// GetMovementHistory returns the movement journal for a product.
func (s *Service) GetMovementHistory(ctx context.Context, productID id.ID, filter MovementFilter) ([]entity.StockMovement, error) {
	return s.repo.GetMovementHistory(ctx, productID, filter)
}

// AggregateDeltas merges deltas per product and drops zero nets: a product
// whose deltas cancel out gets no lock, no write, and no journal row. The
// result is sorted by product ID so every transaction acquires row locks in
// the same global order.
func AggregateDeltas(deltas []Delta) []Delta {
	sums := make(map[id.ID]types.Quantity, len(deltas))
	for _, d := range deltas {
		sums[d.ProductID] += d.Quantity
	}

	out := make([]Delta, 0, len(sums))
	for productID, sum := range sums {
		if sum.IsZero() {
			continue
		}
		out = append(out, Delta{ProductID: productID, Quantity: sum})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ProductID[:], out[j].ProductID[:]) < 0
	})
	return out
}
