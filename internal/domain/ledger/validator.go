package ledger

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"gatepass/internal/core/apperror"
	"gatepass/internal/core/id"
	"gatepass/internal/core/types"
)

// Demand is a positive quantity required from one product's stock.
// A voucher referencing the same product on several lines produces several
// demands; availability is always judged against their sum.
type Demand struct {
	ProductID id.ID
	Quantity  types.Quantity
}

// Validator checks stock availability with pessimistic locking.
// Must run inside the same transaction as the subsequent Apply so the
// validated levels cannot change underneath.
type Validator struct {
	repo Repository
}

// NewValidator creates a stock validator over the ledger repository.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo}
}

// Validate locks each demanded product and checks that current stock covers
// the aggregated demand. Fails with InsufficientStock on the first product
// that cannot cover its total, with InvalidReference when a demanded product
// does not exist.
func (v *Validator) Validate(ctx context.Context, demands []Demand) error {
	for i, d := range demands {
		if !d.Quantity.IsPositive() {
			return apperror.NewValidation(fmt.Sprintf("demand %d: quantity must be positive", i))
		}
		if id.IsNil(d.ProductID) {
			return apperror.NewValidation(fmt.Sprintf("demand %d: product_id is required", i))
		}
	}

	for _, d := range AggregateDemands(demands) {
		available, err := v.repo.GetStockForUpdate(ctx, d.ProductID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewInvalidReference("product", d.ProductID.String())
			}
			return fmt.Errorf("lock stock for %s: %w", d.ProductID, err)
		}

		if available < d.Quantity {
			return apperror.NewInsufficientStock(
				d.ProductID.String(),
				d.Quantity.Float64(),
				available.Float64(),
			)
		}
	}

	return nil
}

// AggregateDemands sums demands per product, sorted by product ID. The
// validator and the ledger lock product rows in this same global order.
func AggregateDemands(demands []Demand) []Demand {
	sums := make(map[id.ID]types.Quantity, len(demands))
	for _, d := range demands {
		sums[d.ProductID] += d.Quantity
	}

	out := make([]Demand, 0, len(sums))
	for productID, sum := range sums {
		out = append(out, Demand{ProductID: productID, Quantity: sum})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ProductID[:], out[j].ProductID[:]) < 0
	})
	return out
}
