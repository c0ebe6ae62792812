package ledger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatepass/internal/core/apperror"
	"gatepass/internal/core/entity"
	"gatepass/internal/core/id"
	"gatepass/internal/core/types"
)

// fakeRepo is an in-memory ledger repository. Products absent from the stock
// map are treated as missing rows.
type fakeRepo struct {
	stock     map[id.ID]types.Quantity
	movements []entity.StockMovement

	lockCalls map[id.ID]int
	lockOrder []id.ID
	saveCalls map[id.ID]int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		stock:     make(map[id.ID]types.Quantity),
		lockCalls: make(map[id.ID]int),
		saveCalls: make(map[id.ID]int),
	}
}

func (r *fakeRepo) GetStock(_ context.Context, productID id.ID) (types.Quantity, error) {
	qty, ok := r.stock[productID]
	if !ok {
		return 0, apperror.NewNotFound("product", productID.String())
	}
	return qty, nil
}

func (r *fakeRepo) GetStockForUpdate(ctx context.Context, productID id.ID) (types.Quantity, error) {
	r.lockCalls[productID]++
	r.lockOrder = append(r.lockOrder, productID)
	return r.GetStock(ctx, productID)
}

func (r *fakeRepo) SaveStock(_ context.Context, productID id.ID, qty types.Quantity) error {
	r.saveCalls[productID]++
	r.stock[productID] = qty
	return nil
}

func (r *fakeRepo) CreateMovements(_ context.Context, movements []entity.StockMovement) error {
	r.movements = append(r.movements, movements...)
	return nil
}

func (r *fakeRepo) GetMovementsByRecorder(_ context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	var out []entity.StockMovement
	for _, m := range r.movements {
		if m.RecorderID == recorderID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetMovementHistory(_ context.Context, productID id.ID, _ MovementFilter) ([]entity.StockMovement, error) {
	var out []entity.StockMovement
	for _, m := range r.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

func qty(v float64) types.Quantity { return types.NewQuantityFromFloat64(v) }

func TestServiceApply(t *testing.T) {
	ctx := context.Background()

	t.Run("issues stock and journals snapshot", func(t *testing.T) {
		repo := newFakeRepo()
		productID := id.New()
		repo.stock[productID] = qty(10)
		svc := NewService(repo)
		recorderID := id.New()

		snapshots, err := svc.Apply(ctx, recorderID, []Delta{
			{ProductID: productID, Quantity: qty(-3)},
		})
		require.NoError(t, err)
		require.Len(t, snapshots, 1)
		assert.Equal(t, qty(10), snapshots[0].Before)
		assert.Equal(t, qty(7), snapshots[0].After)
		assert.Equal(t, qty(-3), snapshots[0].Delta)
		assert.Equal(t, qty(7), repo.stock[productID])

		require.Len(t, repo.movements, 1)
		m := repo.movements[0]
		assert.Equal(t, recorderID, m.RecorderID)
		assert.Equal(t, entity.MovementKindIssue, m.Kind)
		assert.Equal(t, qty(10), m.StockBefore)
		assert.Equal(t, qty(7), m.StockAfter)
	})

	t.Run("aggregates deltas so each product is locked once", func(t *testing.T) {
		repo := newFakeRepo()
		productID := id.New()
		repo.stock[productID] = qty(10)
		svc := NewService(repo)

		snapshots, err := svc.Apply(ctx, id.New(), []Delta{
			{ProductID: productID, Quantity: qty(-2)},
			{ProductID: productID, Quantity: qty(-3)},
		})
		require.NoError(t, err)
		require.Len(t, snapshots, 1)
		assert.Equal(t, qty(5), repo.stock[productID])
		assert.Equal(t, 1, repo.lockCalls[productID])
		assert.Equal(t, 1, repo.saveCalls[productID])
		assert.Len(t, repo.movements, 1)
	})

	t.Run("locks products in ID order regardless of input order", func(t *testing.T) {
		a, b := id.New(), id.New()
		if bytes.Compare(a[:], b[:]) > 0 {
			a, b = b, a
		}

		for _, deltas := range [][]Delta{
			{{ProductID: a, Quantity: qty(-1)}, {ProductID: b, Quantity: qty(-1)}},
			{{ProductID: b, Quantity: qty(-1)}, {ProductID: a, Quantity: qty(-1)}},
		} {
			repo := newFakeRepo()
			repo.stock[a] = qty(5)
			repo.stock[b] = qty(5)

			_, err := NewService(repo).Apply(ctx, id.New(), deltas)
			require.NoError(t, err)
			assert.Equal(t, []id.ID{a, b}, repo.lockOrder)
		}
	})

	t.Run("zero net delta is neither applied nor journaled", func(t *testing.T) {
		repo := newFakeRepo()
		productID := id.New()
		repo.stock[productID] = qty(10)
		svc := NewService(repo)

		snapshots, err := svc.Apply(ctx, id.New(), []Delta{
			{ProductID: productID, Quantity: qty(-2)},
			{ProductID: productID, Quantity: qty(2)},
		})
		require.NoError(t, err)
		assert.Empty(t, snapshots)
		assert.Empty(t, repo.movements)
		assert.Equal(t, qty(10), repo.stock[productID])
		assert.Zero(t, repo.lockCalls[productID])
	})

	t.Run("rejects delta driving stock below zero", func(t *testing.T) {
		repo := newFakeRepo()
		productID := id.New()
		repo.stock[productID] = qty(2)
		svc := NewService(repo)

		_, err := svc.Apply(ctx, id.New(), []Delta{
			{ProductID: productID, Quantity: qty(-5)},
		})
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeNegativeStock, appErr.Code)
	})

	t.Run("empty deltas is a no-op", func(t *testing.T) {
		repo := newFakeRepo()
		svc := NewService(repo)

		snapshots, err := svc.Apply(ctx, id.New(), nil)
		require.NoError(t, err)
		assert.Empty(t, snapshots)
		assert.Empty(t, repo.movements)
	})

	t.Run("nil recorder is rejected", func(t *testing.T) {
		svc := NewService(newFakeRepo())
		_, err := svc.Apply(ctx, id.Nil(), []Delta{{ProductID: id.New(), Quantity: qty(-1)}})
		require.Error(t, err)
	})
}

func TestServiceRevert(t *testing.T) {
	ctx := context.Background()

	t.Run("restores stock issued by a voucher", func(t *testing.T) {
		repo := newFakeRepo()
		productID := id.New()
		repo.stock[productID] = qty(10)
		svc := NewService(repo)
		recorderID := id.New()

		_, err := svc.Apply(ctx, recorderID, []Delta{
			{ProductID: productID, Quantity: qty(-4)},
		})
		require.NoError(t, err)
		require.Equal(t, qty(6), repo.stock[productID])

		require.NoError(t, svc.Revert(ctx, recorderID))
		assert.Equal(t, qty(10), repo.stock[productID])

		// the reversal itself is journaled
		movements, err := svc.GetMovementsByRecorder(ctx, recorderID)
		require.NoError(t, err)
		require.Len(t, movements, 2)
		assert.Equal(t, entity.MovementKindReversal, movements[1].Kind)
	})

	t.Run("nets repeated apply and revert cycles", func(t *testing.T) {
		repo := newFakeRepo()
		productID := id.New()
		repo.stock[productID] = qty(10)
		svc := NewService(repo)
		recorderID := id.New()

		_, err := svc.Apply(ctx, recorderID, []Delta{{ProductID: productID, Quantity: qty(-4)}})
		require.NoError(t, err)
		require.NoError(t, svc.Revert(ctx, recorderID))
		_, err = svc.Apply(ctx, recorderID, []Delta{{ProductID: productID, Quantity: qty(-7)}})
		require.NoError(t, err)
		require.Equal(t, qty(3), repo.stock[productID])

		// net of all four journal rows is -7; revert restores the original level
		require.NoError(t, svc.Revert(ctx, recorderID))
		assert.Equal(t, qty(10), repo.stock[productID])
	})

	t.Run("voucher without movements is a no-op", func(t *testing.T) {
		repo := newFakeRepo()
		svc := NewService(repo)

		require.NoError(t, svc.Revert(ctx, id.New()))
		assert.Empty(t, repo.movements)
	})
}

func TestValidator(t *testing.T) {
	ctx := context.Background()

	t.Run("passes when stock covers aggregated demand", func(t *testing.T) {
		repo := newFakeRepo()
		productID := id.New()
		repo.stock[productID] = qty(10)
		v := NewValidator(repo)

		err := v.Validate(ctx, []Demand{
			{ProductID: productID, Quantity: qty(4)},
			{ProductID: productID, Quantity: qty(6)},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, repo.lockCalls[productID])
	})

	t.Run("locks products in ID order regardless of demand order", func(t *testing.T) {
		a, b := id.New(), id.New()
		if bytes.Compare(a[:], b[:]) > 0 {
			a, b = b, a
		}

		for _, demands := range [][]Demand{
			{{ProductID: a, Quantity: qty(1)}, {ProductID: b, Quantity: qty(1)}},
			{{ProductID: b, Quantity: qty(1)}, {ProductID: a, Quantity: qty(1)}},
		} {
			repo := newFakeRepo()
			repo.stock[a] = qty(5)
			repo.stock[b] = qty(5)

			require.NoError(t, NewValidator(repo).Validate(ctx, demands))
			assert.Equal(t, []id.ID{a, b}, repo.lockOrder)
		}
	})

	t.Run("fails on aggregated demand even when each line fits alone", func(t *testing.T) {
		repo := newFakeRepo()
		productID := id.New()
		repo.stock[productID] = qty(10)
		v := NewValidator(repo)

		err := v.Validate(ctx, []Demand{
			{ProductID: productID, Quantity: qty(6)},
			{ProductID: productID, Quantity: qty(6)},
		})
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
		assert.Equal(t, float64(12), appErr.Details["required"])
		assert.Equal(t, float64(10), appErr.Details["available"])
	})

	t.Run("missing product maps to invalid reference", func(t *testing.T) {
		v := NewValidator(newFakeRepo())

		err := v.Validate(ctx, []Demand{{ProductID: id.New(), Quantity: qty(1)}})
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeInvalidReference, appErr.Code)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		v := NewValidator(newFakeRepo())

		err := v.Validate(ctx, []Demand{{ProductID: id.New(), Quantity: qty(0)}})
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeValidation, appErr.Code)
	})
}

func TestAggregateDemands(t *testing.T) {
	p1, p2 := id.New(), id.New()

	got := AggregateDemands([]Demand{
		{ProductID: p1, Quantity: qty(2)},
		{ProductID: p2, Quantity: qty(5)},
		{ProductID: p1, Quantity: qty(3)},
	})

	require.Len(t, got, 2)
	assert.Equal(t, p1, got[0].ProductID)
	assert.Equal(t, qty(5), got[0].Quantity)
	assert.Equal(t, p2, got[1].ProductID)
	assert.Equal(t, qty(5), got[1].Quantity)
}
