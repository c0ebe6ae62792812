package domain_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatepass/internal/core/apperror"
	"gatepass/internal/core/entity"
	"gatepass/internal/core/id"
	"gatepass/internal/domain"
	"gatepass/pkg/sequence"
)

// unit is a minimal coded catalog entity for exercising the generic service.
type unit struct {
	entity.Catalog
}

// fakeUnitRepo is an in-memory catalog repository. Code collisions are
// reported as Duplicate without poisoning anything else, matching the
// repository's ON CONFLICT DO NOTHING path; createErr simulates a failure
// from another unique constraint, which in PostgreSQL aborts the transaction
// and therefore must never be followed by more statements.
type fakeUnitRepo struct {
	items map[id.ID]*unit
	codes map[string]id.ID

	createErr       error
	alwaysDuplicate bool

	latestCalls int
}

func newFakeUnitRepo() *fakeUnitRepo {
	return &fakeUnitRepo{
		items: make(map[id.ID]*unit),
		codes: make(map[string]id.ID),
	}
}

func (r *fakeUnitRepo) Create(_ context.Context, u *unit) error {
	if r.createErr != nil {
		return r.createErr
	}
	if r.alwaysDuplicate {
		return apperror.NewDuplicate("unit", "code", u.Code)
	}
	if _, taken := r.codes[u.Code]; taken {
		return apperror.NewDuplicate("unit", "code", u.Code)
	}
	r.codes[u.Code] = u.ID
	r.items[u.ID] = u
	return nil
}

func (r *fakeUnitRepo) GetByID(_ context.Context, entityID id.ID) (*unit, error) {
	u, ok := r.items[entityID]
	if !ok {
		return nil, apperror.NewNotFound("unit", entityID.String())
	}
	return u, nil
}

func (r *fakeUnitRepo) GetByCode(_ context.Context, code string) (*unit, error) {
	entityID, ok := r.codes[code]
	if !ok {
		return nil, apperror.NewNotFound("unit", code)
	}
	return r.items[entityID], nil
}

func (r *fakeUnitRepo) Update(_ context.Context, u *unit) error {
	if _, ok := r.items[u.ID]; !ok {
		return apperror.NewNotFound("unit", u.ID.String())
	}
	r.items[u.ID] = u
	return nil
}

func (r *fakeUnitRepo) Delete(_ context.Context, entityID id.ID) error {
	u, ok := r.items[entityID]
	if !ok {
		return apperror.NewNotFound("unit", entityID.String())
	}
	delete(r.codes, u.Code)
	delete(r.items, entityID)
	return nil
}

func (r *fakeUnitRepo) List(_ context.Context, _ domain.ListFilter) (domain.ListResult[*unit], error) {
	out := domain.ListResult[*unit]{}
	for _, u := range r.items {
		out.Items = append(out.Items, u)
	}
	out.TotalCount = int64(len(out.Items))
	return out, nil
}

func (r *fakeUnitRepo) Exists(_ context.Context, entityID id.ID) (bool, error) {
	_, ok := r.items[entityID]
	return ok, nil
}

func (r *fakeUnitRepo) ExistsByCode(_ context.Context, code string) (bool, error) {
	_, ok := r.codes[code]
	return ok, nil
}

func (r *fakeUnitRepo) LatestCode(_ context.Context) (string, error) {
	r.latestCalls++
	latest := ""
	for code := range r.codes {
		if code > latest {
			latest = code
		}
	}
	return latest, nil
}

type fakeSeqRow struct{ val int64 }

func (r *fakeSeqRow) Scan(dest ...any) error {
	*dest[0].(*int64) = r.val
	return nil
}

type fakeSeqQuerier struct{ counters map[string]int64 }

func (q *fakeSeqQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	key := args[0].(string)
	q.counters[key]++
	return &fakeSeqRow{val: q.counters[key]}
}

type passthroughTxManager struct{}

func (passthroughTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newUnitService(repo *fakeUnitRepo) *domain.CatalogService[*unit] {
	return domain.NewCatalogService(domain.CatalogServiceConfig[*unit]{
		Repo:       repo,
		TxManager:  passthroughTxManager{},
		Codes:      sequence.New(&fakeSeqQuerier{counters: make(map[string]int64)}),
		CodeConfig: sequence.DefaultConfig("U"),
		EntityName: "unit",
	})
}

func newUnit(name string) *unit {
	return &unit{Catalog: entity.NewCatalog("", name)}
}

func TestCatalogServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns sequential codes", func(t *testing.T) {
		repo := newFakeUnitRepo()
		svc := newUnitService(repo)

		first := newUnit("piece")
		second := newUnit("pallet")
		require.NoError(t, svc.Create(ctx, first))
		require.NoError(t, svc.Create(ctx, second))

		assert.Equal(t, "U00001", first.Code)
		assert.Equal(t, "U00002", second.Code)
	})

	t.Run("falls back past a squatted code", func(t *testing.T) {
		repo := newFakeUnitRepo()
		repo.codes["U00001"] = id.New()
		svc := newUnitService(repo)

		u := newUnit("box")
		require.NoError(t, svc.Create(ctx, u))
		assert.Equal(t, "U00002", u.Code)
		assert.Equal(t, 1, repo.latestCalls)
	})

	t.Run("gives up after bounded retries", func(t *testing.T) {
		repo := newFakeUnitRepo()
		repo.alwaysDuplicate = true
		svc := newUnitService(repo)

		err := svc.Create(ctx, newUnit("crate"))
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeSequenceExhausted, appErr.Code)
	})

	t.Run("non-code unique conflict is not retried", func(t *testing.T) {
		repo := newFakeUnitRepo()
		repo.createErr = apperror.NewConflict("unit violates a unique constraint").
			WithDetail("constraint", "cat_units_symbol_key")
		svc := newUnitService(repo)

		err := svc.Create(ctx, newUnit("liter"))
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeConflict, appErr.Code)

		// the aborted transaction was never touched again
		assert.Zero(t, repo.latestCalls)
	})
}
