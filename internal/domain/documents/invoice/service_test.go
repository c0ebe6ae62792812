package invoice_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatepass/internal/core/apperror"
	"gatepass/internal/core/id"
	"gatepass/internal/core/types"
	"gatepass/internal/domain"
	"gatepass/internal/domain/documents/invoice"
	"gatepass/pkg/sequence"
)

// fakeStore is an in-memory backend shared by the invoice repository, the
// voucher reference checker and the sequence counter. The fake transaction
// manager snapshots it before each transaction and restores the snapshot on
// error, mirroring a database rollback.
//
// Statement-error semantics mirror PostgreSQL: once any statement has
// failed, every further statement in the same transaction fails until
// rollback. Number collisions are reported as Duplicate without failing a
// statement, matching the repository's ON CONFLICT DO NOTHING insert.
type fakeStore struct {
	invoices map[id.ID]invoice.Invoice
	numbers  map[string]id.ID
	lines    map[id.ID][]invoice.Line
	counters map[string]int64

	// voucherRefs maps an invoice to the number of exit vouchers citing it
	voucherRefs map[id.ID]int64

	// alwaysDuplicate makes every invoice insert collide
	alwaysDuplicate bool

	// linesErr makes SaveLines fail as a statement error
	linesErr error

	txFailed bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		invoices:    make(map[id.ID]invoice.Invoice),
		numbers:     make(map[string]id.ID),
		lines:       make(map[id.ID][]invoice.Line),
		counters:    make(map[string]int64),
		voucherRefs: make(map[id.ID]int64),
	}
}

func (s *fakeStore) guard() error {
	if s.txFailed {
		return errors.New("current transaction is aborted")
	}
	return nil
}

func (s *fakeStore) fail(err error) error {
	s.txFailed = true
	return err
}

func (s *fakeStore) clone() *fakeStore {
	c := newFakeStore()
	c.alwaysDuplicate = s.alwaysDuplicate
	c.linesErr = s.linesErr
	c.txFailed = s.txFailed
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	for k, v := range s.numbers {
		c.numbers[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = append([]invoice.Line(nil), v...)
	}
	for k, v := range s.counters {
		c.counters[k] = v
	}
	for k, v := range s.voucherRefs {
		c.voucherRefs[k] = v
	}
	return c
}

func (s *fakeStore) restore(from *fakeStore) {
	s.invoices = from.invoices
	s.numbers = from.numbers
	s.lines = from.lines
	s.counters = from.counters
	s.voucherRefs = from.voucherRefs
	s.txFailed = from.txFailed
}

// --- invoice.Repository ---

func (s *fakeStore) Create(_ context.Context, doc *invoice.Invoice) error {
	if err := s.guard(); err != nil {
		return err
	}
	if s.alwaysDuplicate {
		return apperror.NewDuplicate("invoice", "number", doc.Number)
	}
	if _, taken := s.numbers[doc.Number]; taken {
		return apperror.NewDuplicate("invoice", "number", doc.Number)
	}
	s.numbers[doc.Number] = doc.ID
	s.invoices[doc.ID] = *doc
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, docID id.ID) (*invoice.Invoice, error) {
	doc, ok := s.invoices[docID]
	if !ok {
		return nil, apperror.NewNotFound("invoice", docID.String())
	}
	return &doc, nil
}

func (s *fakeStore) GetByNumber(_ context.Context, number string) (*invoice.Invoice, error) {
	docID, ok := s.numbers[number]
	if !ok {
		return nil, apperror.NewNotFound("invoice", number)
	}
	doc := s.invoices[docID]
	return &doc, nil
}

func (s *fakeStore) Update(_ context.Context, doc *invoice.Invoice) error {
	if err := s.guard(); err != nil {
		return err
	}
	if _, ok := s.invoices[doc.ID]; !ok {
		return apperror.NewNotFound("invoice", doc.ID.String())
	}
	s.invoices[doc.ID] = *doc
	return nil
}

func (s *fakeStore) Delete(_ context.Context, docID id.ID) error {
	if err := s.guard(); err != nil {
		return err
	}
	doc, ok := s.invoices[docID]
	if !ok {
		return apperror.NewNotFound("invoice", docID.String())
	}
	delete(s.numbers, doc.Number)
	delete(s.invoices, docID)
	delete(s.lines, docID)
	return nil
}

func (s *fakeStore) GetLines(_ context.Context, docID id.ID) ([]invoice.Line, error) {
	return s.lines[docID], nil
}

func (s *fakeStore) SaveLines(_ context.Context, docID id.ID, lines []invoice.Line) error {
	if err := s.guard(); err != nil {
		return err
	}
	if s.linesErr != nil {
		return s.fail(s.linesErr)
	}
	s.lines[docID] = append([]invoice.Line(nil), lines...)
	return nil
}

func (s *fakeStore) List(_ context.Context, _ invoice.ListFilter) (domain.ListResult[*invoice.Invoice], error) {
	out := domain.ListResult[*invoice.Invoice]{}
	for docID := range s.invoices {
		doc := s.invoices[docID]
		out.Items = append(out.Items, &doc)
	}
	out.TotalCount = int64(len(out.Items))
	return out, nil
}

func (s *fakeStore) LatestNumber(_ context.Context) (string, error) {
	if err := s.guard(); err != nil {
		return "", err
	}
	latest := ""
	for number := range s.numbers {
		if number > latest {
			latest = number
		}
	}
	return latest, nil
}

// --- invoice.VoucherRefChecker ---

func (s *fakeStore) CountByInvoice(_ context.Context, invoiceID id.ID) (int64, error) {
	return s.voucherRefs[invoiceID], nil
}

// --- sequence.Querier over the shared counters ---

type fakeSeqRow struct{ val int64 }

func (r *fakeSeqRow) Scan(dest ...any) error {
	*dest[0].(*int64) = r.val
	return nil
}

type fakeSeqQuerier struct{ store *fakeStore }

func (q *fakeSeqQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	key := args[0].(string)
	q.store.counters[key]++
	return &fakeSeqRow{val: q.store.counters[key]}
}

// fakeTxManager serializes transactions with a mutex and rolls the store back
// to a pre-transaction snapshot on error.
type fakeTxManager struct {
	mu    sync.Mutex
	store *fakeStore
}

func (m *fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.store.clone()
	if err := fn(ctx); err != nil {
		m.store.restore(snapshot)
		return err
	}
	return nil
}

// --- harness ---

type harness struct {
	store *fakeStore
	svc   *invoice.Service
}

func newHarness() *harness {
	store := newFakeStore()
	txm := &fakeTxManager{store: store}
	numbers := sequence.New(&fakeSeqQuerier{store: store})
	svc := invoice.NewService(store, numbers, txm, store)
	return &harness{store: store, svc: svc}
}

func sampleInvoice() *invoice.Invoice {
	doc := invoice.NewInvoice(id.New(), time.Now())
	doc.AddLine(id.New(), types.NewQuantityFromFloat64(3))
	doc.SetAmounts(types.MustMoney("450.00"), types.MustMoney("20"))
	return doc
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns first number and saves lines", func(t *testing.T) {
		h := newHarness()

		doc := sampleInvoice()
		require.NoError(t, h.svc.Create(ctx, doc))

		assert.Equal(t, "F00001", doc.Number)
		assert.Equal(t, invoice.StatusPending, doc.Status)

		got, err := h.svc.GetByID(ctx, doc.ID)
		require.NoError(t, err)
		require.Len(t, got.Lines, 1)
		assert.Equal(t, doc.Lines[0].ProductID, got.Lines[0].ProductID)
	})

	t.Run("numbers increase across invoices", func(t *testing.T) {
		h := newHarness()

		var numbers []string
		for i := 0; i < 3; i++ {
			doc := sampleInvoice()
			require.NoError(t, h.svc.Create(ctx, doc))
			numbers = append(numbers, doc.Number)
		}
		assert.Equal(t, []string{"F00001", "F00002", "F00003"}, numbers)
	})

	t.Run("keeps a caller-provided number", func(t *testing.T) {
		h := newHarness()

		doc := sampleInvoice()
		doc.Number = "F2024-0042"
		require.NoError(t, h.svc.Create(ctx, doc))

		assert.Equal(t, "F2024-0042", doc.Number)
		assert.Zero(t, h.store.counters["F"])
	})

	t.Run("rejects an invoice without lines", func(t *testing.T) {
		h := newHarness()

		doc := invoice.NewInvoice(id.New(), time.Now())
		err := h.svc.Create(ctx, doc)
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeValidation, appErr.Code)
		assert.Empty(t, h.store.invoices)
	})

	t.Run("falls back past a squatted number", func(t *testing.T) {
		h := newHarness()

		// a migrated invoice occupies F00001 but the counter knows nothing
		h.store.numbers["F00001"] = id.New()

		doc := sampleInvoice()
		require.NoError(t, h.svc.Create(ctx, doc))
		assert.Equal(t, "F00002", doc.Number)

		// the collision did not abort the transaction: the lines insert
		// after the retried create still went through
		assert.NotEmpty(t, h.store.lines[doc.ID])
	})

	t.Run("statement failure aborts the rest of the transaction", func(t *testing.T) {
		h := newHarness()
		h.store.linesErr = errors.New("could not extend relation")

		doc := sampleInvoice()
		err := h.svc.Create(ctx, doc)
		require.Error(t, err)

		// rollback restored the snapshot and cleared the aborted state
		assert.Empty(t, h.store.invoices)
		assert.Zero(t, h.store.counters["F"])
		assert.False(t, h.store.txFailed)
	})

	t.Run("gives up after bounded retries", func(t *testing.T) {
		h := newHarness()
		h.store.alwaysDuplicate = true

		doc := sampleInvoice()
		err := h.svc.Create(ctx, doc)
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeSequenceExhausted, appErr.Code)

		// the whole transaction rolled back with it
		assert.Empty(t, h.store.invoices)
		assert.Zero(t, h.store.counters["F"])
	})
}

func TestGetByNumber(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	doc := sampleInvoice()
	require.NoError(t, h.svc.Create(ctx, doc))

	got, err := h.svc.GetByNumber(ctx, doc.Number)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Len(t, got.Lines, 1)

	_, err = h.svc.GetByNumber(ctx, "F99999")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces lines", func(t *testing.T) {
		h := newHarness()

		doc := sampleInvoice()
		require.NoError(t, h.svc.Create(ctx, doc))

		updated, err := h.svc.GetByID(ctx, doc.ID)
		require.NoError(t, err)
		updated.Lines = updated.Lines[:0]
		updated.AddLine(id.New(), types.NewQuantityFromFloat64(7))
		updated.AddLine(id.New(), types.NewQuantityFromFloat64(2))
		require.NoError(t, h.svc.Update(ctx, updated))

		got, err := h.svc.GetByID(ctx, doc.ID)
		require.NoError(t, err)
		assert.Len(t, got.Lines, 2)
	})

	t.Run("refused while exit vouchers reference the invoice", func(t *testing.T) {
		h := newHarness()

		doc := sampleInvoice()
		require.NoError(t, h.svc.Create(ctx, doc))
		h.store.voucherRefs[doc.ID] = 2

		err := h.svc.Update(ctx, doc)
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeConflict, appErr.Code)
		assert.Equal(t, int64(2), appErr.Details["vouchers"])
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the invoice and its lines", func(t *testing.T) {
		h := newHarness()

		doc := sampleInvoice()
		require.NoError(t, h.svc.Create(ctx, doc))
		require.NoError(t, h.svc.Delete(ctx, doc.ID))

		_, err := h.svc.GetByID(ctx, doc.ID)
		require.Error(t, err)
		assert.True(t, apperror.IsNotFound(err))
		assert.Empty(t, h.store.lines[doc.ID])
	})

	t.Run("refused while exit vouchers reference the invoice", func(t *testing.T) {
		h := newHarness()

		doc := sampleInvoice()
		require.NoError(t, h.svc.Create(ctx, doc))
		h.store.voucherRefs[doc.ID] = 1

		err := h.svc.Delete(ctx, doc.ID)
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeConflict, appErr.Code)

		_, err = h.svc.GetByID(ctx, doc.ID)
		assert.NoError(t, err)
	})

	t.Run("unknown invoice", func(t *testing.T) {
		h := newHarness()
		err := h.svc.Delete(ctx, id.New())
		require.Error(t, err)
		assert.True(t, apperror.IsNotFound(err))
	})
}
