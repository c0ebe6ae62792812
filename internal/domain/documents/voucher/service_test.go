package voucher_test

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
	"gatepass/internal/core/entity"
	"gatepass/internal/core/id"
	"gatepass/internal/core/types"
	"gatepass/internal/domain"
	"gatepass/internal/domain/documents/invoice"
	"gatepass/internal/domain/documents/voucher"
	"gatepass/internal/domain/ledger"
	"gatepass/pkg/sequence"
)

// fakeStore is an in-memory backend shared by the voucher repository, the
// ledger repository, the invoice reader and the sequence counter. The fake
// transaction manager snapshots it before each transaction and restores the
// snapshot on error, mirroring a database rollback.
//
// The store also mirrors PostgreSQL statement-error semantics: once any
// statement has failed, every further statement in the same transaction
// fails until rollback. A number collision is reported as Duplicate without
// failing a statement, matching the repository's ON CONFLICT DO NOTHING
// insert, so the number retry can keep using the transaction.
type fakeStore struct {
	stock     map[id.ID]types.Quantity
	invoices  map[id.ID]*invoice.Invoice
	vouchers  map[id.ID]voucher.ExitVoucher
	numbers   map[string]id.ID
	lines     map[id.ID][]voucher.Line
	movements []entity.StockMovement
	counters  map[string]int64

	// alwaysDuplicate makes every voucher insert collide
	alwaysDuplicate bool

	// linesErr makes SaveLines fail as a statement error
	linesErr error

	txFailed bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stock:    make(map[id.ID]types.Quantity),
		invoices: make(map[id.ID]*invoice.Invoice),
		vouchers: make(map[id.ID]voucher.ExitVoucher),
		numbers:  make(map[string]id.ID),
		lines:    make(map[id.ID][]voucher.Line),
		counters: make(map[string]int64),
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
	for k, v := range s.stock {
		c.stock[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	for k, v := range s.vouchers {
		c.vouchers[k] = v
	}
	for k, v := range s.numbers {
		c.numbers[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = append([]voucher.Line(nil), v...)
	}
	c.movements = append([]entity.StockMovement(nil), s.movements...)
	for k, v := range s.counters {
		c.counters[k] = v
	}
	return c
}

func (s *fakeStore) restore(from *fakeStore) {
	s.stock = from.stock
	s.invoices = from.invoices
	s.vouchers = from.vouchers
	s.numbers = from.numbers
	s.lines = from.lines
	s.movements = from.movements
	s.counters = from.counters
	s.txFailed = from.txFailed
}

// --- ledger.Repository ---

func (s *fakeStore) GetStock(_ context.Context, productID id.ID) (types.Quantity, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	qty, ok := s.stock[productID]
	if !ok {
		return 0, apperror.NewNotFound("product", productID.String())
	}
	return qty, nil
}

func (s *fakeStore) GetStockForUpdate(ctx context.Context, productID id.ID) (types.Quantity, error) {
	return s.GetStock(ctx, productID)
}

func (s *fakeStore) SaveStock(_ context.Context, productID id.ID, qty types.Quantity) error {
	if err := s.guard(); err != nil {
		return err
	}
	s.stock[productID] = qty
	return nil
}

func (s *fakeStore) CreateMovements(_ context.Context, movements []entity.StockMovement) error {
	if err := s.guard(); err != nil {
		return err
	}
	s.movements = append(s.movements, movements...)
	return nil
}

func (s *fakeStore) GetMovementsByRecorder(_ context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	var out []entity.StockMovement
	for _, m := range s.movements {
		if m.RecorderID == recorderID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeStore) GetMovementHistory(_ context.Context, productID id.ID, _ ledger.MovementFilter) ([]entity.StockMovement, error) {
	var out []entity.StockMovement
	for _, m := range s.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

// --- voucher.Repository ---

func (s *fakeStore) Create(_ context.Context, doc *voucher.ExitVoucher) error {
	if err := s.guard(); err != nil {
		return err
	}
	if s.alwaysDuplicate {
		return apperror.NewDuplicate("exit voucher", "number", doc.Number)
	}
	if _, taken := s.numbers[doc.Number]; taken {
		return apperror.NewDuplicate("exit voucher", "number", doc.Number)
	}
	s.numbers[doc.Number] = doc.ID
	s.vouchers[doc.ID] = *doc
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, docID id.ID) (*voucher.ExitVoucher, error) {
	doc, ok := s.vouchers[docID]
	if !ok {
		return nil, apperror.NewNotFound("exit voucher", docID.String())
	}
	return &doc, nil
}

func (s *fakeStore) GetByNumber(_ context.Context, number string) (*voucher.ExitVoucher, error) {
	docID, ok := s.numbers[number]
	if !ok {
		return nil, apperror.NewNotFound("exit voucher", number)
	}
	doc := s.vouchers[docID]
	return &doc, nil
}

func (s *fakeStore) Update(_ context.Context, doc *voucher.ExitVoucher) error {
	if err := s.guard(); err != nil {
		return err
	}
	if _, ok := s.vouchers[doc.ID]; !ok {
		return apperror.NewNotFound("exit voucher", doc.ID.String())
	}
	s.vouchers[doc.ID] = *doc
	return nil
}

func (s *fakeStore) Delete(_ context.Context, docID id.ID) error {
	if err := s.guard(); err != nil {
		return err
	}
	doc, ok := s.vouchers[docID]
	if !ok {
		return apperror.NewNotFound("exit voucher", docID.String())
	}
	delete(s.numbers, doc.Number)
	delete(s.vouchers, docID)
	delete(s.lines, docID)
	return nil
}

func (s *fakeStore) GetLines(_ context.Context, docID id.ID) ([]voucher.Line, error) {
	return s.lines[docID], nil
}

func (s *fakeStore) SaveLines(_ context.Context, docID id.ID, lines []voucher.Line) error {
	if err := s.guard(); err != nil {
		return err
	}
	if s.linesErr != nil {
		return s.fail(s.linesErr)
	}
	s.lines[docID] = append([]voucher.Line(nil), lines...)
	return nil
}

func (s *fakeStore) List(_ context.Context, _ voucher.ListFilter) (domain.ListResult[*voucher.ExitVoucher], error) {
	out := domain.ListResult[*voucher.ExitVoucher]{}
	for docID := range s.vouchers {
		doc := s.vouchers[docID]
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

func (s *fakeStore) CountByInvoice(_ context.Context, invoiceID id.ID) (int64, error) {
	var count int64
	for docID := range s.lines {
		for _, line := range s.lines[docID] {
			if line.InvoiceID == invoiceID {
				count++
				break
			}
		}
	}
	return count, nil
}

// --- voucher.InvoiceReader ---

func (s *fakeStore) GetInvoice(_ context.Context, docID id.ID) (*invoice.Invoice, error) {
	inv, ok := s.invoices[docID]
	if !ok {
		return nil, apperror.NewNotFound("invoice", docID.String())
	}
	return inv, nil
}

type invoiceReaderFunc func(ctx context.Context, docID id.ID) (*invoice.Invoice, error)

func (f invoiceReaderFunc) GetByID(ctx context.Context, docID id.ID) (*invoice.Invoice, error) {
	return f(ctx, docID)
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
	svc   *voucher.Service
}

func newHarness() *harness {
	store := newFakeStore()
	txm := &fakeTxManager{store: store}
	ledgerSvc := ledger.NewService(store)
	validator := ledger.NewValidator(store)
	numbers := sequence.New(&fakeSeqQuerier{store: store})
	svc := voucher.NewService(
		store,
		invoiceReaderFunc(store.GetInvoice),
		ledgerSvc,
		validator,
		numbers,
		txm,
		nil,
	)
	return &harness{store: store, svc: svc}
}

func (h *harness) addProduct(stock float64) id.ID {
	productID := id.New()
	h.store.stock[productID] = types.NewQuantityFromFloat64(stock)
	return productID
}

func (h *harness) addInvoice(lines ...invoice.Line) id.ID {
	inv := invoice.NewInvoice(id.New(), time.Now())
	inv.Number = "F" + inv.ID.String()[:8]
	inv.Lines = lines
	h.store.invoices[inv.ID] = inv
	return inv.ID
}

func invLine(productID id.ID, qty float64) invoice.Line {
	return invoice.Line{
		LineID:    id.New(),
		ProductID: productID,
		Quantity:  types.NewQuantityFromFloat64(qty),
	}
}

func stockOf(h *harness, productID id.ID) float64 {
	return h.store.stock[productID].Float64()
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("issues stock and assigns first number", func(t *testing.T) {
		h := newHarness()
		productID := h.addProduct(10)
		invoiceID := h.addInvoice(invLine(productID, 4))

		doc := voucher.NewExitVoucher(voucher.ReasonSale, []id.ID{invoiceID})
		doc.IssuedBy = "warehouse keeper"
		require.NoError(t, h.svc.Create(ctx, doc))

		assert.Equal(t, "BS00001", doc.Number)
		assert.Equal(t, float64(6), stockOf(h, productID))
		assert.Equal(t, types.NewQuantityFromFloat64(4), doc.TotalQuantity)

		// movement journal captured the before/after snapshot
		snapshots, err := h.svc.GetMovements(ctx, doc.ID)
		require.NoError(t, err)
		require.Len(t, snapshots, 1)
		assert.Equal(t, types.NewQuantityFromFloat64(10), snapshots[0].Before)
		assert.Equal(t, types.NewQuantityFromFloat64(6), snapshots[0].After)
	})

	t.Run("numbers increase across vouchers", func(t *testing.T) {
		h := newHarness()
		productID := h.addProduct(100)

		var numbers []string
		for i := 0; i < 3; i++ {
			invoiceID := h.addInvoice(invLine(productID, 1))
			doc := voucher.NewExitVoucher(voucher.ReasonSale, []id.ID{invoiceID})
			require.NoError(t, h.svc.Create(ctx, doc))
			numbers = append(numbers, doc.Number)
		}
		assert.Equal(t, []string{"BS00001", "BS00002", "BS00003"}, numbers)
	})

	t.Run("insufficient aggregated demand across invoices", func(t *testing.T) {
		h := newHarness()
		productID := h.addProduct(10)
		first := h.addInvoice(invLine(productID, 6))
		second := h.addInvoice(invLine(productID, 6))

		doc := voucher.NewExitVoucher(voucher.ReasonSale, []id.ID{first, second})
		err := h.svc.Create(ctx, doc)
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)

		// nothing persisted, stock untouched, counter not consumed
		assert.Equal(t, float64(10), stockOf(h, productID))
		assert.Empty(t, h.store.vouchers)
		assert.Empty(t, h.store.movements)
		assert.Zero(t, h.store.counters["BS"])
	})

	t.Run("unknown invoice reference", func(t *testing.T) {
		h := newHarness()
		h.addProduct(10)

		doc := voucher.NewExitVoucher(voucher.ReasonSale, []id.ID{id.New()})
		err := h.svc.Create(ctx, doc)
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeInvalidReference, appErr.Code)
		assert.Empty(t, h.store.vouchers)
	})

	t.Run("invalid reason", func(t *testing.T) {
		h := newHarness()
		doc := voucher.NewExitVoucher(voucher.Reason("shrinkage"), []id.ID{id.New()})
		err := h.svc.Create(ctx, doc)
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeValidation, appErr.Code)
	})

	t.Run("falls back past a squatted number", func(t *testing.T) {
		h := newHarness()
		productID := h.addProduct(10)
		invoiceID := h.addInvoice(invLine(productID, 1))

		// a migrated voucher occupies BS00001 but the counter knows nothing
		h.store.numbers["BS00001"] = id.New()

		doc := voucher.NewExitVoucher(voucher.ReasonSale, []id.ID{invoiceID})
		require.NoError(t, h.svc.Create(ctx, doc))
		assert.Equal(t, "BS00002", doc.Number)
		assert.Equal(t, float64(9), stockOf(h, productID))

		// the collision did not abort the transaction: the statements after
		// the retried insert all went through
		lines, err := h.store.GetLines(ctx, doc.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, lines)
		assert.NotEmpty(t, h.store.movements)
	})

	t.Run("statement failure aborts the rest of the transaction", func(t *testing.T) {
		h := newHarness()
		productID := h.addProduct(10)
		invoiceID := h.addInvoice(invLine(productID, 2))
		h.store.linesErr = errors.New("could not extend relation")

		doc := voucher.NewExitVoucher(voucher.ReasonSale, []id.ID{invoiceID})
		err := h.svc.Create(ctx, doc)
		require.Error(t, err)

		// rollback restored the snapshot and cleared the aborted state
		assert.Equal(t, float64(10), stockOf(h, productID))
		assert.Empty(t, h.store.vouchers)
		assert.Empty(t, h.store.movements)
		assert.Zero(t, h.store.counters["BS"])
		assert.False(t, h.store.txFailed)
	})

	t.Run("gives up after bounded retries", func(t *testing.T) {
		h := newHarness()
		productID := h.addProduct(10)
		invoiceID := h.addInvoice(invLine(productID, 1))
		h.store.alwaysDuplicate = true

		doc := voucher.NewExitVoucher(voucher.ReasonSale, []id.ID{invoiceID})
		err := h.svc.Create(ctx, doc)
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeSequenceExhausted, appErr.Code)

		// the whole transaction rolled back with it
		assert.Equal(t, float64(10), stockOf(h, productID))
		assert.Empty(t, h.store.movements)
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("reverts old issue before applying the new one", func(t *testing.T) {
		h := newHarness()
		productID := h.addProduct(10)
		first := h.addInvoice(invLine(productID, 4))
		second := h.addInvoice(invLine(productID, 9))

		doc := voucher.NewExitVoucher(voucher.ReasonSale, []id.ID{first})
		require.NoError(t, h.svc.Create(ctx, doc))
		require.Equal(t, float64(6), stockOf(h, productID))

		// 9 only fits because the original 4 is reverted first
		updated := *doc
		updated.InvoiceIDs = []id.ID{second}
		require.NoError(t, h.svc.Update(ctx, &updated))

		assert.Equal(t, float64(1), stockOf(h, productID))
		assert.Equal(t, doc.Number, updated.Number)
	})

	t.Run("failed update leaves stock and voucher untouched", func(t *testing.T) {
		h := newHarness()
		productID := h.addProduct(10)
		first := h.addInvoice(invLine(productID, 4))
		tooBig := h.addInvoice(invLine(productID, 50))

		doc := voucher.NewExitVoucher(voucher.ReasonSale, []id.ID{first})
		require.NoError(t, h.svc.Create(ctx, doc))

		updated := *doc
		updated.InvoiceIDs = []id.ID{tooBig}
		err := h.svc.Update(ctx, &updated)
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)

		// rollback restored the original issue
		assert.Equal(t, float64(6), stockOf(h, productID))
		got, err := h.svc.GetByID(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, []id.ID{first}, got.InvoiceIDs)
	})

	t.Run("unknown voucher", func(t *testing.T) {
		h := newHarness()
		productID := h.addProduct(10)
		invoiceID := h.addInvoice(invLine(productID, 1))

		doc := voucher.NewExitVoucher(voucher.ReasonSale, []id.ID{invoiceID})
		err := h.svc.Update(ctx, doc)
		require.Error(t, err)
		assert.True(t, apperror.IsNotFound(err))
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("restores issued stock", func(t *testing.T) {
		h := newHarness()
		productID := h.addProduct(10)
		invoiceID := h.addInvoice(invLine(productID, 4))

		doc := voucher.NewExitVoucher(voucher.ReasonSale, []id.ID{invoiceID})
		require.NoError(t, h.svc.Create(ctx, doc))
		require.Equal(t, float64(6), stockOf(h, productID))

		require.NoError(t, h.svc.Delete(ctx, doc.ID))
		assert.Equal(t, float64(10), stockOf(h, productID))

		_, err := h.svc.GetByID(ctx, doc.ID)
		assert.True(t, apperror.IsNotFound(err))
	})

	t.Run("unknown voucher", func(t *testing.T) {
		h := newHarness()
		err := h.svc.Delete(ctx, id.New())
		assert.True(t, apperror.IsNotFound(err))
	})
}

func TestConcurrentCreate(t *testing.T) {
	ctx := context.Background()

	// two vouchers race for stock that only covers one of them
	h := newHarness()
	productID := h.addProduct(10)
	first := h.addInvoice(invLine(productID, 6))
	second := h.addInvoice(invLine(productID, 6))

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, invoiceID := range []id.ID{first, second} {
		wg.Add(1)
		go func(invoiceID id.ID) {
			defer wg.Done()
			doc := voucher.NewExitVoucher(voucher.ReasonSale, []id.ID{invoiceID})
			errs <- h.svc.Create(ctx, doc)
		}(invoiceID)
	}
	wg.Wait()
	close(errs)

	var failures []error
	for err := range errs {
		if err != nil {
			failures = append(failures, err)
		}
	}

	require.Len(t, failures, 1)
	appErr, ok := apperror.AsAppError(failures[0])
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)

	assert.Equal(t, float64(4), stockOf(h, productID))
	assert.Len(t, h.store.vouchers, 1)
}

func TestGetByNumber(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	productID := h.addProduct(10)
	invoiceID := h.addInvoice(invLine(productID, 2))

	doc := voucher.NewExitVoucher(voucher.ReasonTransfer, []id.ID{invoiceID})
	require.NoError(t, h.svc.Create(ctx, doc))

	got, err := h.svc.GetByNumber(ctx, doc.Number)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, []id.ID{invoiceID}, got.InvoiceIDs)

	_, err = h.svc.GetByNumber(ctx, "BS99999")
	assert.True(t, apperror.IsNotFound(err))
}
