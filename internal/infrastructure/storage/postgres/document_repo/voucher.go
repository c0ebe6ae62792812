package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"gatepass/internal/core/id"
	"gatepass/internal/domain"
	"gatepass/internal/domain/documents/voucher"
	"gatepass/internal/infrastructure/storage/postgres"
)

const (
	voucherTable      = "doc_exit_vouchers"
	voucherLinesTable = "doc_exit_voucher_lines"
)

// VoucherRepo is the PostgreSQL implementation of voucher.Repository.
type VoucherRepo struct {
	*BaseDocumentRepo[*voucher.ExitVoucher]
}

var _ voucher.Repository = (*VoucherRepo)(nil)

func NewVoucherRepo(txm *postgres.TxManager) *VoucherRepo {
	return &VoucherRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			voucherTable,
			voucher.NumberConfig.Prefix,
			postgres.ExtractDBColumns[voucher.ExitVoucher](),
			func() *voucher.ExitVoucher { return &voucher.ExitVoucher{} },
		),
	}
}

// GetLines retrieves the table part of an exit voucher.
func (r *VoucherRepo) GetLines(ctx context.Context, docID id.ID) ([]voucher.Line, error) {
	q := r.Builder().
		Select("line_id", "line_no", "invoice_id", "product_id", "quantity").
		From(voucherLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []voucher.Line
	if err := pgxscan.Select(ctx, r.Querier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get voucher lines: %w", err)
	}

	return lines, nil
}

// SaveLines replaces the table part of an exit voucher.
func (r *VoucherRepo) SaveLines(ctx context.Context, docID id.ID, lines []voucher.Line) error {
	delQ := r.Builder().
		Delete(voucherLinesTable).
		Where(squirrel.Eq{"document_id": docID})

	sql, args, err := delQ.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete voucher lines: %w", err)
	}

	if len(lines) == 0 {
		return nil
	}

	insQ := r.Builder().
		Insert(voucherLinesTable).
		Columns("line_id", "document_id", "line_no", "invoice_id", "product_id", "quantity")

	for _, line := range lines {
		insQ = insQ.Values(line.LineID, docID, line.LineNo, line.InvoiceID, line.ProductID, line.Quantity)
	}

	sql, args, err = insQ.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert voucher lines: %w", err)
	}

	return nil
}

// List retrieves exit vouchers with voucher-specific filtering.
func (r *VoucherRepo) List(ctx context.Context, filter voucher.ListFilter) (domain.ListResult[*voucher.ExitVoucher], error) {
	q := r.baseSelect()

	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"number": "%" + filter.Search + "%"})
	}
	if filter.Reason != nil {
		q = q.Where(squirrel.Eq{"reason": *filter.Reason})
	}
	if filter.InvoiceID != nil {
		q = q.Where(squirrel.Expr(
			"EXISTS (SELECT 1 FROM "+voucherLinesTable+" l WHERE l.document_id = "+voucherTable+".id AND l.invoice_id = ?)",
			*filter.InvoiceID,
		))
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.DateTo})
	}

	return r.ListQuery(ctx, q, filter.ListFilter)
}

// CountByInvoice reports how many vouchers reference an invoice.
func (r *VoucherRepo) CountByInvoice(ctx context.Context, invoiceID id.ID) (int64, error) {
	q := r.Builder().
		Select("COUNT(DISTINCT document_id)").
		From(voucherLinesTable).
		Where(squirrel.Eq{"invoice_id": invoiceID})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var count int64
	if err := r.Querier(ctx).QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count vouchers by invoice: %w", err)
	}

	return count, nil
}
