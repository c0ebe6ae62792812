package voucher

import (
	"context"
	"time"

	"gatepass/internal/core/id"
	"gatepass/internal/domain"
)

// Repository defines operations for exit voucher documents.
type Repository interface {
	Create(ctx context.Context, doc *ExitVoucher) error
	GetByID(ctx context.Context, docID id.ID) (*ExitVoucher, error)
	GetByNumber(ctx context.Context, number string) (*ExitVoucher, error)
	Update(ctx context.Context, doc *ExitVoucher) error
	Delete(ctx context.Context, docID id.ID) error

	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, docID id.ID, lines []Line) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*ExitVoucher], error)

	// LatestNumber returns the highest assigned voucher number, or "" when
	// no voucher exists yet.
	LatestNumber(ctx context.Context) (string, error)

	// CountByInvoice reports how many vouchers reference an invoice.
	CountByInvoice(ctx context.Context, invoiceID id.ID) (int64, error)
}

// ListFilter for filtering exit vouchers.
type ListFilter struct {
	domain.ListFilter

	Reason    *Reason
	InvoiceID *id.ID
	DateFrom  *time.Time
	DateTo    *time.Time
}
