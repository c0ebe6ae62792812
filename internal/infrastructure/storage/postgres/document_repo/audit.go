package document_repo

import (
	"context"

	"gatepass/internal/domain/documents/voucher"
	"gatepass/internal/domain/ledger"
	"gatepass/internal/infrastructure/storage/postgres"
)

// VoucherAuditLogger records voucher lifecycle events into the audit trail.
// It runs inside the voucher transaction, so a rolled back operation leaves
// no audit row behind.
type VoucherAuditLogger struct {
	audit *postgres.AuditService
}

var _ voucher.AuditLogger = (*VoucherAuditLogger)(nil)

func NewVoucherAuditLogger(audit *postgres.AuditService) *VoucherAuditLogger {
	return &VoucherAuditLogger{audit: audit}
}

// Record persists the voucher state and the stock snapshots the operation
// produced.
func (l *VoucherAuditLogger) Record(ctx context.Context, action string, doc *voucher.ExitVoucher, snapshots []ledger.StockSnapshot) error {
	payload := struct {
		Voucher   *voucher.ExitVoucher   `json:"voucher"`
		Snapshots []ledger.StockSnapshot `json:"snapshots,omitempty"`
	}{
		Voucher:   doc,
		Snapshots: snapshots,
	}

	return l.audit.LogChange(ctx, voucherTable, doc.ID, action, payload)
}
