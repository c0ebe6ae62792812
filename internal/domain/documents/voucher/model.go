// Package voucher provides the ExitVoucher document.
// An exit voucher issues invoiced goods out of stock: it references one or
// more invoices, materializes their product demand as lines, and records the
// matching stock movements through the ledger.
package voucher

import (
	"context"
	"time"

	"gatepass/internal/core/apperror"
	"gatepass/internal/core/entity"
	"gatepass/internal/core/id"
	"gatepass/internal/core/types"
)

// Reason defines why goods leave inventory.
type Reason string

const (
	ReasonSale        Reason = "sale"
	ReasonDonation    Reason = "donation"
	ReasonTransfer    Reason = "transfer"
	ReasonInternalUse Reason = "internal_use"
)

// ExitVoucher represents an exit voucher document.
type ExitVoucher struct {
	entity.Document

	// InvoiceIDs are the invoices whose goods this voucher issues.
	// Input on create/update; rebuilt from lines on read.
	InvoiceIDs []id.ID `db:"-" json:"invoiceIds"`

	// Reason for the exit
	Reason Reason `db:"reason" json:"reason"`

	// Shipment details
	Destination *string `db:"destination" json:"destination,omitempty"`
	VehicleReg  *string `db:"vehicle_reg" json:"vehicleReg,omitempty"`
	DriverName  *string `db:"driver_name" json:"driverName,omitempty"`

	// IssuedBy is the person responsible for the exit
	IssuedBy string `db:"issued_by" json:"issuedBy"`

	// TotalQuantity is the sum of line quantities
	TotalQuantity types.Quantity `db:"total_quantity" json:"totalQuantity"`

	// Table part: issued goods, materialized from the referenced invoices
	// at issue time. Later invoice edits do not change them.
	Lines []Line `db:"-" json:"lines"`
}

// Line represents one issued product, traced back to its invoice.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	InvoiceID id.ID          `db:"invoice_id" json:"invoiceId"`
	ProductID id.ID          `db:"product_id" json:"productId"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
}

// NewExitVoucher creates a new exit voucher for the given invoices.
// Number is left empty for sequential assignment at create time.
func NewExitVoucher(reason Reason, invoiceIDs []id.ID) *ExitVoucher {
	return &ExitVoucher{
		Document:   entity.NewDocument(time.Time{}),
		Reason:     reason,
		InvoiceIDs: invoiceIDs,
		Lines:      make([]Line, 0),
	}
}

// Validate implements entity.Validatable.
func (v *ExitVoucher) Validate(ctx context.Context) error {
	if err := v.Document.Validate(ctx); err != nil {
		return err
	}

	if !isValidReason(v.Reason) {
		return apperror.NewValidation("invalid exit reason").
			WithDetail("field", "reason").
			WithDetail("value", string(v.Reason))
	}

	if len(v.InvoiceIDs) == 0 {
		return apperror.NewValidation("at least one invoice is required").
			WithDetail("field", "invoiceIds")
	}

	seen := make(map[id.ID]struct{}, len(v.InvoiceIDs))
	for i, invoiceID := range v.InvoiceIDs {
		if id.IsNil(invoiceID) {
			return apperror.NewValidation("invoice reference is required").
				WithDetail("field", "invoiceIds").
				WithDetail("index", i)
		}
		if _, dup := seen[invoiceID]; dup {
			return apperror.NewValidation("duplicate invoice reference").
				WithDetail("field", "invoiceIds").
				WithDetail("value", invoiceID.String())
		}
		seen[invoiceID] = struct{}{}
	}

	return nil
}

// RecalculateTotals recomputes the quantity total from lines.
func (v *ExitVoucher) RecalculateTotals() {
	v.TotalQuantity = 0
	for _, line := range v.Lines {
		v.TotalQuantity += line.Quantity
	}
}

// SyncInvoiceIDs rebuilds InvoiceIDs from lines, preserving line order.
func (v *ExitVoucher) SyncInvoiceIDs() {
	seen := make(map[id.ID]struct{}, len(v.Lines))
	v.InvoiceIDs = v.InvoiceIDs[:0]
	for _, line := range v.Lines {
		if _, ok := seen[line.InvoiceID]; ok {
			continue
		}
		seen[line.InvoiceID] = struct{}{}
		v.InvoiceIDs = append(v.InvoiceIDs, line.InvoiceID)
	}
}

func isValidReason(r Reason) bool {
	switch r {
	case ReasonSale, ReasonDonation, ReasonTransfer, ReasonInternalUse:
		return true
	}
	return false
}
