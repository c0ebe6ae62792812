package dto

import (
	"time"

	"gatepass/internal/core/id"
	"gatepass/internal/domain/documents/voucher"
	"gatepass/internal/domain/ledger"
)

// --- Request DTOs ---

type CreateVoucherRequest struct {
	Date        time.Time      `json:"date"`
	Reason      voucher.Reason `json:"reason" binding:"required"`
	InvoiceIDs  []string       `json:"invoiceIds" binding:"required,min=1"`
	Destination *string        `json:"destination,omitempty"`
	VehicleReg  *string        `json:"vehicleReg,omitempty"`
	DriverName  *string        `json:"driverName,omitempty"`
	IssuedBy    string         `json:"issuedBy"`
	Comment     string         `json:"comment,omitempty"`
}

func (r *CreateVoucherRequest) ToEntity() (*voucher.ExitVoucher, error) {
	invoiceIDs := make([]id.ID, 0, len(r.InvoiceIDs))
	for _, raw := range r.InvoiceIDs {
		invoiceID, err := id.Parse(raw)
		if err != nil {
			return nil, err
		}
		invoiceIDs = append(invoiceIDs, invoiceID)
	}

	doc := voucher.NewExitVoucher(r.Reason, invoiceIDs)
	if !r.Date.IsZero() {
		doc.Date = r.Date
	}
	doc.Destination = r.Destination
	doc.VehicleReg = r.VehicleReg
	doc.DriverName = r.DriverName
	doc.IssuedBy = r.IssuedBy
	doc.Comment = r.Comment
	return doc, nil
}

type UpdateVoucherRequest struct {
	Date        *time.Time      `json:"date,omitempty"`
	Reason      *voucher.Reason `json:"reason,omitempty"`
	InvoiceIDs  []string        `json:"invoiceIds,omitempty"`
	Destination *string         `json:"destination,omitempty"`
	VehicleReg  *string         `json:"vehicleReg,omitempty"`
	DriverName  *string         `json:"driverName,omitempty"`
	IssuedBy    *string         `json:"issuedBy,omitempty"`
	Comment     *string         `json:"comment,omitempty"`
}

func (r *UpdateVoucherRequest) ApplyTo(doc *voucher.ExitVoucher) error {
	if r.Date != nil {
		doc.Date = *r.Date
	}
	if r.Reason != nil {
		doc.Reason = *r.Reason
	}
	if r.InvoiceIDs != nil {
		invoiceIDs := make([]id.ID, 0, len(r.InvoiceIDs))
		for _, raw := range r.InvoiceIDs {
			invoiceID, err := id.Parse(raw)
			if err != nil {
				return err
			}
			invoiceIDs = append(invoiceIDs, invoiceID)
		}
		doc.InvoiceIDs = invoiceIDs
	}
	if r.Destination != nil {
		doc.Destination = r.Destination
	}
	if r.VehicleReg != nil {
		doc.VehicleReg = r.VehicleReg
	}
	if r.DriverName != nil {
		doc.DriverName = r.DriverName
	}
	if r.IssuedBy != nil {
		doc.IssuedBy = *r.IssuedBy
	}
	if r.Comment != nil {
		doc.Comment = *r.Comment
	}
	return nil
}

// --- Response DTOs ---

type VoucherLineResponse struct {
	LineID    string  `json:"lineId"`
	LineNo    int     `json:"lineNo"`
	InvoiceID string  `json:"invoiceId"`
	ProductID string  `json:"productId"`
	Quantity  float64 `json:"quantity"`
}

type VoucherResponse struct {
	ID            string                `json:"id"`
	Number        string                `json:"number"`
	Date          time.Time             `json:"date"`
	Reason        voucher.Reason        `json:"reason"`
	InvoiceIDs    []string              `json:"invoiceIds"`
	Destination   *string               `json:"destination,omitempty"`
	VehicleReg    *string               `json:"vehicleReg,omitempty"`
	DriverName    *string               `json:"driverName,omitempty"`
	IssuedBy      string                `json:"issuedBy"`
	TotalQuantity float64               `json:"totalQuantity"`
	Comment       string                `json:"comment,omitempty"`
	Lines         []VoucherLineResponse `json:"lines"`
	Version       int                   `json:"version"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

func FromVoucher(doc *voucher.ExitVoucher) *VoucherResponse {
	invoiceIDs := make([]string, len(doc.InvoiceIDs))
	for i, invoiceID := range doc.InvoiceIDs {
		invoiceIDs[i] = invoiceID.String()
	}

	lines := make([]VoucherLineResponse, len(doc.Lines))
	for i, line := range doc.Lines {
		lines[i] = VoucherLineResponse{
			LineID:    line.LineID.String(),
			LineNo:    line.LineNo,
			InvoiceID: line.InvoiceID.String(),
			ProductID: line.ProductID.String(),
			Quantity:  line.Quantity.Float64(),
		}
	}

	return &VoucherResponse{
		ID:            doc.ID.String(),
		Number:        doc.Number,
		Date:          doc.Date,
		Reason:        doc.Reason,
		InvoiceIDs:    invoiceIDs,
		Destination:   doc.Destination,
		VehicleReg:    doc.VehicleReg,
		DriverName:    doc.DriverName,
		IssuedBy:      doc.IssuedBy,
		TotalQuantity: doc.TotalQuantity.Float64(),
		Comment:       doc.Comment,
		Lines:         lines,
		Version:       doc.Version,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}

// --- Stock Snapshot DTOs ---

// StockSnapshotResponse reports the before/after stock levels a voucher
// operation produced for one product.
type StockSnapshotResponse struct {
	ProductID string  `json:"productId"`
	Before    float64 `json:"before"`
	After     float64 `json:"after"`
	Delta     float64 `json:"delta"`
}

func FromStockSnapshot(s ledger.StockSnapshot) StockSnapshotResponse {
	return StockSnapshotResponse{
		ProductID: s.ProductID.String(),
		Before:    s.Before.Float64(),
		After:     s.After.Float64(),
		Delta:     s.Delta.Float64(),
	}
}

func FromStockSnapshots(snapshots []ledger.StockSnapshot) []StockSnapshotResponse {
	out := make([]StockSnapshotResponse, len(snapshots))
	for i, s := range snapshots {
		out[i] = FromStockSnapshot(s)
	}
	return out
}
