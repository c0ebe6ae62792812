package dto

import (
	"time"

	"gatepass/internal/core/id"
	"gatepass/internal/core/types"
	"gatepass/internal/domain/documents/invoice"
)

// --- Request DTOs ---

type CreateInvoiceRequest struct {
	Number          string                 `json:"number,omitempty"`
	Date            time.Time              `json:"date" binding:"required"`
	CustomerID      string                 `json:"customerId" binding:"required"`
	TotalExclTax    string                 `json:"totalExclTax" binding:"required"`
	VATPercent      string                 `json:"vatPercent"`
	DiscountPercent string                 `json:"discountPercent"`
	DueDate         *time.Time             `json:"dueDate,omitempty"`
	PaymentMethod   *invoice.PaymentMethod `json:"paymentMethod,omitempty"`
	Comment         string                 `json:"comment,omitempty"`
	Lines           []InvoiceLineRequest   `json:"lines" binding:"required,min=1,dive"`
}

type InvoiceLineRequest struct {
	ProductID string  `json:"productId" binding:"required"`
	Quantity  float64 `json:"quantity" binding:"required,gt=0"`
}

func (r *CreateInvoiceRequest) ToEntity() (*invoice.Invoice, error) {
	customerID, err := id.Parse(r.CustomerID)
	if err != nil {
		return nil, err
	}

	doc := invoice.NewInvoice(customerID, r.Date)
	doc.Number = r.Number
	doc.DueDate = r.DueDate
	doc.PaymentMethod = r.PaymentMethod
	doc.Comment = r.Comment

	if r.DiscountPercent != "" {
		discount, err := types.NewMoneyFromString(r.DiscountPercent)
		if err != nil {
			return nil, err
		}
		doc.DiscountPercent = discount
	}

	totalExclTax, err := types.NewMoneyFromString(r.TotalExclTax)
	if err != nil {
		return nil, err
	}

	vatPercent := types.Zero()
	if r.VATPercent != "" {
		vatPercent, err = types.NewMoneyFromString(r.VATPercent)
		if err != nil {
			return nil, err
		}
	}
	doc.SetAmounts(totalExclTax, vatPercent)

	for _, line := range r.Lines {
		productID, err := id.Parse(line.ProductID)
		if err != nil {
			return nil, err
		}
		doc.AddLine(productID, types.NewQuantityFromFloat64(line.Quantity))
	}

	return doc, nil
}

type UpdateInvoiceRequest struct {
	Date            *time.Time             `json:"date,omitempty"`
	CustomerID      *string                `json:"customerId,omitempty"`
	TotalExclTax    *string                `json:"totalExclTax,omitempty"`
	VATPercent      *string                `json:"vatPercent,omitempty"`
	DiscountPercent *string                `json:"discountPercent,omitempty"`
	DueDate         *time.Time             `json:"dueDate,omitempty"`
	PaymentMethod   *invoice.PaymentMethod `json:"paymentMethod,omitempty"`
	Status          *invoice.Status        `json:"status,omitempty"`
	SettledAt       *time.Time             `json:"settledAt,omitempty"`
	Comment         *string                `json:"comment,omitempty"`
	Lines           []InvoiceLineRequest   `json:"lines,omitempty"`
}

func (r *UpdateInvoiceRequest) ApplyTo(doc *invoice.Invoice) error {
	if r.Date != nil {
		doc.Date = *r.Date
	}
	if r.CustomerID != nil {
		customerID, err := id.Parse(*r.CustomerID)
		if err != nil {
			return err
		}
		doc.CustomerID = customerID
	}
	if r.DiscountPercent != nil {
		discount, err := types.NewMoneyFromString(*r.DiscountPercent)
		if err != nil {
			return err
		}
		doc.DiscountPercent = discount
	}
	if r.TotalExclTax != nil {
		totalExclTax, err := types.NewMoneyFromString(*r.TotalExclTax)
		if err != nil {
			return err
		}
		vatPercent := types.Zero()
		if r.VATPercent != nil {
			vatPercent, err = types.NewMoneyFromString(*r.VATPercent)
			if err != nil {
				return err
			}
		}
		doc.SetAmounts(totalExclTax, vatPercent)
	}
	if r.DueDate != nil {
		doc.DueDate = r.DueDate
	}
	if r.PaymentMethod != nil {
		doc.PaymentMethod = r.PaymentMethod
	}
	if r.Status != nil {
		doc.Status = *r.Status
	}
	if r.SettledAt != nil {
		doc.SettledAt = r.SettledAt
	}
	if r.Comment != nil {
		doc.Comment = *r.Comment
	}
	if r.Lines != nil {
		doc.Lines = doc.Lines[:0]
		for _, line := range r.Lines {
			productID, err := id.Parse(line.ProductID)
			if err != nil {
				return err
			}
			doc.AddLine(productID, types.NewQuantityFromFloat64(line.Quantity))
		}
	}
	return nil
}

// --- Response DTOs ---

type InvoiceLineResponse struct {
	LineID    string  `json:"lineId"`
	LineNo    int     `json:"lineNo"`
	ProductID string  `json:"productId"`
	Quantity  float64 `json:"quantity"`
}

type InvoiceResponse struct {
	ID              string                 `json:"id"`
	Number          string                 `json:"number"`
	Date            time.Time              `json:"date"`
	CustomerID      string                 `json:"customerId"`
	TotalExclTax    string                 `json:"totalExclTax"`
	VATAmount       string                 `json:"vatAmount"`
	TotalInclTax    string                 `json:"totalInclTax"`
	DiscountPercent string                 `json:"discountPercent"`
	DueDate         *time.Time             `json:"dueDate,omitempty"`
	PaymentMethod   *invoice.PaymentMethod `json:"paymentMethod,omitempty"`
	SettledAt       *time.Time             `json:"settledAt,omitempty"`
	Status          invoice.Status         `json:"status"`
	Comment         string                 `json:"comment,omitempty"`
	Lines           []InvoiceLineResponse  `json:"lines"`
	Version         int                    `json:"version"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

func FromInvoice(doc *invoice.Invoice) *InvoiceResponse {
	lines := make([]InvoiceLineResponse, len(doc.Lines))
	for i, line := range doc.Lines {
		lines[i] = InvoiceLineResponse{
			LineID:    line.LineID.String(),
			LineNo:    line.LineNo,
			ProductID: line.ProductID.String(),
			Quantity:  line.Quantity.Float64(),
		}
	}

	return &InvoiceResponse{
		ID:              doc.ID.String(),
		Number:          doc.Number,
		Date:            doc.Date,
		CustomerID:      doc.CustomerID.String(),
		TotalExclTax:    doc.TotalExclTax.String(),
		VATAmount:       doc.VATAmount.String(),
		TotalInclTax:    doc.TotalInclTax.String(),
		DiscountPercent: doc.DiscountPercent.String(),
		DueDate:         doc.DueDate,
		PaymentMethod:   doc.PaymentMethod,
		SettledAt:       doc.SettledAt,
		Status:          doc.Status,
		Comment:         doc.Comment,
		Lines:           lines,
		Version:         doc.Version,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}
