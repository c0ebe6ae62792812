// Package invoice provides the customer Invoice document.
// Invoices carry the product demand that exit vouchers issue from stock.
package invoice

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"gatepass/internal/core/apperror"
	"gatepass/internal/core/entity"
	"gatepass/internal/core/id"
	"gatepass/internal/core/types"
)

// PaymentMethod defines how an invoice is settled.
type PaymentMethod string

const (
	PaymentCheque   PaymentMethod = "cheque"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentCash     PaymentMethod = "cash"
	PaymentDraft    PaymentMethod = "draft"
)

// Status defines the settlement state of an invoice.
type Status string

const (
	StatusPending       Status = "pending"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
)

// Invoice represents a customer invoice.
type Invoice struct {
	entity.Document

	// Customer reference
	CustomerID id.ID `db:"customer_id" json:"customerId"`

	// Amounts
	TotalExclTax types.Money `db:"total_excl_tax" json:"totalExclTax"`
	VATAmount    types.Money `db:"vat_amount" json:"vatAmount"`
	TotalInclTax types.Money `db:"total_incl_tax" json:"totalInclTax"`

	// DiscountPercent is an optional discount (e.g. 10 for 10%)
	DiscountPercent types.Money `db:"discount_percent" json:"discountPercent"`

	// Settlement
	DueDate       *time.Time     `db:"due_date" json:"dueDate,omitempty"`
	PaymentMethod *PaymentMethod `db:"payment_method" json:"paymentMethod,omitempty"`
	SettledAt     *time.Time     `db:"settled_at" json:"settledAt,omitempty"`
	Status        Status         `db:"status" json:"status"`

	// Table part: invoiced products
	Lines []Line `db:"-" json:"lines"`
}

// Line represents an invoiced product with its quantity.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ProductID id.ID          `db:"product_id" json:"productId"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
}

// NewInvoice creates a new pending invoice.
func NewInvoice(customerID id.ID, date time.Time) *Invoice {
	return &Invoice{
		Document:   entity.NewDocument(date),
		CustomerID: customerID,
		Status:     StatusPending,
		Lines:      make([]Line, 0),
	}
}

// AddLine appends an invoiced product.
func (inv *Invoice) AddLine(productID id.ID, quantity types.Quantity) {
	inv.Lines = append(inv.Lines, Line{
		LineID:    id.New(),
		LineNo:    len(inv.Lines) + 1,
		ProductID: productID,
		Quantity:  quantity,
	})
}

// SetAmounts sets invoice amounts from the pre-tax total and VAT percentage,
// applying the discount before tax.
func (inv *Invoice) SetAmounts(totalExclTax types.Money, vatPercent types.Money) {
	if inv.DiscountPercent.IsPositive() {
		factor := decimal.NewFromInt(1).Sub(inv.DiscountPercent.Div(decimal.NewFromInt(100)))
		totalExclTax = totalExclTax.Mul(factor)
	}
	inv.TotalExclTax = totalExclTax
	inv.VATAmount = totalExclTax.Mul(vatPercent.Div(decimal.NewFromInt(100)))
	inv.TotalInclTax = inv.TotalExclTax.Add(inv.VATAmount)
}

// Validate implements entity.Validatable.
func (inv *Invoice) Validate(ctx context.Context) error {
	if err := inv.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(inv.CustomerID) {
		return apperror.NewValidation("customer is required").
			WithDetail("field", "customerId")
	}

	if !isValidStatus(inv.Status) {
		return apperror.NewValidation("invalid invoice status").
			WithDetail("field", "status").
			WithDetail("value", string(inv.Status))
	}

	if inv.PaymentMethod != nil && !isValidPaymentMethod(*inv.PaymentMethod) {
		return apperror.NewValidation("invalid payment method").
			WithDetail("field", "paymentMethod").
			WithDetail("value", string(*inv.PaymentMethod))
	}

	if inv.TotalExclTax.IsNegative() || inv.TotalInclTax.IsNegative() {
		return apperror.NewValidation("invoice amounts cannot be negative").
			WithDetail("field", "totalExclTax")
	}

	if len(inv.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	for i, line := range inv.Lines {
		if id.IsNil(line.ProductID) {
			return apperror.NewValidation("product is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}

func isValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusPartiallyPaid, StatusPaid:
		return true
	}
	return false
}

func isValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentCheque, PaymentTransfer, PaymentCash, PaymentDraft:
		return true
	}
	return false
}
