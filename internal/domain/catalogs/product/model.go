// Package product provides the Product catalog.
// Products carry their current stock level; the stock ledger is the only
// writer of that field.
package product

import (
	"context"

	"github.com/shopspring/decimal"

	"gatepass/internal/core/apperror"
	"gatepass/internal/core/entity"
	"gatepass/internal/core/id"
	"gatepass/internal/core/types"
)

// Product represents a stockable item.
type Product struct {
	entity.Catalog

	// Category is a free-form grouping label
	Category *string `db:"category" json:"category,omitempty"`

	// Description is a detailed description
	Description *string `db:"description" json:"description,omitempty"`

	// UnitPrice is the price per unit excluding tax
	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`

	// VATRate is the applicable VAT percentage (e.g. 19 for 19%)
	VATRate types.Money `db:"vat_rate" json:"vatRate"`

	// Stock is the current stock level. Updated only through the stock
	// ledger; direct writes bypass the movement journal.
	Stock types.Quantity `db:"stock" json:"stock"`

	// MinStock is the minimum stock level to keep
	MinStock types.Quantity `db:"min_stock" json:"minStock"`

	// ReorderPoint triggers the low-stock listing when stock falls below it
	ReorderPoint types.Quantity `db:"reorder_point" json:"reorderPoint"`

	// SupplierID is a weak reference to the supplying counterparty, not
	// enforced by a foreign key
	SupplierID *id.ID `db:"supplier_id" json:"supplierId,omitempty"`
}

// NewProduct creates a new Product with required fields.
// Code is left empty for sequential assignment at create time.
func NewProduct(name string, unitPrice, vatRate types.Money) *Product {
	return &Product{
		Catalog:   entity.NewCatalog("", name),
		UnitPrice: unitPrice,
		VATRate:   vatRate,
	}
}

// Validate implements entity.Validatable interface.
func (p *Product) Validate(ctx context.Context) error {
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}

	if p.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price cannot be negative").
			WithDetail("field", "unitPrice")
	}

	if p.VATRate.IsNegative() {
		return apperror.NewValidation("VAT rate cannot be negative").
			WithDetail("field", "vatRate")
	}

	if p.MinStock.IsNegative() || p.ReorderPoint.IsNegative() {
		return apperror.NewValidation("stock thresholds cannot be negative").
			WithDetail("field", "minStock")
	}

	return nil
}

// UnitPriceInclTax returns the unit price with VAT applied.
func (p *Product) UnitPriceInclTax() types.Money {
	multiplier := decimal.NewFromInt(1).Add(p.VATRate.Div(decimal.NewFromInt(100)))
	return p.UnitPrice.Mul(multiplier)
}

// NeedsReorder returns true when stock has fallen to the reorder point.
func (p *Product) NeedsReorder() bool {
	return p.Stock <= p.ReorderPoint
}
