package dto

import (
	"gatepass/internal/core/id"
	"gatepass/internal/core/types"
	"gatepass/internal/domain/catalogs/product"
)

// --- Request DTOs ---

// CreateProductRequest is the request body for creating a product.
type CreateProductRequest struct {
	Code         string  `json:"code"`
	Name         string  `json:"name" binding:"required"`
	Category     *string `json:"category"`
	Description  *string `json:"description"`
	UnitPrice    string  `json:"unitPrice" binding:"required"`
	VATRate      string  `json:"vatRate"`
	Stock        float64 `json:"stock"`
	MinStock     float64 `json:"minStock"`
	ReorderPoint float64 `json:"reorderPoint"`
	SupplierID   *string `json:"supplierId"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateProductRequest) ToEntity() (*product.Product, error) {
	unitPrice, err := types.NewMoneyFromString(r.UnitPrice)
	if err != nil {
		return nil, err
	}

	vatRate := types.Zero()
	if r.VATRate != "" {
		vatRate, err = types.NewMoneyFromString(r.VATRate)
		if err != nil {
			return nil, err
		}
	}

	p := product.NewProduct(r.Name, unitPrice, vatRate)
	p.Code = r.Code
	p.Category = r.Category
	p.Description = r.Description
	p.Stock = types.NewQuantityFromFloat64(r.Stock)
	p.MinStock = types.NewQuantityFromFloat64(r.MinStock)
	p.ReorderPoint = types.NewQuantityFromFloat64(r.ReorderPoint)

	if r.SupplierID != nil && *r.SupplierID != "" {
		supplierID, err := id.Parse(*r.SupplierID)
		if err != nil {
			return nil, err
		}
		p.SupplierID = &supplierID
	}
	return p, nil
}

// UpdateProductRequest is the request body for updating a product.
// Stock is absent on purpose: stock levels change only through documents.
type UpdateProductRequest struct {
	Name         string  `json:"name" binding:"required"`
	Category     *string `json:"category"`
	Description  *string `json:"description"`
	UnitPrice    string  `json:"unitPrice" binding:"required"`
	VATRate      string  `json:"vatRate"`
	MinStock     float64 `json:"minStock"`
	ReorderPoint float64 `json:"reorderPoint"`
	SupplierID   *string `json:"supplierId"`
	Version      int     `json:"version" binding:"required,min=1"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateProductRequest) ApplyTo(p *product.Product) error {
	unitPrice, err := types.NewMoneyFromString(r.UnitPrice)
	if err != nil {
		return err
	}

	vatRate := types.Zero()
	if r.VATRate != "" {
		vatRate, err = types.NewMoneyFromString(r.VATRate)
		if err != nil {
			return err
		}
	}

	p.Name = r.Name
	p.Category = r.Category
	p.Description = r.Description
	p.UnitPrice = unitPrice
	p.VATRate = vatRate
	p.MinStock = types.NewQuantityFromFloat64(r.MinStock)
	p.ReorderPoint = types.NewQuantityFromFloat64(r.ReorderPoint)

	p.SupplierID = nil
	if r.SupplierID != nil && *r.SupplierID != "" {
		supplierID, err := id.Parse(*r.SupplierID)
		if err != nil {
			return err
		}
		p.SupplierID = &supplierID
	}
	p.Version = r.Version
	return nil
}

// --- Response DTOs ---

// ProductResponse is the response body for a product.
type ProductResponse struct {
	ID           string  `json:"id"`
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Category     *string `json:"category,omitempty"`
	Description  *string `json:"description,omitempty"`
	UnitPrice    string  `json:"unitPrice"`
	VATRate      string  `json:"vatRate"`
	Stock        float64 `json:"stock"`
	MinStock     float64 `json:"minStock"`
	ReorderPoint float64 `json:"reorderPoint"`
	SupplierID   *string `json:"supplierId,omitempty"`
	NeedsReorder bool    `json:"needsReorder"`
	Version      int     `json:"version"`
}

// FromProduct creates response DTO from domain entity.
func FromProduct(p *product.Product) *ProductResponse {
	var supplierID *string
	if p.SupplierID != nil {
		s := p.SupplierID.String()
		supplierID = &s
	}
	return &ProductResponse{
		ID:           p.ID.String(),
		Code:         p.Code,
		Name:         p.Name,
		Category:     p.Category,
		Description:  p.Description,
		UnitPrice:    p.UnitPrice.String(),
		VATRate:      p.VATRate.String(),
		Stock:        p.Stock.Float64(),
		MinStock:     p.MinStock.Float64(),
		ReorderPoint: p.ReorderPoint.Float64(),
		SupplierID:   supplierID,
		NeedsReorder: p.NeedsReorder(),
		Version:      p.Version,
	}
}
