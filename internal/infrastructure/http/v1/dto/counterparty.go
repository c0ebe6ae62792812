package dto

import (
	"gatepass/internal/domain/catalogs/counterparty"
)

// --- Request DTOs ---

// CreateCounterpartyRequest is the request body for creating a counterparty.
type CreateCounterpartyRequest struct {
	Code          string             `json:"code"`
	Name          string             `json:"name" binding:"required"`
	Kind          counterparty.Kind  `json:"kind" binding:"required"`
	TaxID         *string            `json:"taxId"`
	Address       *string            `json:"address"`
	Phone         *string            `json:"phone"`
	Email         *string            `json:"email"`
	ContactPerson *string            `json:"contactPerson"`
	Comment       *string            `json:"comment"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateCounterpartyRequest) ToEntity() *counterparty.Counterparty {
	cp := counterparty.NewCounterparty(r.Name, r.Kind)
	cp.Code = r.Code
	cp.TaxID = r.TaxID
	cp.Address = r.Address
	cp.Phone = r.Phone
	cp.Email = r.Email
	cp.ContactPerson = r.ContactPerson
	cp.Comment = r.Comment
	return cp
}

// UpdateCounterpartyRequest is the request body for updating a counterparty.
type UpdateCounterpartyRequest struct {
	Name          string            `json:"name" binding:"required"`
	Kind          counterparty.Kind `json:"kind" binding:"required"`
	TaxID         *string           `json:"taxId"`
	Address       *string           `json:"address"`
	Phone         *string           `json:"phone"`
	Email         *string           `json:"email"`
	ContactPerson *string           `json:"contactPerson"`
	Comment       *string           `json:"comment"`
	Version       int               `json:"version" binding:"required,min=1"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateCounterpartyRequest) ApplyTo(cp *counterparty.Counterparty) {
	cp.Name = r.Name
	cp.Kind = r.Kind
	cp.TaxID = r.TaxID
	cp.Address = r.Address
	cp.Phone = r.Phone
	cp.Email = r.Email
	cp.ContactPerson = r.ContactPerson
	cp.Comment = r.Comment
	cp.Version = r.Version
}

// --- Response DTOs ---

// CounterpartyResponse is the response body for a counterparty.
type CounterpartyResponse struct {
	ID            string            `json:"id"`
	Code          string            `json:"code"`
	Name          string            `json:"name"`
	Kind          counterparty.Kind `json:"kind"`
	TaxID         *string           `json:"taxId,omitempty"`
	Address       *string           `json:"address,omitempty"`
	Phone         *string           `json:"phone,omitempty"`
	Email         *string           `json:"email,omitempty"`
	ContactPerson *string           `json:"contactPerson,omitempty"`
	Comment       *string           `json:"comment,omitempty"`
	Version       int               `json:"version"`
}

// FromCounterparty creates response DTO from domain entity.
func FromCounterparty(cp *counterparty.Counterparty) *CounterpartyResponse {
	return &CounterpartyResponse{
		ID:            cp.ID.String(),
		Code:          cp.Code,
		Name:          cp.Name,
		Kind:          cp.Kind,
		TaxID:         cp.TaxID,
		Address:       cp.Address,
		Phone:         cp.Phone,
		Email:         cp.Email,
		ContactPerson: cp.ContactPerson,
		Comment:       cp.Comment,
		Version:       cp.Version,
	}
}
