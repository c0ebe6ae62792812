// Package counterparty provides the Counterparty catalog.
// Counterparties are the business partners behind invoices: customers
// receiving goods and suppliers providing them.
package counterparty

import (
	"context"
	"regexp"

	"gatepass/internal/core/apperror"
	"gatepass/internal/core/entity"
)

var emailRE = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Kind defines the type of counterparty.
type Kind string

const (
	KindCustomer Kind = "customer"
	KindSupplier Kind = "supplier"
	KindBoth     Kind = "both"
)

// Counterparty represents a business partner.
type Counterparty struct {
	entity.Catalog

	// Kind defines whether this is a customer, supplier, or both
	Kind Kind `db:"kind" json:"kind"`

	// TaxID is the fiscal identification number
	TaxID *string `db:"tax_id" json:"taxId,omitempty"`

	// Address is the registered address
	Address *string `db:"address" json:"address,omitempty"`

	// Phone is the primary contact phone
	Phone *string `db:"phone" json:"phone,omitempty"`

	// Email is the primary contact email
	Email *string `db:"email" json:"email,omitempty"`

	// ContactPerson is the primary contact name
	ContactPerson *string `db:"contact_person" json:"contactPerson,omitempty"`

	// Comment is a free-form note
	Comment *string `db:"comment" json:"comment,omitempty"`
}

// NewCounterparty creates a new Counterparty with required fields.
// Code is left empty for sequential assignment at create time.
func NewCounterparty(name string, kind Kind) *Counterparty {
	return &Counterparty{
		Catalog: entity.NewCatalog("", name),
		Kind:    kind,
	}
}

// Validate implements entity.Validatable interface.
func (c *Counterparty) Validate(ctx context.Context) error {
	if err := c.Catalog.Validate(ctx); err != nil {
		return err
	}

	if !isValidKind(c.Kind) {
		return apperror.NewValidation("invalid counterparty kind").
			WithDetail("field", "kind").
			WithDetail("value", string(c.Kind))
	}

	if c.Email != nil && *c.Email != "" && !emailRE.MatchString(*c.Email) {
		return apperror.NewValidation("invalid email format").
			WithDetail("field", "email")
	}

	return nil
}

// IsCustomer returns true if counterparty is a customer.
func (c *Counterparty) IsCustomer() bool {
	return c.Kind == KindCustomer || c.Kind == KindBoth
}

// IsSupplier returns true if counterparty is a supplier.
func (c *Counterparty) IsSupplier() bool {
	return c.Kind == KindSupplier || c.Kind == KindBoth
}

func isValidKind(k Kind) bool {
	switch k {
	case KindCustomer, KindSupplier, KindBoth:
		return true
	}
	return false
}
