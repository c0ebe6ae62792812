package invoice

import (
	"context"
	"fmt"

	"gatepass/internal/core/apperror"
	"gatepass/internal/core/id"
	"gatepass/internal/core/tx"
	"gatepass/internal/domain"
	"gatepass/pkg/logger"
	"gatepass/pkg/sequence"
)

// NumberConfig defines the invoice numbering format.
var NumberConfig = sequence.DefaultConfig("F")

// VoucherRefChecker reports how many exit vouchers reference an invoice.
// Implemented by the voucher repository.
type VoucherRefChecker interface {
	CountByInvoice(ctx context.Context, invoiceID id.ID) (int64, error)
}

// Service provides business operations for invoice documents.
type Service struct {
	repo        Repository
	numbers     *sequence.Service
	txManager   tx.Manager
	voucherRefs VoucherRefChecker
}

// NewService creates a new invoice service.
func NewService(repo Repository, numbers *sequence.Service, txManager tx.Manager, voucherRefs VoucherRefChecker) *Service {
	return &Service{
		repo:        repo,
		numbers:     numbers,
		txManager:   txManager,
		voucherRefs: voucherRefs,
	}
}

// Create creates a new invoice, assigning the next sequential number when
// none is provided.
func (s *Service) Create(ctx context.Context, doc *Invoice) error {
	if err := doc.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if doc.Number == "" {
			number, err := s.numbers.NextIdentifier(ctx, NumberConfig)
			if err != nil {
				return fmt.Errorf("generate number: %w", err)
			}
			doc.Number = number
		}

		if err := s.createWithRetry(ctx, doc); err != nil {
			return err
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "invoice created", "id", doc.ID, "number", doc.Number)
	return nil
}

// createWithRetry retries duplicate-number inserts from the highest persisted
// number, bounded by sequence.MaxRetries.
func (s *Service) createWithRetry(ctx context.Context, doc *Invoice) error {
	err := s.repo.Create(ctx, doc)
	if err == nil || !apperror.IsDuplicate(err) {
		return err
	}

	for attempt := 1; attempt <= sequence.MaxRetries; attempt++ {
		latest, lerr := s.repo.LatestNumber(ctx)
		if lerr != nil {
			return fmt.Errorf("latest number: %w", lerr)
		}
		number, nerr := sequence.Next(NumberConfig, latest)
		if nerr != nil {
			return nerr
		}
		doc.Number = number
		err = s.repo.Create(ctx, doc)
		if err == nil || !apperror.IsDuplicate(err) {
			return err
		}
	}
	return apperror.NewSequenceExhausted(NumberConfig.Prefix, sequence.MaxRetries)
}

// GetByID retrieves an invoice with its lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Invoice, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetLines(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	doc.Lines = lines

	return doc, nil
}

// GetByNumber retrieves an invoice by its document number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Invoice, error) {
	doc, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetLines(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	doc.Lines = lines

	return doc, nil
}

// Update updates an invoice document.
// Changing the lines of an invoice referenced by an exit voucher is refused:
// issued stock would no longer match the invoiced demand.
func (s *Service) Update(ctx context.Context, doc *Invoice) error {
	if err := doc.Validate(ctx); err != nil {
		return err
	}

	if err := s.guardReferenced(ctx, doc.ID, "update"); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return nil
	})
}

// Delete removes an invoice unless an exit voucher references it.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	if _, err := s.repo.GetByID(ctx, docID); err != nil {
		return err
	}

	if err := s.guardReferenced(ctx, docID, "delete"); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Delete(ctx, docID)
	})
}

func (s *Service) guardReferenced(ctx context.Context, docID id.ID, op string) error {
	if s.voucherRefs == nil {
		return nil
	}
	count, err := s.voucherRefs.CountByInvoice(ctx, docID)
	if err != nil {
		return fmt.Errorf("count voucher references: %w", err)
	}
	if count > 0 {
		return apperror.NewConflict(fmt.Sprintf("invoice is referenced by exit vouchers and cannot be %sd", op)).
			WithDetail("invoice_id", docID.String()).
			WithDetail("vouchers", count)
	}
	return nil
}

// List retrieves invoices with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Invoice], error) {
	return s.repo.List(ctx, filter)
}
