package voucher

import (
	"context"
	"fmt"

	"gatepass/internal/core/apperror"
	"gatepass/internal/core/id"
	"gatepass/internal/core/tx"
	"gatepass/internal/domain"
	"gatepass/internal/domain/documents/invoice"
	"gatepass/internal/domain/ledger"
	"gatepass/pkg/logger"
	"gatepass/pkg/sequence"
)

// InvoiceReader resolves invoice references to full documents.
// Implemented by the invoice service.
type InvoiceReader interface {
	GetByID(ctx context.Context, docID id.ID) (*invoice.Invoice, error)
}

// AuditLogger records voucher lifecycle events with their stock snapshots.
// Implementations must tolerate being called inside a transaction.
type AuditLogger interface {
	Record(ctx context.Context, action string, doc *ExitVoucher, snapshots []ledger.StockSnapshot) error
}

// Service provides business operations for exit voucher documents.
//
// Every mutating operation runs as one transaction covering document rows,
// voucher lines, stock levels and the movement journal. A failure at any
// point rolls all of it back, so stock and vouchers can never diverge.
type Service struct {
	repo      Repository
	invoices  InvoiceReader
	ledger    *ledger.Service
	validator *ledger.Validator
	numbers   *sequence.Service
	txManager tx.Manager
	audit     AuditLogger // optional
}

// NewService creates a new exit voucher service.
func NewService(
	repo Repository,
	invoices InvoiceReader,
	ledgerSvc *ledger.Service,
	validator *ledger.Validator,
	numbers *sequence.Service,
	txManager tx.Manager,
	audit AuditLogger,
) *Service {
	return &Service{
		repo:      repo,
		invoices:  invoices,
		ledger:    ledgerSvc,
		validator: validator,
		numbers:   numbers,
		txManager: txManager,
		audit:     audit,
	}
}

// Create validates the referenced invoices, checks aggregated stock
// availability, issues the stock and persists the voucher, all atomically.
//
// The voucher number comes from the atomic counter. If the insert still hits
// a duplicate number (e.g. a migrated voucher squatting on the value), the
// number is re-derived from the highest persisted one and the insert retried,
// bounded by sequence.MaxRetries. Stock is issued once regardless of retries.
func (s *Service) Create(ctx context.Context, doc *ExitVoucher) error {
	if err := doc.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		lines, demands, err := s.resolveInvoices(ctx, doc.InvoiceIDs)
		if err != nil {
			return err
		}

		if err := s.validator.Validate(ctx, demands); err != nil {
			return err
		}

		snapshots, err := s.ledger.Apply(ctx, doc.ID, issueDeltas(demands))
		if err != nil {
			return err
		}

		doc.Lines = lines
		doc.RecalculateTotals()

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

		return s.recordAudit(ctx, "create", doc, snapshots)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "exit voucher created",
		"id", doc.ID,
		"number", doc.Number,
		"invoices", len(doc.InvoiceIDs),
		"total_quantity", doc.TotalQuantity,
	)
	return nil
}

// createWithRetry retries duplicate-number inserts from the highest persisted
// number. Only the document insert is retried; stock was already issued under
// this transaction and must not be re-applied.
func (s *Service) createWithRetry(ctx context.Context, doc *ExitVoucher) error {
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

// GetByID retrieves an exit voucher with its lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*ExitVoucher, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	return s.loadLines(ctx, doc)
}

// GetByNumber retrieves an exit voucher by its document number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*ExitVoucher, error) {
	doc, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return s.loadLines(ctx, doc)
}

// Update replaces the voucher's invoice set: the previous issue is reverted,
// the new demand validated against the restored levels and issued, and the
// document updated, all in one transaction. The voucher keeps its number.
func (s *Service) Update(ctx context.Context, doc *ExitVoucher) error {
	if err := doc.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByID(ctx, doc.ID)
		if err != nil {
			return err
		}
		doc.Number = existing.Number
		doc.CreatedAt = existing.CreatedAt

		if err := s.ledger.Revert(ctx, doc.ID); err != nil {
			return err
		}

		lines, demands, err := s.resolveInvoices(ctx, doc.InvoiceIDs)
		if err != nil {
			return err
		}
		if err := s.validator.Validate(ctx, demands); err != nil {
			return err
		}
		snapshots, err := s.ledger.Apply(ctx, doc.ID, issueDeltas(demands))
		if err != nil {
			return err
		}

		doc.Lines = lines
		doc.RecalculateTotals()

		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}

		return s.recordAudit(ctx, "update", doc, snapshots)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "exit voucher updated", "id", doc.ID, "number", doc.Number)
	return nil
}

// Delete reverts the voucher's stock issue and removes the document.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	var number string
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetByID(ctx, docID)
		if err != nil {
			return err
		}
		number = doc.Number

		if err := s.ledger.Revert(ctx, docID); err != nil {
			return err
		}

		if err := s.repo.Delete(ctx, docID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}

		return s.recordAudit(ctx, "delete", doc, nil)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "exit voucher deleted", "id", docID, "number", number)
	return nil
}

// List retrieves exit vouchers with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*ExitVoucher], error) {
	return s.repo.List(ctx, filter)
}

// GetMovements returns the stock movement journal recorded by a voucher.
func (s *Service) GetMovements(ctx context.Context, docID id.ID) ([]ledger.StockSnapshot, error) {
	movements, err := s.ledger.GetMovementsByRecorder(ctx, docID)
	if err != nil {
		return nil, err
	}
	snapshots := make([]ledger.StockSnapshot, 0, len(movements))
	for _, m := range movements {
		snapshots = append(snapshots, ledger.StockSnapshot{
			ProductID: m.ProductID,
			Before:    m.StockBefore,
			After:     m.StockAfter,
			Delta:     m.Delta,
		})
	}
	return snapshots, nil
}

// resolveInvoices loads each referenced invoice and materializes voucher
// lines plus the stock demand they represent. A missing invoice fails with
// InvalidReference carrying the offending identifier.
func (s *Service) resolveInvoices(ctx context.Context, invoiceIDs []id.ID) ([]Line, []ledger.Demand, error) {
	var lines []Line
	var demands []ledger.Demand

	for _, invoiceID := range invoiceIDs {
		inv, err := s.invoices.GetByID(ctx, invoiceID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return nil, nil, apperror.NewInvalidReference("invoice", invoiceID.String())
			}
			return nil, nil, fmt.Errorf("resolve invoice %s: %w", invoiceID, err)
		}

		for _, il := range inv.Lines {
			lines = append(lines, Line{
				LineID:    id.New(),
				LineNo:    len(lines) + 1,
				InvoiceID: inv.ID,
				ProductID: il.ProductID,
				Quantity:  il.Quantity,
			})
			demands = append(demands, ledger.Demand{
				ProductID: il.ProductID,
				Quantity:  il.Quantity,
			})
		}
	}

	if len(lines) == 0 {
		return nil, nil, apperror.NewValidation("referenced invoices have no lines").
			WithDetail("field", "invoiceIds")
	}

	return lines, demands, nil
}

func (s *Service) loadLines(ctx context.Context, doc *ExitVoucher) (*ExitVoucher, error) {
	lines, err := s.repo.GetLines(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	doc.Lines = lines
	doc.SyncInvoiceIDs()
	return doc, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, doc *ExitVoucher, snapshots []ledger.StockSnapshot) error {
	if s.audit == nil {
		return nil
	}
	if err := s.audit.Record(ctx, action, doc, snapshots); err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}

// issueDeltas converts positive demands into negative stock deltas.
func issueDeltas(demands []ledger.Demand) []ledger.Delta {
	deltas := make([]ledger.Delta, 0, len(demands))
	for _, d := range demands {
		deltas = append(deltas, ledger.Delta{ProductID: d.ProductID, Quantity: d.Quantity.Neg()})
	}
	return deltas
}
