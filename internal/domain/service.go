// Package domain provides core business logic interfaces and types.
package domain

import (
	"context"
	"fmt"

	"gatepass/internal/core/apperror"
	"gatepass/internal/core/entity"
	"gatepass/internal/core/id"
	"gatepass/internal/core/tx"
	"gatepass/pkg/logger"
	"gatepass/pkg/sequence"
)

// Coded is implemented by entities carrying a sequential human-readable code
// (e.g. P00001 for products).
type Coded interface {
	GetCode() string
	SetCode(code string)
}

// CatalogService provides business logic for catalog entities.
// When the entity implements Coded and its code is empty at create time,
// the service assigns the next sequential code.
type CatalogService[T entity.Validatable] struct {
	repo      CatalogRepository[T]
	txManager tx.Manager
	codes     *sequence.Service
	codeCfg   sequence.Config
	hooks     *HookRegistry[T]

	// entityName for error messages
	entityName string
}

// CatalogServiceConfig configures the catalog service.
type CatalogServiceConfig[T entity.Validatable] struct {
	Repo       CatalogRepository[T]
	TxManager  tx.Manager
	Codes      *sequence.Service
	CodeConfig sequence.Config
	EntityName string
}

// NewCatalogService creates a new catalog service.
func NewCatalogService[T entity.Validatable](cfg CatalogServiceConfig[T]) *CatalogService[T] {
	return &CatalogService[T]{
		repo:       cfg.Repo,
		txManager:  cfg.TxManager,
		codes:      cfg.Codes,
		codeCfg:    cfg.CodeConfig,
		hooks:      NewHookRegistry[T](),
		entityName: cfg.EntityName,
	}
}

// Hooks returns the hook registry for external registration.
func (s *CatalogService[T]) Hooks() *HookRegistry[T] {
	return s.hooks
}

func (s *CatalogService[T]) normalizeValidationErr(err error) error {
	if err == nil {
		return nil
	}
	// If entity already returns structured AppError, keep it.
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewValidation(err.Error())
}

func (s *CatalogService[T]) normalizeGetErr(err error, idOrCode any) error {
	if err == nil {
		return nil
	}
	// Preserve existing AppError, but ensure not-found is mapped to the correct entity name.
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound(s.entityName, idOrCode)
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewInternal(err).WithDetail("entity", s.entityName).WithDetail("id", idOrCode)
}

// Create creates a new catalog entity.
// Code assignment and insert run in one transaction. A duplicate-code insert
// means another writer took the same code; the service re-derives the code
// from the highest persisted one and retries, bounded by sequence.MaxRetries.
func (s *CatalogService[T]) Create(ctx context.Context, ent T) error {
	if err := ent.Validate(ctx); err != nil {
		return s.normalizeValidationErr(err)
	}

	if err := s.hooks.Run(ctx, BeforeCreate, ent); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		coded, hasCode := any(ent).(Coded)
		if hasCode && coded.GetCode() == "" {
			code, err := s.codes.NextIdentifier(ctx, s.codeCfg)
			if err != nil {
				return fmt.Errorf("allocate %s code: %w", s.entityName, err)
			}
			coded.SetCode(code)
		}

		err := s.repo.Create(ctx, ent)
		if err == nil {
			return nil
		}
		if !hasCode || !apperror.IsDuplicate(err) {
			return fmt.Errorf("create %s: %w", s.entityName, err)
		}

		// Counter collided with a manually assigned or migrated code.
		for attempt := 1; attempt <= sequence.MaxRetries; attempt++ {
			latest, lerr := s.repo.LatestCode(ctx)
			if lerr != nil {
				return fmt.Errorf("latest %s code: %w", s.entityName, lerr)
			}
			code, nerr := sequence.Next(s.codeCfg, latest)
			if nerr != nil {
				return nerr
			}
			coded.SetCode(code)
			err = s.repo.Create(ctx, ent)
			if err == nil {
				return nil
			}
			if !apperror.IsDuplicate(err) {
				return fmt.Errorf("create %s: %w", s.entityName, err)
			}
		}
		return apperror.NewSequenceExhausted(s.codeCfg.Prefix, sequence.MaxRetries)
	})
	if err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, AfterCreate, ent); err != nil {
		// Entity is already created; hook failures are advisory.
		logger.Warn(ctx, "after-create hook failed", "entity", s.entityName, "error", err)
	}

	return nil
}

// GetByID retrieves entity by ID.
func (s *CatalogService[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	ent, err := s.repo.GetByID(ctx, entityID)
	if err != nil {
		return ent, s.normalizeGetErr(err, entityID.String())
	}
	return ent, nil
}

// GetByCode retrieves entity by code.
func (s *CatalogService[T]) GetByCode(ctx context.Context, code string) (T, error) {
	ent, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return ent, s.normalizeGetErr(err, code)
	}
	return ent, nil
}

// Update updates an existing entity.
func (s *CatalogService[T]) Update(ctx context.Context, ent T) error {
	if err := ent.Validate(ctx); err != nil {
		return s.normalizeValidationErr(err)
	}

	if err := s.hooks.Run(ctx, BeforeUpdate, ent); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, ent); err != nil {
			return fmt.Errorf("update %s: %w", s.entityName, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, AfterUpdate, ent); err != nil {
		logger.Warn(ctx, "after-update hook failed", "entity", s.entityName, "error", err)
	}

	return nil
}

// Delete removes the entity permanently.
// Before-delete hooks see the loaded entity, so referential guards
// (e.g. a product still present on documents) can veto the delete.
func (s *CatalogService[T]) Delete(ctx context.Context, entityID id.ID) error {
	ent, err := s.repo.GetByID(ctx, entityID)
	if err != nil {
		return s.normalizeGetErr(err, entityID.String())
	}

	if err := s.hooks.Run(ctx, BeforeDelete, ent); err != nil {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, entityID); err != nil {
			return fmt.Errorf("delete %s: %w", s.entityName, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, AfterDelete, ent); err != nil {
		logger.Warn(ctx, "after-delete hook failed", "entity", s.entityName, "error", err)
	}

	return nil
}

// List retrieves entities with filtering.
func (s *CatalogService[T]) List(ctx context.Context, filter ListFilter) (ListResult[T], error) {
	return s.repo.List(ctx, filter)
}

// Exists checks if entity exists.
func (s *CatalogService[T]) Exists(ctx context.Context, entityID id.ID) (bool, error) {
	return s.repo.Exists(ctx, entityID)
}
