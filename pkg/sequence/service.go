// Package sequence provides sequential human-readable identifiers for
// catalogs and documents (e.g. BS00001 for exit vouchers, P00001 for products).
//
// The primary allocation path is a database-backed atomic counter
// (UPSERT ... RETURNING). The pure Next function exists for the fallback path:
// re-deriving the next value from the highest persisted identifier after a
// uniqueness collision.
package sequence

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"gatepass/internal/core/apperror"
)

// Config holds identifier format configuration.
type Config struct {
	// Prefix added to all identifiers (e.g., "BS", "P")
	Prefix string

	// PadWidth is the minimum digit width (default 5)
	PadWidth int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:   prefix,
		PadWidth: 5,
	}
}

// Format renders a counter value as a full identifier.
func Format(cfg Config, n int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}
	return fmt.Sprintf("%s%0*d", cfg.Prefix, padWidth, n)
}

// Parse extracts the numeric counter from a formatted identifier.
// Fails with MalformedIdentifier if the value does not match the expected
// prefix+digits pattern.
func Parse(cfg Config, identifier string) (int64, error) {
	digits, ok := strings.CutPrefix(identifier, cfg.Prefix)
	if !ok || digits == "" {
		return 0, apperror.NewMalformedIdentifier(identifier).
			WithDetail("expected_prefix", cfg.Prefix)
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 0 {
		return 0, apperror.NewMalformedIdentifier(identifier).
			WithDetail("expected_prefix", cfg.Prefix)
	}

	return n, nil
}

// Next returns the identifier following the latest persisted one.
// An empty latest means no identifier exists yet; the counter starts at 1.
//
// Callers must treat a uniqueness violation on insert as a race: re-read the
// now-current latest identifier and call Next again, bounded by MaxRetries.
func Next(cfg Config, latest string) (string, error) {
	if latest == "" {
		return Format(cfg, 1), nil
	}

	n, err := Parse(cfg, latest)
	if err != nil {
		return "", err
	}

	return Format(cfg, n+1), nil
}

// MaxRetries bounds the collision-retry loop before SequenceExhausted.
const MaxRetries = 5

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service allocates identifiers from an atomic database counter.
// One sys_sequences row per prefix; the UPSERT is a single atomic increment,
// so concurrent callers never observe the same value.
type Service struct {
	querier Querier
}

// New creates a new sequence service.
func New(querier Querier) *Service {
	return &Service{querier: querier}
}

// NextIdentifier reserves and formats the next identifier for cfg.Prefix.
// Gaps may occur when the surrounding transaction rolls back; gaps are
// acceptable, reuse is not.
func (s *Service) NextIdentifier(ctx context.Context, cfg Config) (string, error) {
	if s == nil {
		return "", fmt.Errorf("sequence service is not initialized")
	}

	var num int64
	err := s.querier.QueryRow(ctx, `
        INSERT INTO sys_sequences (key, current_val)
        VALUES ($1, 1)
        ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
        RETURNING current_val
	`, cfg.Prefix).Scan(&num)
	if err != nil {
		return "", fmt.Errorf("next identifier: %w", err)
	}

	return Format(cfg, num), nil
}

// SetNextValue sets the counter so the next allocation returns value+1.
// Used for migrations and seeding.
func (s *Service) SetNextValue(ctx context.Context, cfg Config, value int64) error {
	var result int64
	return s.querier.QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = $2
		RETURNING current_val
	`, cfg.Prefix, value).Scan(&result)
}
