package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"makosite/internal/apperr"
)

// Domain-level database error sentinels.
var (
	// ErrLinkNotFound matches apperr.ErrNotFound.
	ErrLinkNotFound = fmt.Errorf("link %w", apperr.ErrNotFound)
)

// classify wraps a pgx error with the matching apperr sentinel. Server-side
// errors (constraint violations, bad input) are rejections; everything else
// is treated as a connectivity failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrLinkNotFound
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%w: %s (SQLSTATE %s)", apperr.ErrRemoteRejected, pgErr.Message, pgErr.Code)
	}
	return fmt.Errorf("%w: %w", apperr.ErrTransient, err)
}
