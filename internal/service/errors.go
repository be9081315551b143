package service

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound            = errors.New("document not found")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrInvalidCollection   = errors.New("invalid collection name")
	ErrInvalidID           = errors.New("invalid document id")
	ErrInvalidPayload      = errors.New("invalid document payload")
	ErrListenUnavailable   = errors.New("change listeners are not configured")
	ErrBatchCommitted      = errors.New("batch already committed")
	ErrReaderNil           = errors.New("reader is nil")
)

// pgUniqueViolation is the SQLSTATE Postgres reports for unique index collisions.
const pgUniqueViolation = "23505"

// translateErr maps persistence errors onto the service sentinels.
func translateErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%s: %w: %w", op, ErrConstraintViolation, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
