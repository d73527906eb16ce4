package errors

import (
	"context"
	"database/sql"
	"errors"
	"regexp"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// reKeyField extracts the field name from a unique violation detail message:
// "Key (field)=(value) already exists.".
var reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)

// MapDBError maps database errors to AppError instances.
// It handles common database error patterns including:
// - sql.ErrNoRows / pgx.ErrNoRows → NotFound
// - Unique constraint violations → Conflict
// - Check/NOT NULL violations → Validation
// - Context timeouts/cancellations → Timeout/Canceled
//
// Any other database-level failure becomes a Store error, since without
// durable state the receipt cannot recover.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out. Please try again.",
			Cause:   err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{
			Code:    ErrCodeCanceled,
			Message: "Request was canceled.",
			Cause:   err,
		}
	}

	// database/sql surfaces sql.ErrNoRows; pgx.ErrNoRows wraps it, so the
	// sql check also covers native pgx calls. The reverse does not hold.
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return &AppError{
			Code:    ErrCodeNotFound,
			Message: "Receipt not found",
			Cause:   err,
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}

	// Unrecognized database errors are store-level failures.
	return &AppError{
		Code:    ErrCodeStore,
		Message: "Receipt store unavailable.",
		Cause:   err,
	}
}

// mapPgError maps PostgreSQL-specific errors to AppError instances.
func mapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return mapUniqueViolation(pgErr)
	case pgerrcode.CheckViolation:
		return &AppError{
			Code:    ErrCodeValidation,
			Message: "Invalid data. Please check your input.",
			Field:   pgErr.ColumnName,
			Cause:   pgErr,
		}
	case pgerrcode.NotNullViolation:
		return &AppError{
			Code:    ErrCodeValidation,
			Message: "This field is required.",
			Field:   pgErr.ColumnName,
			Cause:   pgErr,
		}
	default:
		return &AppError{
			Code:    ErrCodeStore,
			Message: "A database error occurred. Please try again.",
			Cause:   pgErr,
		}
	}
}

// mapUniqueViolation maps unique constraint violations to Conflict errors.
func mapUniqueViolation(pgErr *pgconn.PgError) error {
	field := pgErr.ColumnName

	// Fallback: parse Detail for "Key (field)=(value) already exists.",
	// which is more reliable than constraint-name inference.
	if field == "" && pgErr.Detail != "" {
		if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
			field = m[1]
		}
	}

	return &AppError{
		Code:    ErrCodeConflict,
		Message: "This value already exists. Please choose a different one.",
		Field:   field,
		Cause:   pgErr,
	}
}
