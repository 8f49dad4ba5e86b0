package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
)

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateForeignKeyViolation  = "23503"
	sqlStateCheckViolation       = "23514"
	sqlStateNotNullViolation     = "23502"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
)

// IsUniqueViolation reports whether the provided error references a unique
// violation. When constraintName is provided, the helper also requires the
// constraint name to match.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	code, constraint := sqlState(err)
	if code != "" {
		if code != sqlStateUniqueViolation {
			return false
		}
		return constraintName == "" || constraint == constraintName || strings.Contains(err.Error(), constraintName)
	}
	msg := chainText(err)
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName)
}

// IsForeignKeyViolation reports whether err is a referential integrity failure.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if code, _ := sqlState(err); code != "" {
		return code == sqlStateForeignKeyViolation
	}
	return strings.Contains(chainText(err), "FOREIGN KEY constraint failed")
}

// IsSerializationFailure reports whether the database aborted the transaction
// because it lost a concurrent update race.
func IsSerializationFailure(err error) bool {
	if err == nil {
		return false
	}
	if code, _ := sqlState(err); code != "" {
		return code == sqlStateSerializationFailure || code == sqlStateDeadlockDetected || code == sqlStateLockNotAvailable
	}
	msg := chainText(err)
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// Classify maps raw driver errors onto typed error codes. Typed errors and
// unknown errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	switch {
	case IsSerializationFailure(err):
		return pkgerrors.Wrap(pkgerrors.CodeConcurrencyConflict, err, "transaction lost a concurrent update")
	case IsUniqueViolation(err, ""):
		_, constraint := sqlState(err)
		return pkgerrors.Wrap(pkgerrors.CodeConstraint, err, "unique constraint violated").
			WithDetails(map[string]any{"constraint": constraint})
	case IsForeignKeyViolation(err):
		_, constraint := sqlState(err)
		return pkgerrors.Wrap(pkgerrors.CodeConstraint, err, "referential constraint violated").
			WithDetails(map[string]any{"constraint": constraint})
	}
	if code, constraint := sqlState(err); code == sqlStateCheckViolation || code == sqlStateNotNullViolation {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "check constraint violated").
			WithDetails(map[string]any{"constraint": constraint})
	}
	if strings.Contains(err.Error(), "CHECK constraint failed") {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "check constraint violated")
	}
	return err
}

func sqlState(err error) (string, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint
	}
	return "", ""
}

// chainText joins the messages of every error in the unwrap chain so that
// driver text survives typed wrapping.
func chainText(err error) string {
	var b strings.Builder
	for e := err; e != nil; e = errors.Unwrap(e) {
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return b.String()
}
