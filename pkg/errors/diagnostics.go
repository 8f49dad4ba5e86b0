package errors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Diagnostics is the log-facing summary of an error chain: its typed code and
// the Postgres details of the first driver error found in it.
type Diagnostics struct {
	Code         Code
	Retryable    bool
	Depth        int
	PGCode       string
	PGConstraint string
	PGTable      string
	PGDetail     string
}

// HasPG reports whether a Postgres driver error was found in the chain.
func (d Diagnostics) HasPG() bool {
	return d.PGCode != ""
}

func Diagnose(err error) Diagnostics {
	var d Diagnostics
	if err == nil {
		return d
	}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
		d.Retryable = MetadataFor(typed.Code()).Retryable
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Depth++
	}

	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgErr):
		d.PGCode = pgErr.Code
		d.PGConstraint = pgErr.ConstraintName
		d.PGTable = pgErr.TableName
		d.PGDetail = pgErr.Detail
	case errors.As(err, &pqErr):
		d.PGCode = string(pqErr.Code)
		d.PGConstraint = pqErr.Constraint
		d.PGTable = pqErr.Table
		d.PGDetail = pqErr.Detail
	}
	return d
}
