package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLSTATE classes the bin tables can raise.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// StorageDetail is the driver-level view of a database error.
type StorageDetail struct {
	Code       string `json:"pg_code,omitempty"`
	Constraint string `json:"pg_constraint,omitempty"`
	Table      string `json:"pg_table,omitempty"`
	Column     string `json:"pg_column,omitempty"`
	Detail     string `json:"pg_detail,omitempty"`
	Message    string `json:"pg_message,omitempty"`
}

type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`
	StorageDetail
}

// Dump flattens err for logging.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.StorageDetail, _ = storageDetail(err)
	return d
}

func storageDetail(err error) (StorageDetail, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return StorageDetail{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return StorageDetail{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}, true
	}
	return StorageDetail{}, false
}

// WrapStorage wraps a failed write. Constraint violations become domain codes
// (a duplicate key is a conflict, a failed bin CHECK an illegal transition);
// lock contention and anything else stay a retryable dependency failure.
func WrapStorage(err error, msg string) error {
	if err == nil {
		return nil
	}
	if te := As(err); te != nil {
		return err
	}
	return Wrap(classifyStorage(err), err, msg)
}

func classifyStorage(err error) Code {
	if sd, ok := storageDetail(err); ok {
		switch sd.Code {
		case pgUniqueViolation:
			return CodeConflict
		case pgCheckViolation:
			return CodeIllegalTransition
		case pgForeignKeyViolation:
			return CodeValidation
		case pgSerializationFailure, pgDeadlockDetected:
			return CodeDependency
		}
		return CodeDependency
	}

	// sqlite reports constraint failures only in the message text.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return CodeConflict
	case strings.Contains(msg, "CHECK constraint failed"):
		return CodeIllegalTransition
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return CodeValidation
	}
	return CodeDependency
}
