package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a statement that must match a row matched none.
var ErrNotFound = errors.New("not found")

// ConnectivityError means no usable connection: pool exhausted past the
// caller's deadline, the server refused us, or the link dropped.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string { return "postgres connectivity: " + e.Err.Error() }
func (e *ConnectivityError) Unwrap() error { return e.Err }

// StatementError means the server rejected the statement itself.
type StatementError struct {
	Code       string // SQLSTATE, empty for client-side rejections
	Constraint string
	Err        error
}

func (e *StatementError) Error() string {
	if e.Code == "" {
		return "postgres statement rejected: " + e.Err.Error()
	}
	return fmt.Sprintf("postgres statement rejected (SQLSTATE %s): %v", e.Code, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// TxError marks a failure of the transaction itself rather than of a
// statement run inside it.
type TxError struct {
	Op  string // "begin" or "commit"
	Err error
}

func (e *TxError) Error() string { return e.Op + " transaction: " + e.Err.Error() }
func (e *TxError) Unwrap() error { return e.Err }

// TxOp returns the transaction phase that failed, or "" when err did not
// come from begin or commit.
func TxOp(err error) string {
	var te *TxError
	if errors.As(err, &te) {
		return te.Op
	}
	return ""
}

// Retryable reports whether running the whole transaction again may succeed.
func (e *StatementError) Retryable() bool {
	return e.Code == "40001" || e.Code == "40P01"
}

// Classify maps a pgx error onto the error taxonomy. Already classified
// errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var (
		ce *ConnectivityError
		se *StatementError
	)
	if errors.As(err, &ce) || errors.As(err, &se) || errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if connectivityCode(pgErr.Code) {
			return &ConnectivityError{Err: err}
		}
		return &StatementError{Code: pgErr.Code, Constraint: pgErr.ConstraintName, Err: err}
	}

	var (
		connErr *pgconn.ConnectError
		netErr  net.Error
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &ConnectivityError{Err: err}
	case errors.As(err, &connErr), errors.As(err, &netErr):
		return &ConnectivityError{Err: err}
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), pgconn.Timeout(err):
		return &ConnectivityError{Err: err}
	}
	return &StatementError{Err: err}
}

// IsRetryable reports whether err carries a retryable StatementError
// anywhere in its chain.
func IsRetryable(err error) bool {
	var se *StatementError
	return errors.As(err, &se) && se.Retryable()
}

// IsConstraint reports whether err is a violation of the named constraint.
func IsConstraint(err error, name string) bool {
	var se *StatementError
	return errors.As(err, &se) && se.Constraint == name
}

func connectivityCode(code string) bool {
	switch {
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "53"):
		return true
	case code == "57P01", code == "57P02", code == "57P03":
		return true
	}
	return false
}
