package store

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the store reacts to.
const (
	codeInvalidPassword      = "28P01"
	codeInvalidAuthorization = "28000"
	codeInvalidCatalogName   = "3D000"
	codeDuplicateDatabase    = "42P04"
	CodeUniqueViolation      = "23505"
	CodeForeignKeyViolation  = "23503"
)

// ErrConnectivity matches every *ConnectivityError.
var ErrConnectivity = errors.New("database unreachable")

// Kind classifies why a connection could not be established.
type Kind string

const (
	KindAuthFailed        Kind = "auth_failed"
	KindConnectionRefused Kind = "connection_refused"
	KindUnknownDatabase   Kind = "unknown_database"
	KindUnclassified      Kind = "unclassified"
)

// ConnectivityError is an unrecoverable failure to reach the database.
type ConnectivityError struct {
	Kind Kind
	Err  error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrConnectivity, e.Kind, e.Err)
}

func (e *ConnectivityError) Unwrap() []error { return []error{ErrConnectivity, e.Err} }

// Classify wraps err in a ConnectivityError with the matching Kind.
func Classify(err error) *ConnectivityError {
	var ce *ConnectivityError
	if errors.As(err, &ce) {
		return ce
	}
	return &ConnectivityError{Kind: kindOf(err), Err: err}
}

func kindOf(err error) Kind {
	if code := SQLState(err); code != "" {
		switch code {
		case codeInvalidPassword, codeInvalidAuthorization:
			return KindAuthFailed
		case codeInvalidCatalogName:
			return KindUnknownDatabase
		}
		return KindUnclassified
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) {
		return KindConnectionRefused
	}
	return KindUnclassified
}

// SQLState returns the server error code carried by err, if any.
func SQLState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
