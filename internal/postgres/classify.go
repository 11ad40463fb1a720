// Package postgres owns the destination database: pool construction, the
// bio update statement, error classification, and the dockerised dev
// instance.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Class buckets a database failure for retry and abort decisions.
type Class string

const (
	// ClassPermanent: the statement can never succeed (constraint
	// violation, missing relation, bad literal). The item fails; the run
	// continues.
	ClassPermanent Class = "permanent"

	// ClassSystemic: the connection itself is misconfigured (auth, SSL,
	// unknown role or database). The whole run aborts.
	ClassSystemic Class = "systemic"

	// ClassTransient: worth another try (timeouts, deadlocks, dropped
	// connections).
	ClassTransient Class = "transient"
)

// SQLSTATE codes that indicate a misconfigured connection.
var systemicCodes = map[string]bool{
	"28000": true, // invalid_authorization_specification
	"28P01": true, // invalid_password
	"3D000": true, // invalid_catalog_name (unknown database)
	"42501": true, // insufficient_privilege
}

// Classify buckets a database error.
func Classify(err error) Class {
	if err == nil {
		return ClassPermanent
	}
	if errors.Is(err, context.Canceled) {
		return ClassPermanent
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := pgErr.Code
		switch {
		case systemicCodes[code]:
			return ClassSystemic
		case strings.HasPrefix(code, "23"): // integrity constraint violations
			return ClassPermanent
		case strings.HasPrefix(code, "42"): // undefined table/column, syntax
			return ClassPermanent
		case code == "22P02": // invalid_text_representation (bad UUID)
			return ClassPermanent
		case strings.HasPrefix(code, "22"): // other data exceptions
			return ClassPermanent
		default:
			// Connection failures (08xxx), serialization (40001),
			// deadlock (40P01), cancelled statements (57xxx) and
			// anything unlisted: retry.
			return ClassTransient
		}
	}

	// Connection-phase failures never reach the server, so there is no
	// SQLSTATE; fall back to the message.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "password authentication failed"),
		strings.Contains(msg, "ssl is not enabled"),
		strings.Contains(msg, "ssl required"),
		strings.Contains(msg, "role") && strings.Contains(msg, "does not exist"),
		strings.Contains(msg, "database") && strings.Contains(msg, "does not exist"),
		strings.Contains(msg, "permission denied"):
		return ClassSystemic
	default:
		return ClassTransient
	}
}

// SystemicError marks a failure that must abort the run.
type SystemicError struct {
	Err error
}

func (e *SystemicError) Error() string {
	return fmt.Sprintf("systemic database error: %v", e.Err)
}

func (e *SystemicError) Unwrap() error {
	return e.Err
}

// IsSystemic reports whether err carries a SystemicError.
func IsSystemic(err error) bool {
	var se *SystemicError
	return errors.As(err, &se)
}
