// Package store holds the boundary adapters between the relational store and
// the domain packages.
package store

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLSTATE for unique_violation.
const uniqueViolation = "23505"

type ConflictKind string

const (
	ConflictEmail    ConflictKind = "email"
	ConflictNickname ConflictKind = "nickname"
	ConflictOther    ConflictKind = "other"
)

var ErrConflict = errors.New("unique constraint violation")

type ConflictError struct {
	Kind       ConflictKind
	Constraint string
	Err        error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict (%s): %v", e.Kind, e.Constraint, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

var (
	pgConstraintPattern     = regexp.MustCompile(`unique constraint "([^"]+)"`)
	pgDetailPattern         = regexp.MustCompile(`Key \(([^)]+)\)=`)
	sqliteConstraintPattern = regexp.MustCompile(`UNIQUE constraint failed: ([\w.]+)`)
)

// ClassifyConflict reports which unique field an insert or update collided
// with. It prefers the structured constraint name carried by the driver error
// and only parses the message when the driver offers nothing else. Errors that
// are not unique violations are returned unchanged with ok=false.
func ClassifyConflict(err error) (*ConflictError, bool) {
	if err == nil {
		return nil, false
	}

	var existing *ConflictError
	if errors.As(err, &existing) {
		return existing, true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != uniqueViolation {
			return nil, false
		}
		return newConflict(err, pgErr.ConstraintName, pgErr.Detail, pgErr.Message), true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if string(pqErr.Code) != uniqueViolation {
			return nil, false
		}
		return newConflict(err, pqErr.Constraint, pqErr.Detail, pqErr.Message), true
	}

	msg := err.Error()
	if m := pgConstraintPattern.FindStringSubmatch(msg); m != nil {
		return newConflict(err, m[1], msg, msg), true
	}
	if m := sqliteConstraintPattern.FindStringSubmatch(msg); m != nil {
		return newConflict(err, m[1], "", msg), true
	}

	return nil, false
}

func newConflict(err error, constraint, detail, message string) *ConflictError {
	kind := kindOf(constraint)
	if kind == ConflictOther {
		if m := pgDetailPattern.FindStringSubmatch(detail); m != nil {
			kind = kindOf(m[1])
		}
	}
	if kind == ConflictOther && constraint == "" {
		kind = kindOf(message)
	}

	return &ConflictError{Kind: kind, Constraint: constraint, Err: err}
}

func kindOf(name string) ConflictKind {
	name = strings.ToLower(name)
	switch {
	case strings.Contains(name, "email"):
		return ConflictEmail
	case strings.Contains(name, "nickname"):
		return ConflictNickname
	default:
		return ConflictOther
	}
}
