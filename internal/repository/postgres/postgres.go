// Package postgres implements the repository interfaces on PostgreSQL via pgx.
package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateInvalidText         = "22P02"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation checks for SQLSTATE 23505. Errors that did not come from
// the server (mocks, wrapped strings) are matched on their text.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return pgErrorCode(err) == sqlStateUniqueViolation || strings.Contains(err.Error(), sqlStateUniqueViolation)
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	return pgErrorCode(err) == sqlStateForeignKeyViolation || strings.Contains(err.Error(), sqlStateForeignKeyViolation)
}

// isMissingRow reports whether a single-row lookup found nothing. A key that
// is not valid for a UUID column (SQLSTATE 22P02) cannot match a row either.
func isMissingRow(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || pgErrorCode(err) == sqlStateInvalidText
}

// setBuilder accumulates "column = $n" assignments for a sparse UPDATE.
type setBuilder struct {
	sets []string
	args []any
}

func (b *setBuilder) add(column string, value any) {
	b.args = append(b.args, value)
	b.sets = append(b.sets, fmt.Sprintf("%s = $%d", column, len(b.args)))
}

func (b *setBuilder) empty() bool { return len(b.sets) == 0 }

// whereBuilder accumulates AND-ed conditions with positional arguments.
type whereBuilder struct {
	conds []string
	args  []any
}

func (b *whereBuilder) eq(column string, value any) {
	b.args = append(b.args, value)
	b.conds = append(b.conds, fmt.Sprintf("%s = $%d", column, len(b.args)))
}

func (b *whereBuilder) clause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(b.conds, " AND ")
}

// next returns the placeholder index for the argument after the conditions.
func (b *whereBuilder) next() int { return len(b.args) + 1 }
