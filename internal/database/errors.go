package database

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes for schema objects that do not exist (yet).
const (
	CodeUndefinedTable  = "42P01"
	CodeUndefinedColumn = "42703"
)

const CodeForeignKeyViolation = "23503"

var missingObjectName = regexp.MustCompile(`(?i)(?:relation|column|table)\s+["']?([A-Za-z0-9_.]+)["']?`)

// IsMissingRelation reports whether err says a table or view does not exist.
// Errors that carry no SQLSTATE fall back to the messages emitted by the
// REST gateway some deployments still sit behind.
func IsMissingRelation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == CodeUndefinedTable
	}
	msg := err.Error()
	return strings.Contains(msg, "Could not find the table") ||
		(strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist"))
}

// IsMissingColumn reports whether err says a column does not exist.
func IsMissingColumn(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == CodeUndefinedColumn
	}
	msg := err.Error()
	return strings.Contains(msg, "schema cache") ||
		(strings.Contains(msg, "column") && strings.Contains(msg, "does not exist"))
}

// IsForeignKeyViolation reports whether err is a foreign key violation on
// column. Postgres names the key column in the detail and, for default
// constraint names, in the constraint itself.
func IsForeignKeyViolation(err error, column string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != CodeForeignKeyViolation {
		return false
	}
	return strings.Contains(pgErr.ConstraintName, column) ||
		strings.Contains(pgErr.Detail, "("+column+")")
}

// IsMissingSchema is true for any error caused by an unapplied migration.
func IsMissingSchema(err error) bool {
	return IsMissingRelation(err) || IsMissingColumn(err)
}

// MissingObject extracts the lower-cased name of the missing table or
// column from err, without schema or table qualifiers. It returns "" when
// err is not a missing-schema error or names nothing recognisable.
func MissingObject(err error) string {
	if !IsMissingSchema(err) {
		return ""
	}
	msg := err.Error()
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.ColumnName != "" {
			return strings.ToLower(pgErr.ColumnName)
		}
		msg = pgErr.Message
	}
	m := missingObjectName.FindStringSubmatch(msg)
	if m == nil {
		return ""
	}
	name := m[1]
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToLower(name)
}
