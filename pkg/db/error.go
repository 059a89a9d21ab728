package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// IsDuplicateKeyErr reports a unique constraint violation across the supported dialects.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	msg := err.Error()
	switch {
	// PostgreSQL (SQLSTATE 23505)
	case strings.Contains(msg, "duplicate key value violates unique constraint"),
		strings.Contains(msg, "SQLSTATE 23505"):
		return true
	// MySQL (error 1062)
	case strings.Contains(msg, "Error 1062"):
		return true
	// SQLite (extended code 2067)
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return true
	}

	return false
}
