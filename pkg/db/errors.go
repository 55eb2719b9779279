package db

import (
	"strings"

	pkgerrors "github.com/angelmondragon/mediconnect-backend/pkg/errors"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// IsUniqueViolation reports whether err is a unique constraint violation. When
// constraintName is provided only that constraint matches.
func IsUniqueViolation(err error, constraintName string) bool {
	return matchesConstraint(err, pgUniqueViolation, constraintName, "duplicate key value", "UNIQUE constraint failed")
}

// IsCheckViolation reports whether err is a CHECK constraint violation, such
// as the non-negative stock guard on medications.
func IsCheckViolation(err error, constraintName string) bool {
	return matchesConstraint(err, pgCheckViolation, constraintName, "violates check constraint", "CHECK constraint failed")
}

func matchesConstraint(err error, pgCode, constraintName string, fragments ...string) bool {
	if err == nil {
		return false
	}

	if pg, ok := pkgerrors.Postgres(err); ok {
		return pg.Code == pgCode && (constraintName == "" || pg.Constraint == constraintName)
	}

	// sqlite only reports through the message text.
	msg := err.Error()
	if constraintName != "" && !strings.Contains(msg, constraintName) {
		return false
	}
	for _, fragment := range fragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
