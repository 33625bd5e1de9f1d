package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/hireloop-backend/pkg/errors"
)

// IsUniqueViolation reports whether err is a unique constraint violation.
// Errors translated by GORM (TranslateError) no longer carry the constraint
// name, so constraintName only narrows raw driver errors. SQLite surfaces
// violations as plain text and is matched on the message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if constraint, ok := pkgerrors.UniqueViolation(err); ok {
		return constraintName == "" || constraint == constraintName
	}

	msg := err.Error()
	if constraintName != "" && !strings.Contains(msg, constraintName) {
		return false
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}
