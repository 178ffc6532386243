package store

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a versioned update matched no row: the record
// was changed or deleted since it was read.
var ErrConflict = errors.New("concurrent modification")

const pqForeignKeyViolation = "23503"

func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqForeignKeyViolation
	}
	// sqlite reports "FOREIGN KEY constraint failed" when the translator is unavailable.
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint")
}
