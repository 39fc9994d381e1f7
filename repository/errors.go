package repository

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"scrapPickup/internal/errs"
)

// ErrDuplicate marks an insert rejected by a primary key or unique index.
var ErrDuplicate = errors.New("duplicate key")

// storageErr classifies a driver failure. Constraint violations on unique keys
// become ErrDuplicate so callers can retry with a fresh key; everything else is
// reported as an unavailable dependency.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrDuplicate, err)
	}
	return errs.Dependency("storage unavailable", fmt.Errorf("%s: %w", op, err))
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// page normalises limit/offset to the bounds every listing shares.
func page(limit, offset, def, max int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
