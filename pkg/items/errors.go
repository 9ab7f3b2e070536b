package items

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrItemNotFound        = errors.New("item not found")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrStoreClosed         = errors.New("item store is closed")
)

// isConstraintError reports whether err is a SQLite constraint failure
// (duplicate primary key, NOT NULL).
func isConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
