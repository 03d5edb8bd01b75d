package repository

import "strings"

// uniqueViolation converts driver unique constraint errors on column into
// target. Other errors pass through.
func uniqueViolation(err error, column string, target error) error {
	errStr := err.Error()

	// PostgreSQL and SQLite
	if strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "UNIQUE constraint") {
		if strings.Contains(errStr, column) {
			return target
		}
	}

	// MySQL
	if strings.Contains(errStr, "Duplicate entry") {
		if strings.Contains(errStr, column) {
			return target
		}
	}

	return err
}
