//go:build !cgo

package sqldb

// go-sqlite3 is a stub without cgo; sqlite errors never reach here.
func isSQLiteUniqueViolation(error) bool {
	return false
}
