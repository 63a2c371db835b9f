// Package storage persists harvested records to a SQLite database file.
//
// The store holds a single officers table (url, name, state, eow, cause), all
// TEXT columns with no keys or indexes. Each run resets the table before loading,
// so the file always reflects exactly one harvest. An exclusive lock file next to
// the database keeps two runs from writing the same file at once.
package storage
