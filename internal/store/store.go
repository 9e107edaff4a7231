// Package store owns the single-file relational store: opening it with the
// right pragmas, migrating the schema idempotently, backing the file up
// before migration, and first-boot demo seeding.
package store

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Open opens the store file at path. WAL allows concurrent readers while a
// writer holds its transaction; busy_timeout bounds lock waits so contention
// surfaces as an error instead of blocking indefinitely.
func Open(path string) (*sql.DB, error) {
	dsn := "file:" + path +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(15 * time.Minute)
	return db, nil
}
