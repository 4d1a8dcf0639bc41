// Package db keeps the registry of build operations in an in-memory SQLite
// database. Nothing is persisted across restarts.
package db

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/bitswalk/upenwrt/src/common/logs"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the db package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Database wraps the SQLite connection
type Database struct {
	db        *sql.DB
	closeOnce sync.Once
}

// New creates a fresh in-memory database with the schema applied. Every call
// gets its own private database.
func New() (*Database, error) {
	dsn := fmt.Sprintf("file:upenwrtd-%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.New().String())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	// The shared-cache database lives as long as one connection stays open.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Debug("Operation registry initialized")
	return &Database{db: db}, nil
}

// DB returns the underlying connection pool
func (d *Database) DB() *sql.DB {
	return d.db
}

// Close releases the database; its contents are gone afterwards
func (d *Database) Close() error {
	var err error
	d.closeOnce.Do(func() {
		err = d.db.Close()
	})
	return err
}
