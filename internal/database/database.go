package database

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// InitDB opens the connection pool and verifies it with a ping. When
// schemaPath is non-empty the schema file is executed first, which keeps
// local setups and CI databases reproducible from db/schema.sql.
func InitDB(host, port, user, password, dbname, sslmode, schemaPath string) (*sql.DB, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	if err := applySchema(db, schemaPath); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// applySchema reads and executes the schema file.
func applySchema(db *sql.DB, schemaPath string) error {
	if schemaPath == "" {
		return nil
	}
	content, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("could not read schema file %s: %w", schemaPath, err)
	}
	if _, err := db.Exec(string(content)); err != nil {
		return fmt.Errorf("could not execute schema script: %w", err)
	}
	return nil
}
