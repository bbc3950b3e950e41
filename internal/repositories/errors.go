package repositories

import (
	"database/sql"
	"errors"
)

var (
	// ErrNotFound is returned when a specific record is not found.
	ErrNotFound = errors.New("requested record not found")

	// ErrDatabaseError is returned for unexpected database errors.
	// It can be used to wrap more specific driver errors.
	ErrDatabaseError = errors.New("database error")

	// ErrDuplicateKey is returned when an insert/update violates a unique constraint.
	ErrDuplicateKey = errors.New("duplicate key value violates unique constraint")

	// ErrStockConflict is returned when a conditional stock decrement matched
	// no row: the product is missing, inactive, or short on stock. Callers
	// classify which by re-reading the product.
	ErrStockConflict = errors.New("conditional stock update matched no row")

	// ErrCategoryInUse is returned when deleting a category that products
	// still reference.
	ErrCategoryInUse = errors.New("category is referenced by products")
)

// SQLExecutor defines an interface that can be satisfied by *sql.DB or *sql.Tx.
// This allows repository methods to be used within transactions or with a
// direct DB connection.
type SQLExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

// scanner is an interface satisfied by *sql.Row and *sql.Rows.
// This allows for generic scanning helpers.
type scanner interface {
	Scan(dest ...interface{}) error
}

// TxRunner runs a function inside a database transaction, committing on nil
// and rolling back on error. Services depend on this instead of *sql.DB so
// transition logic stays testable with in-memory repository fakes.
type TxRunner interface {
	RunInTx(fn func(ex SQLExecutor) error) error
}

type sqlTxRunner struct {
	db *sql.DB
}

// NewTxRunner wraps a *sql.DB as a TxRunner.
func NewTxRunner(db *sql.DB) TxRunner {
	return &sqlTxRunner{db: db}
}

func (r *sqlTxRunner) RunInTx(fn func(ex SQLExecutor) error) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
