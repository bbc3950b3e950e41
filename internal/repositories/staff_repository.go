package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stall_pos_backend/internal/models"

	"github.com/lib/pq"
)

// StaffRepository defines the interface for staff-account database operations.
type StaffRepository interface {
	CreateUser(executor SQLExecutor, user *models.StaffUser) (int64, error)
	GetUserByUsername(username string) (*models.StaffUser, error)
	GetUserByID(id int64) (*models.StaffUser, error)
}

type staffRepository struct {
	db *sql.DB
}

// NewStaffRepository creates a new instance of StaffRepository.
func NewStaffRepository(db *sql.DB) StaffRepository {
	return &staffRepository{db: db}
}

func (r *staffRepository) CreateUser(executor SQLExecutor, user *models.StaffUser) (int64, error) {
	query := `INSERT INTO staff_users (username, password_hash, full_name, role, created_at)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id`
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	err := executor.QueryRow(query, user.Username, user.PasswordHash,
		user.FullName, user.Role, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return 0, fmt.Errorf("%w: username '%s' already exists", ErrDuplicateKey, user.Username)
		}
		return 0, fmt.Errorf("%w: creating staff user: %v", ErrDatabaseError, err)
	}
	return user.ID, nil
}

func (r *staffRepository) GetUserByUsername(username string) (*models.StaffUser, error) {
	user := &models.StaffUser{}
	query := `SELECT id, username, password_hash, full_name, role, created_at
	          FROM staff_users WHERE username = $1`
	err := r.db.QueryRow(query, username).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.FullName, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting staff user %q: %v", ErrDatabaseError, username, err)
	}
	return user, nil
}

func (r *staffRepository) GetUserByID(id int64) (*models.StaffUser, error) {
	user := &models.StaffUser{}
	query := `SELECT id, username, password_hash, full_name, role, created_at
	          FROM staff_users WHERE id = $1`
	err := r.db.QueryRow(query, id).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.FullName, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting staff user ID %d: %v", ErrDatabaseError, id, err)
	}
	return user, nil
}
