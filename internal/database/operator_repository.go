package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/otelcore/booking-backend/internal/models"
)

// OperatorRepository handles back-office user database operations
type OperatorRepository struct {
	db *sqlx.DB
}

// NewOperatorRepository creates a new OperatorRepository
func NewOperatorRepository(db *sqlx.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

const operatorColumns = `
	id, organization_id, email, password_hash, full_name, roles, status,
	last_login_at, created_at, updated_at`

// GetByEmail retrieves an operator by email (case-insensitive)
func (r *OperatorRepository) GetByEmail(email string) (*models.Operator, error) {
	var op models.Operator
	query := `SELECT ` + operatorColumns + ` FROM operators WHERE LOWER(email) = $1`
	err := r.db.Get(&op, query, strings.ToLower(strings.TrimSpace(email)))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch operator: %w", err)
	}
	return &op, nil
}

// GetByID retrieves an operator by ID
func (r *OperatorRepository) GetByID(id uuid.UUID) (*models.Operator, error) {
	var op models.Operator
	query := `SELECT ` + operatorColumns + ` FROM operators WHERE id = $1`
	err := r.db.Get(&op, query, id)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch operator: %w", err)
	}
	return &op, nil
}

// TouchLastLogin records a successful login
func (r *OperatorRepository) TouchLastLogin(id uuid.UUID) error {
	query := `UPDATE operators SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1`
	if _, err := r.db.Exec(query, id); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
