package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/mkarimv/vehicle-service-center/internal/model"
	"github.com/mkarimv/vehicle-service-center/internal/utils"
)

// UserRepo provides persistence for user accounts.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a new user with a bcrypt-hashed password and returns
// the generated ID.  Duplicate emails map to ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, email, password, fullName, role string, bcryptCost int) (uint64, error) {
	hash, err := utils.HashPassword(password, bcryptCost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, full_name, role, is_active) VALUES (?,?,?,?,1)",
		email, hash, fullName, role)
	if err != nil {
		if strings.Contains(err.Error(), "Duplicate entry") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail loads a user by email; sql.ErrNoRows when absent.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, email, password_hash, full_name, role, is_active, created_at, updated_at FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID loads a user by primary key; sql.ErrNoRows when absent.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, email, password_hash, full_name, role, is_active, created_at, updated_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
