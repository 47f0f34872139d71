package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rmtracer/internal/models"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// CreateUser inserts an application account.
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	query := `INSERT INTO users (id, email, nama, role, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := db.db.ExecContext(ctx, query, u.ID, u.Email, u.Nama, u.Role, u.IsActive, u.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UpdateUser updates name, role and active flag.
func (db *DB) UpdateUser(ctx context.Context, u *models.User) error {
	query := `UPDATE users SET nama = ?, role = ?, is_active = ? WHERE id = ?`

	res, err := db.db.ExecContext(ctx, query, u.Nama, u.Role, u.IsActive, u.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetUser returns a user by ID.
func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, email, nama, role, is_active, created_at FROM users WHERE id = ?`
	return scanUser(db.db.QueryRowContext(ctx, query, id))
}

// GetUserByEmail returns a user by email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, email, nama, role, is_active, created_at FROM users WHERE email = ?`
	return scanUser(db.db.QueryRowContext(ctx, query, email))
}

// GetAllUsers returns every account, newest first.
func (db *DB) GetAllUsers(ctx context.Context) ([]models.User, error) {
	query := `SELECT id, email, nama, role, is_active, created_at FROM users ORDER BY created_at DESC`

	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Nama, &u.Role, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Nama, &u.Role, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}
