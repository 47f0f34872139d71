package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rmtracer/internal/models"

	"github.com/google/uuid"
)

// CreateStaff inserts a staff member.
func (db *DB) CreateStaff(ctx context.Context, s *models.Staff) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	query := `INSERT INTO staff (id, nama, nip, is_active, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err := db.db.ExecContext(ctx, query, s.ID, s.Nama, s.NIP, s.IsActive, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create staff: %w", err)
	}
	return nil
}

// UpdateStaff updates name, NIP and active flag.
func (db *DB) UpdateStaff(ctx context.Context, s *models.Staff) error {
	query := `UPDATE staff SET nama = ?, nip = ?, is_active = ? WHERE id = ?`

	res, err := db.db.ExecContext(ctx, query, s.Nama, s.NIP, s.IsActive, s.ID)
	if err != nil {
		return fmt.Errorf("failed to update staff: %w", err)
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

// GetStaff returns a staff member by ID.
func (db *DB) GetStaff(ctx context.Context, id string) (*models.Staff, error) {
	query := `SELECT id, nama, nip, is_active, created_at FROM staff WHERE id = ?`

	var s models.Staff
	var nip sql.NullString
	err := db.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Nama, &nip, &s.IsActive, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get staff: %w", err)
	}
	s.NIP = nip.String
	return &s, nil
}

// GetActiveStaff returns active staff ordered by name.
func (db *DB) GetActiveStaff(ctx context.Context) ([]models.Staff, error) {
	return db.listStaff(ctx, `SELECT id, nama, nip, is_active, created_at FROM staff WHERE is_active = 1 ORDER BY nama`)
}

// GetAllStaff returns every staff member ordered by name.
func (db *DB) GetAllStaff(ctx context.Context) ([]models.Staff, error) {
	return db.listStaff(ctx, `SELECT id, nama, nip, is_active, created_at FROM staff ORDER BY nama`)
}

func (db *DB) listStaff(ctx context.Context, query string) ([]models.Staff, error) {
	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	defer rows.Close()

	var staff []models.Staff
	for rows.Next() {
		var s models.Staff
		var nip sql.NullString
		if err := rows.Scan(&s.ID, &s.Nama, &nip, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan staff: %w", err)
		}
		s.NIP = nip.String
		staff = append(staff, s)
	}
	return staff, rows.Err()
}
