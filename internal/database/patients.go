package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rmtracer/internal/models"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// CreatePatient inserts a new patient. The ID is assigned here when empty.
func (db *DB) CreatePatient(ctx context.Context, p *models.Patient) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `INSERT INTO patients (id, no_rm, nama, tanggal_lahir, qr_code, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := db.db.ExecContext(ctx, query,
		p.ID, p.NoRM, p.Nama, p.TanggalLahir, p.QRCode, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrDuplicateNoRM
		}
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

// UpdatePatient updates the mutable fields of a patient.
func (db *DB) UpdatePatient(ctx context.Context, p *models.Patient) error {
	query := `UPDATE patients SET no_rm = ?, nama = ?, tanggal_lahir = ?, qr_code = ?, updated_at = ? WHERE id = ?`

	res, err := db.db.ExecContext(ctx, query, p.NoRM, p.Nama, p.TanggalLahir, p.QRCode, time.Now(), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
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

// DeletePatient removes a patient row.
func (db *DB) DeletePatient(ctx context.Context, id string) error {
	res, err := db.db.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
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

// GetPatient returns a patient by ID.
func (db *DB) GetPatient(ctx context.Context, id string) (*models.Patient, error) {
	query := `SELECT id, no_rm, nama, tanggal_lahir, qr_code, created_at, updated_at
              FROM patients WHERE id = ?`
	return db.scanPatient(db.db.QueryRowContext(ctx, query, id))
}

// GetPatientByNoRM returns a patient by record number.
func (db *DB) GetPatientByNoRM(ctx context.Context, noRM string) (*models.Patient, error) {
	query := `SELECT id, no_rm, nama, tanggal_lahir, qr_code, created_at, updated_at
              FROM patients WHERE no_rm = ?`
	return db.scanPatient(db.db.QueryRowContext(ctx, query, noRM))
}

func (db *DB) scanPatient(row *sql.Row) (*models.Patient, error) {
	var p models.Patient
	err := row.Scan(&p.ID, &p.NoRM, &p.Nama, &p.TanggalLahir, &p.QRCode, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan patient: %w", err)
	}
	return &p, nil
}

// SearchPatients returns patients whose record number or name matches the
// query, newest first, plus the total match count for pagination.
func (db *DB) SearchPatients(ctx context.Context, search string, limit, offset int) ([]models.Patient, int64, error) {
	if limit <= 0 {
		limit = models.DefaultPageSize
	}

	where := ""
	args := []interface{}{}
	if s := strings.TrimSpace(search); s != "" {
		where = `WHERE no_rm LIKE ? OR nama LIKE ?`
		pattern := "%" + s + "%"
		args = append(args, pattern, pattern)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM patients ` + where
	if err := db.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count patients: %w", err)
	}

	query := `SELECT id, no_rm, nama, tanggal_lahir, qr_code, created_at, updated_at
              FROM patients ` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search patients: %w", err)
	}
	defer rows.Close()

	var patients []models.Patient
	for rows.Next() {
		var p models.Patient
		if err := rows.Scan(&p.ID, &p.NoRM, &p.Nama, &p.TanggalLahir, &p.QRCode, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan patient: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return patients, total, nil
}

// CountPatients returns the total number of patients.
func (db *DB) CountPatients(ctx context.Context) (int64, error) {
	var n int64
	err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM patients`).Scan(&n)
	return n, err
}
