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

// InsertTracer writes a location-history record. CreatedAt is taken from
// the record itself so offline-origin events keep their original time; it
// defaults to now only when unset.
func (db *DB) InsertTracer(ctx context.Context, rec *models.Tracer) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `INSERT INTO tracer (id, patient_id, location_id, staff_id, keterangan, user_id, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := db.db.ExecContext(ctx, query,
		rec.ID, rec.PatientID, rec.LocationID, nullable(rec.StaffID), rec.Keterangan, rec.UserID, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert tracer: %w", err)
	}
	return nil
}

// DeleteTracer removes a location record (undo path).
func (db *DB) DeleteTracer(ctx context.Context, id string) error {
	res, err := db.db.ExecContext(ctx, `DELETE FROM tracer WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tracer: %w", err)
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

// GetCurrentLocation returns the latest location record for a patient.
func (db *DB) GetCurrentLocation(ctx context.Context, patientID string) (*models.Tracer, error) {
	query := `SELECT id, patient_id, location_id, staff_id, keterangan, user_id, created_at
              FROM tracer WHERE patient_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`

	rec, err := scanTracer(db.db.QueryRowContext(ctx, query, patientID))
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetTracerHistory returns a patient's movement history, newest first.
func (db *DB) GetTracerHistory(ctx context.Context, patientID string, limit int) ([]models.Tracer, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, patient_id, location_id, staff_id, keterangan, user_id, created_at
              FROM tracer WHERE patient_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := db.db.QueryContext(ctx, query, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get tracer history: %w", err)
	}
	defer rows.Close()

	return collectTracers(rows)
}

// GetTracersByDateRange returns all movements in [start, end], oldest first.
// Used by exports.
func (db *DB) GetTracersByDateRange(ctx context.Context, start, end time.Time) ([]models.Tracer, error) {
	query := `SELECT id, patient_id, location_id, staff_id, keterangan, user_id, created_at
              FROM tracer WHERE created_at >= ? AND created_at <= ? ORDER BY created_at ASC`

	rows, err := db.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get tracers by range: %w", err)
	}
	defer rows.Close()

	return collectTracers(rows)
}

// GetRecentTracers returns the latest movements across all patients.
func (db *DB) GetRecentTracers(ctx context.Context, limit int) ([]models.Tracer, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT id, patient_id, location_id, staff_id, keterangan, user_id, created_at
              FROM tracer ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := db.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent tracers: %w", err)
	}
	defer rows.Close()

	return collectTracers(rows)
}

// CountMovementsSince counts tracer records written at or after the cutoff.
func (db *DB) CountMovementsSince(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracer WHERE created_at >= ?`, cutoff).Scan(&n)
	return n, err
}

// CountByCurrentLocation aggregates patients by their latest location.
func (db *DB) CountByCurrentLocation(ctx context.Context) ([]models.LocationCount, error) {
	query := `
        SELECT t.location_id, COALESCE(l.name, t.location_id), COUNT(*)
        FROM tracer t
        INNER JOIN (
            SELECT patient_id, MAX(created_at) AS max_created
            FROM tracer GROUP BY patient_id
        ) latest ON latest.patient_id = t.patient_id AND latest.max_created = t.created_at
        LEFT JOIN locations l ON l.id = t.location_id
        GROUP BY t.location_id
        ORDER BY COUNT(*) DESC`

	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count by location: %w", err)
	}
	defer rows.Close()

	var counts []models.LocationCount
	for rows.Next() {
		var c models.LocationCount
		if err := rows.Scan(&c.LocationID, &c.LocationName, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan location count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTracer(row rowScanner) (*models.Tracer, error) {
	var rec models.Tracer
	var staffID sql.NullString
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.LocationID, &staffID, &rec.Keterangan, &rec.UserID, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan tracer: %w", err)
	}
	rec.StaffID = staffID.String
	return &rec, nil
}

func collectTracers(rows *sql.Rows) ([]models.Tracer, error) {
	var records []models.Tracer
	for rows.Next() {
		rec, err := scanTracer(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
