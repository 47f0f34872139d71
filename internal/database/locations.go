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

// CreateLocation inserts a location. Existing names are left untouched so
// seed files can be re-applied on every start.
func (db *DB) CreateLocation(ctx context.Context, loc *models.Location) error {
	if loc.ID == "" {
		loc.ID = uuid.NewString()
	}
	if loc.CreatedAt.IsZero() {
		loc.CreatedAt = time.Now()
	}

	query := `INSERT INTO locations (id, name, type, description, is_storage, created_at)
              VALUES (?, ?, ?, ?, ?, ?)
              ON CONFLICT(name) DO NOTHING`

	_, err := db.db.ExecContext(ctx, query,
		loc.ID, loc.Name, loc.Type, loc.Description, loc.IsStorage, loc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}
	return nil
}

// UpdateLocation updates a location's mutable fields.
func (db *DB) UpdateLocation(ctx context.Context, loc *models.Location) error {
	query := `UPDATE locations SET name = ?, type = ?, description = ?, is_storage = ? WHERE id = ?`

	res, err := db.db.ExecContext(ctx, query, loc.Name, loc.Type, loc.Description, loc.IsStorage, loc.ID)
	if err != nil {
		return fmt.Errorf("failed to update location: %w", err)
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

// DeleteLocation removes a location row.
func (db *DB) DeleteLocation(ctx context.Context, id string) error {
	res, err := db.db.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
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

// GetLocation returns a location by ID.
func (db *DB) GetLocation(ctx context.Context, id string) (*models.Location, error) {
	query := `SELECT id, name, type, description, is_storage, created_at FROM locations WHERE id = ?`

	var loc models.Location
	var desc sql.NullString
	err := db.db.QueryRowContext(ctx, query, id).Scan(
		&loc.ID, &loc.Name, &loc.Type, &desc, &loc.IsStorage, &loc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	loc.Description = desc.String
	return &loc, nil
}

// GetLocations returns all locations ordered by name.
func (db *DB) GetLocations(ctx context.Context) ([]models.Location, error) {
	query := `SELECT id, name, type, description, is_storage, created_at FROM locations ORDER BY name`

	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get locations: %w", err)
	}
	defer rows.Close()

	var locations []models.Location
	for rows.Next() {
		var loc models.Location
		var desc sql.NullString
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Type, &desc, &loc.IsStorage, &loc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		loc.Description = desc.String
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}
