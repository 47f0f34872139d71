package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"rmtracer/internal/models"
)

// AppendActivityLog writes an audit entry. CreatedAt defaults in SQL.
func (db *DB) AppendActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	query := `INSERT INTO activity_logs (user_id, aksi, no_rm, details) VALUES (?, ?, ?, ?)`

	res, err := db.db.ExecContext(ctx, query,
		nullable(entry.UserID), entry.Aksi, nullable(entry.NoRM), nullable(entry.Details))
	if err != nil {
		return fmt.Errorf("failed to append activity log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListActivityLogs returns filtered audit entries, newest first, with the
// total count for pagination.
func (db *DB) ListActivityLogs(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, int64, error) {
	var conds []string
	var args []interface{}

	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Aksi != "" {
		conds = append(conds, "aksi = ?")
		args = append(args, filter.Aksi)
	}
	if filter.NoRM != "" {
		conds = append(conds, "no_rm LIKE ?")
		args = append(args, "%"+filter.NoRM+"%")
	}
	if !filter.From.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, filter.To)
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM activity_logs ` + where
	if err := db.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count activity logs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = models.DefaultPageSize
	}

	query := `SELECT id, user_id, aksi, no_rm, details, created_at FROM activity_logs ` +
		where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activity logs: %w", err)
	}
	defer rows.Close()

	var logs []models.ActivityLog
	for rows.Next() {
		var entry models.ActivityLog
		var userID, noRM, details sql.NullString
		if err := rows.Scan(&entry.ID, &userID, &entry.Aksi, &noRM, &details, &entry.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan activity log: %w", err)
		}
		entry.UserID = userID.String
		entry.NoRM = noRM.String
		entry.Details = details.String
		logs = append(logs, entry)
	}
	return logs, total, rows.Err()
}
