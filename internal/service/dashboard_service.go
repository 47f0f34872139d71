package service

import (
	"context"
	"time"

	"rmtracer/internal/database"
	"rmtracer/internal/models"
)

// DashboardService assembles the stats shown on the dashboard.
type DashboardService struct {
	db *database.DB
}

func NewDashboardService(db *database.DB) *DashboardService {
	return &DashboardService{db: db}
}

func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	total, err := s.db.CountPatients(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := s.db.CountMovementsSince(ctx, midnight)
	if err != nil {
		return nil, err
	}

	byLocation, err := s.db.CountByCurrentLocation(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.db.GetRecentTracers(ctx, models.DefaultPageSize)
	if err != nil {
		return nil, err
	}

	return &models.DashboardStats{
		TotalPatients:  total,
		MovementsToday: today,
		ByLocation:     byLocation,
		RecentTracers:  recent,
	}, nil
}
