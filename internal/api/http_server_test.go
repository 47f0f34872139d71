package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"rmtracer/internal/config"
	"rmtracer/internal/database"
	"rmtracer/internal/events"
	"rmtracer/internal/export"
	"rmtracer/internal/models"
	"rmtracer/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	srv *HTTPServer
	db  *database.DB
}

func newTestServer(t *testing.T, cfg config.APIConfig) *testServer {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewEventBus()
	activity := service.NewActivityService(db, bus, &logger)
	srv := NewHTTPServer(cfg, db,
		service.NewPatientService(db, bus, activity, &logger),
		service.NewTracerService(db, bus, activity, &logger),
		activity,
		service.NewDashboardService(db),
		export.NewReporter(db, &logger),
		bus, &logger)
	return &testServer{srv: srv, db: db}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("x-user-id", "user-1")
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (ts *testServer) seed(t *testing.T) (patient models.Patient, storage, unit models.Location, staff models.Staff) {
	t.Helper()
	ctx := context.Background()

	patient = models.Patient{NoRM: "RM-26080001", Nama: "Budi Santoso", QRCode: models.QRValue("RM-26080001")}
	require.NoError(t, ts.db.CreatePatient(ctx, &patient))

	storage = models.Location{Name: "Filing", Type: "storage", IsStorage: true}
	require.NoError(t, ts.db.CreateLocation(ctx, &storage))
	unit = models.Location{Name: "Poli Umum", Type: "unit"}
	require.NoError(t, ts.db.CreateLocation(ctx, &unit))

	staff = models.Staff{Nama: "Andi", IsActive: true}
	require.NoError(t, ts.db.CreateStaff(ctx, &staff))
	return
}

func TestPing(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})
	rec := ts.do(t, http.MethodGet, "/api/v1/ping", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPatientLifecycle(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})

	rec := ts.do(t, http.MethodPost, "/api/v1/patients", map[string]string{
		"no_rm": "RM-26080001",
		"nama":  "Budi Santoso",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Patient](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.QRValue("RM-26080001"), created.QRCode)

	// Duplicate record number
	rec = ts.do(t, http.MethodPost, "/api/v1/patients", map[string]string{
		"no_rm": "RM-26080001",
		"nama":  "Other",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Lookup by record number
	rec = ts.do(t, http.MethodGet, "/api/v1/patients/lookup?no_rm=RM-26080001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	found := decode[models.Patient](t, rec)
	assert.Equal(t, created.ID, found.ID)

	rec = ts.do(t, http.MethodGet, "/api/v1/patients/lookup?no_rm=RM-99999999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Search
	rec = ts.do(t, http.MethodGet, "/api/v1/patients?q=Budi", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Patients []models.Patient `json:"patients"`
		Total    int64            `json:"total"`
	}](t, rec)
	assert.EqualValues(t, 1, list.Total)

	// Update and delete
	rec = ts.do(t, http.MethodPut, "/api/v1/patients/"+created.ID, map[string]string{
		"no_rm":   "RM-26080001",
		"nama":    "Budi S.",
		"qr_code": created.QRCode,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/v1/patients/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/patients/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTracerEndpoints(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})
	patient, storage, unit, staff := ts.seed(t)

	// Movement to a unit without staff is rejected
	rec := ts.do(t, http.MethodPost, "/api/v1/tracer", map[string]string{
		"patient_id":  patient.ID,
		"location_id": unit.ID,
		"user_id":     "user-1",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// With staff it lands
	rec = ts.do(t, http.MethodPost, "/api/v1/tracer", map[string]string{
		"patient_id":  patient.ID,
		"location_id": unit.ID,
		"staff_id":    staff.ID,
		"user_id":     "user-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[models.Tracer](t, rec)

	// Offline-synced write with preserved event time
	eventTime := time.Now().Add(-2 * time.Hour).UTC().Truncate(time.Second)
	rec = ts.do(t, http.MethodPost, "/api/v1/tracer", map[string]any{
		"patient_id":  patient.ID,
		"location_id": storage.ID,
		"user_id":     "user-1",
		"created_at":  eventTime,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	synced := decode[models.Tracer](t, rec)
	assert.True(t, synced.CreatedAt.Equal(eventTime))

	// Current location is the newest event time, i.e. the first movement
	rec = ts.do(t, http.MethodGet, "/api/v1/tracer/current?patient_id="+patient.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	current := decode[models.Tracer](t, rec)
	assert.Equal(t, first.ID, current.ID)

	rec = ts.do(t, http.MethodGet, "/api/v1/tracer/history?patient_id="+patient.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[struct {
		History []models.Tracer `json:"history"`
	}](t, rec)
	assert.Len(t, history.History, 2)

	// Undo
	rec = ts.do(t, http.MethodDelete, "/api/v1/tracer/"+first.ID+"?no_rm="+patient.NoRM, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/api/v1/tracer/"+first.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActivityEndpoints(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})

	rec := ts.do(t, http.MethodPost, "/api/v1/activity", map[string]any{
		"user_id": "user-1",
		"aksi":    models.ActionUpdateStatusSync,
		"no_rm":   "RM-26080001",
		"details": map[string]string{"location_id": "loc-a"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/v1/activity?aksi="+models.ActionUpdateStatusSync, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[struct {
		Logs  []models.ActivityLog `json:"logs"`
		Total int64                `json:"total"`
	}](t, rec)
	assert.EqualValues(t, 1, out.Total)
	require.Len(t, out.Logs, 1)
	assert.Contains(t, out.Logs[0].Details, "loc-a")
}

func TestDashboardStatsEndpoint(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})
	patient, storage, _, _ := ts.seed(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/tracer", map[string]string{
		"patient_id":  patient.ID,
		"location_id": storage.ID,
		"user_id":     "user-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/dashboard/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[models.DashboardStats](t, rec)
	assert.EqualValues(t, 1, stats.TotalPatients)
	assert.EqualValues(t, 1, stats.MovementsToday)
}

func TestTracerExportEndpoint(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})
	patient, storage, _, _ := ts.seed(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/tracer", map[string]string{
		"patient_id":  patient.ID,
		"location_id": storage.ID,
		"user_id":     "user-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	day := time.Now().Format("2006-01-02")
	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/exports/tracer?start=%s&end=%s", day, day), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotZero(t, rec.Body.Len())

	rec = ts.do(t, http.MethodGet, "/api/v1/exports/tracer?start=bad&end="+day, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLocationsAndStaffEndpoints(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})

	rec := ts.do(t, http.MethodPost, "/api/v1/locations", map[string]any{
		"name":       "Filing",
		"type":       "storage",
		"is_storage": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	loc := decode[models.Location](t, rec)

	rec = ts.do(t, http.MethodGet, "/api/v1/locations", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/v1/locations/"+loc.ID, map[string]any{
		"name":       "Filing Utama",
		"type":       "storage",
		"is_storage": true,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/staff", map[string]any{
		"nama":      "Andi",
		"is_active": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/staff?active=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	staff := decode[struct {
		Staff []models.Staff `json:"staff"`
	}](t, rec)
	assert.Len(t, staff.Staff, 1)
}

func TestUserLookup(t *testing.T) {
	ts := newTestServer(t, config.APIConfig{})
	ctx := context.Background()

	active := models.User{Email: "petugas@rs.example", Nama: "Petugas", Role: models.RolePetugas, IsActive: true}
	require.NoError(t, ts.db.CreateUser(ctx, &active))
	inactive := models.User{Email: "gone@rs.example", Nama: "Gone", Role: models.RolePetugas, IsActive: false}
	require.NoError(t, ts.db.CreateUser(ctx, &inactive))

	rec := ts.do(t, http.MethodGet, "/api/v1/users/lookup?email=petugas@rs.example", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	u := decode[models.User](t, rec)
	assert.Equal(t, active.ID, u.ID)

	rec = ts.do(t, http.MethodGet, "/api/v1/users/lookup?email=gone@rs.example", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/users/lookup?email=nobody@rs.example", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
