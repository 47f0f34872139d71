package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rmtracer/internal/config"
	"rmtracer/internal/domain"
	"rmtracer/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsAuthHeaders(t *testing.T) {
	var gotKey, gotExtra, gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotExtra = r.Header.Get("x-api-extra")
		gotUser = r.Header.Get("x-user-id")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(config.StationConfig{ServerURL: srv.URL, APIKey: "k", APIExtra: "e"})
	c.SetUserID("user-1")
	require.NoError(t, c.Ping(context.Background()))

	assert.Equal(t, "k", gotKey)
	assert.Equal(t, "e", gotExtra)
	assert.Equal(t, "user-1", gotUser)
}

func TestLookupPatientNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"patient not found"}`))
	}))
	defer srv.Close()

	c := NewClient(config.StationConfig{ServerURL: srv.URL})
	_, err := c.LookupPatientByRecordNumber(context.Background(), "RM-99999999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInsertTracerCarriesEventTime(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"t1"}`))
	}))
	defer srv.Close()

	c := NewClient(config.StationConfig{ServerURL: srv.URL})
	eventTime := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	created, err := c.InsertTracer(context.Background(), &models.Tracer{
		PatientID:  "p1",
		LocationID: "loc-a",
		UserID:     "user-1",
		CreatedAt:  eventTime,
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", created.ID)

	raw, ok := received["created_at"].(string)
	require.True(t, ok, "created_at missing from request body")
	parsed, err := time.Parse(time.RFC3339, raw)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(eventTime))
}

func TestServerErrorSurfacesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"staff member required for this destination"}`))
	}))
	defer srv.Close()

	c := NewClient(config.StationConfig{ServerURL: srv.URL})
	_, err := c.InsertTracer(context.Background(), &models.Tracer{PatientID: "p1", LocationID: "loc-a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "staff member required")
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}
