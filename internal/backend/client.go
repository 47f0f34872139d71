package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"rmtracer/internal/config"
	"rmtracer/internal/domain"
	"rmtracer/internal/models"
)

// Client implements domain.Backend over the server's HTTP API.
type Client struct {
	baseURL  string
	apiKey   string
	apiExtra string
	http     *http.Client

	mu     sync.RWMutex
	userID string
}

func NewClient(cfg config.StationConfig) *Client {
	timeout := cfg.RequestTimeout.Std()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.ServerURL, "/"),
		apiKey:   cfg.APIKey,
		apiExtra: cfg.APIExtra,
		http:     &http.Client{Timeout: timeout},
	}
}

// SetUserID sets the acting account sent with every request.
func (c *Client) SetUserID(id string) {
	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v1/ping", nil, nil)
}

func (c *Client) LookupPatientByRecordNumber(ctx context.Context, noRM string) (*models.Patient, error) {
	var p models.Patient
	path := "/api/v1/patients/lookup?no_rm=" + url.QueryEscape(noRM)
	if err := c.do(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// LookupUserByEmail resolves the operator account at sign-in.
func (c *Client) LookupUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	path := "/api/v1/users/lookup?email=" + url.QueryEscape(email)
	if err := c.do(ctx, http.MethodGet, path, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) InsertTracer(ctx context.Context, rec *models.Tracer) (*models.Tracer, error) {
	body := map[string]any{
		"patient_id":  rec.PatientID,
		"location_id": rec.LocationID,
		"staff_id":    rec.StaffID,
		"keterangan":  rec.Keterangan,
		"user_id":     rec.UserID,
	}
	if !rec.CreatedAt.IsZero() {
		body["created_at"] = rec.CreatedAt
	}

	var created models.Tracer
	if err := c.do(ctx, http.MethodPost, "/api/v1/tracer", body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) DeleteTracer(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/tracer/"+url.PathEscape(id), nil, nil)
}

func (c *Client) AppendActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	var details map[string]interface{}
	if entry.Details != "" {
		// Details travel as structured JSON
		if err := json.Unmarshal([]byte(entry.Details), &details); err != nil {
			details = map[string]interface{}{"raw": entry.Details}
		}
	}
	body := map[string]any{
		"user_id": entry.UserID,
		"aksi":    entry.Aksi,
		"no_rm":   entry.NoRM,
		"details": details,
	}
	return c.do(ctx, http.MethodPost, "/api/v1/activity", body, nil)
}

func (c *Client) CurrentLocation(ctx context.Context, patientID string) (*models.Tracer, error) {
	var rec models.Tracer
	path := "/api/v1/tracer/current?patient_id=" + url.QueryEscape(patientID)
	if err := c.do(ctx, http.MethodGet, path, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("x-api-extra", c.apiExtra)
	}
	c.mu.RLock()
	if c.userID != "" {
		req.Header.Set("x-user-id", c.userID)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, domain.ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
