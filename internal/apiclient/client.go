// Package apiclient talks to the hangtime REST API. It is the trainer's
// workout source and session log, and the remote data source for MCP.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/hangtime/internal/models"
	"github.com/meltforce/hangtime/internal/trainer"
)

var (
	_ trainer.SessionLog    = (*Client)(nil)
	_ trainer.WorkoutSource = (*Client)(nil)
)

// StatusError is returned when the server answers with an unexpected status.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("apiclient: %s returned %d: %s", e.Path, e.Code, e.Body)
}

// Permanent reports whether err is a client error that retrying will not fix.
func Permanent(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500
}

// Client calls the hangtime REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	backoff    time.Duration
}

// New creates a Client targeting baseURL. apiKey is sent on write requests.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		backoff:    time.Second,
	}
}

// get retries up to 3 times with exponential backoff on transport errors
// and 5xx responses.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff << uint(attempt-1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("apiclient: create request: %w", err)
		}
		lastErr = c.do(req, path, http.StatusOK, out)
		if lastErr == nil || Permanent(lastErr) || ctx.Err() != nil {
			return lastErr
		}
	}
	return fmt.Errorf("after 3 attempts: %w", lastErr)
}

// post is a single attempt; callers own retries.
func (c *Client) post(ctx context.Context, path string, body any, want int, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("apiclient: marshal %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("apiclient: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return c.do(req, path, want, out)
}

func (c *Client) do(req *http.Request, path string, want int, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("apiclient: read body: %w", err)
	}
	if resp.StatusCode != want {
		return &StatusError{Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("apiclient: decode %s: %w", path, err)
	}
	return nil
}

func timeParams(start, end time.Time) url.Values {
	v := url.Values{}
	v.Set("start", start.Format(time.RFC3339))
	v.Set("end", end.Format(time.RFC3339))
	return v
}

// FetchWorkout loads a workout by id.
func (c *Client) FetchWorkout(ctx context.Context, id string) (*models.Workout, error) {
	workoutID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid workout id %q: %w", id, err)
	}
	return c.GetWorkout(ctx, workoutID, 0)
}

// SubmitSession creates a session on the server and returns its id.
func (c *Client) SubmitSession(ctx context.Context, s models.Session) (string, error) {
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := c.post(ctx, "/api/v1/sessions", s, http.StatusCreated, &resp); err != nil {
		return "", err
	}
	return resp.SessionID, nil
}

// SubmitRepetition appends a rep to an existing session.
func (c *Client) SubmitRepetition(ctx context.Context, sessionID string, rep models.LoggedRep) error {
	path := "/api/v1/sessions/" + url.PathEscape(sessionID) + "/repetitions"
	return c.post(ctx, path, rep, http.StatusNoContent, nil)
}

// CreateWorkout uploads a workout. The server-assigned ids are written
// back to w.
func (c *Client) CreateWorkout(ctx context.Context, w *models.Workout) error {
	return c.post(ctx, "/api/v1/workouts", w, http.StatusCreated, w)
}

func (c *Client) ListWorkouts(ctx context.Context, _ int) ([]models.WorkoutSummary, error) {
	var out []models.WorkoutSummary
	err := c.get(ctx, "/api/v1/workouts", nil, &out)
	return out, err
}

func (c *Client) GetWorkout(ctx context.Context, workoutID uuid.UUID, _ int) (*models.Workout, error) {
	var w models.Workout
	if err := c.get(ctx, "/api/v1/workouts/"+workoutID.String(), nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (c *Client) QuerySessions(ctx context.Context, start, end time.Time, _ int) ([]models.SessionSummary, error) {
	var out []models.SessionSummary
	err := c.get(ctx, "/api/v1/sessions", timeParams(start, end), &out)
	return out, err
}

func (c *Client) GetSession(ctx context.Context, sessionID string, _ int) (*models.Session, error) {
	var s models.Session
	if err := c.get(ctx, "/api/v1/sessions/"+url.PathEscape(sessionID), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) DailyHangTime(ctx context.Context, start, end time.Time, _ int) ([]models.DailyHangTime, error) {
	var out []models.DailyHangTime
	err := c.get(ctx, "/api/v1/stats/training-time", timeParams(start, end), &out)
	return out, err
}

func (c *Client) GripUsage(ctx context.Context, start, end time.Time, _ int) ([]models.GripUsage, error) {
	var out []models.GripUsage
	err := c.get(ctx, "/api/v1/stats/grip-usage", timeParams(start, end), &out)
	return out, err
}

func (c *Client) GetDataStats(ctx context.Context, _ int) (*models.DataStats, error) {
	var stats models.DataStats
	if err := c.get(ctx, "/api/v1/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
