package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tomnasc/treino-na-mao-sub000/internal/models"
)

var ErrUnavailable = errors.New("remote session service unavailable")

type CompletionRequest struct {
	DurationMinutes int     `json:"duration_minutes"`
	PerceivedEffort *int    `json:"perceived_effort,omitempty"`
	MoodRating      *int    `json:"mood_rating,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

// Service is the engine's view of the system of record. Every call is
// best-effort from the engine's perspective; callers decide whether a failure
// queues, retries or is ignored.
type Service interface {
	CreateSession(ctx context.Context, session models.Session) (*models.Session, error)
	UpsertSession(ctx context.Context, session models.Session) error
	LogSet(ctx context.Context, sessionID string, input models.SetLogInput) error
	CompleteSession(ctx context.Context, sessionID string, input CompletionRequest) (*models.Session, error)
	AbandonSession(ctx context.Context, sessionID string) error
	PauseSession(ctx context.Context, sessionID string) error
	ResumeSession(ctx context.Context, sessionID string) error
	ListInProgressSessions(ctx context.Context, userID, workoutID string) ([]models.Session, error)
	ListSetLogs(ctx context.Context, sessionID string) ([]models.SetLogInput, error)
	SyncOfflineSessions(ctx context.Context, entries []models.PendingSyncEntry) error
}

// Client talks to the session API over HTTP. Identity travels in the
// X-User-ID header, set upstream by the auth gateway.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

func NewClient(baseURL, userID string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		userID:     userID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CreateSession(ctx context.Context, session models.Session) (*models.Session, error) {
	var out struct {
		Session models.Session `json:"session"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/sessions", session, &out)
	if err != nil {
		return nil, err
	}
	return &out.Session, nil
}

func (c *Client) UpsertSession(ctx context.Context, session models.Session) error {
	path := "/api/v1/sessions/" + url.PathEscape(session.ID)
	return c.doJSON(ctx, http.MethodPut, path, session, nil)
}

func (c *Client) LogSet(ctx context.Context, sessionID string, input models.SetLogInput) error {
	path := "/api/v1/sessions/" + url.PathEscape(sessionID) + "/sets"
	return c.doJSON(ctx, http.MethodPost, path, input, nil)
}

func (c *Client) CompleteSession(
	ctx context.Context,
	sessionID string,
	input CompletionRequest,
) (*models.Session, error) {
	var out struct {
		Session models.Session `json:"session"`
	}
	path := "/api/v1/sessions/" + url.PathEscape(sessionID) + "/complete"
	if err := c.doJSON(ctx, http.MethodPost, path, input, &out); err != nil {
		return nil, err
	}
	return &out.Session, nil
}

func (c *Client) AbandonSession(ctx context.Context, sessionID string) error {
	path := "/api/v1/sessions/" + url.PathEscape(sessionID) + "/abandon"
	return c.doJSON(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) PauseSession(ctx context.Context, sessionID string) error {
	path := "/api/v1/sessions/" + url.PathEscape(sessionID) + "/pause"
	return c.doJSON(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) ResumeSession(ctx context.Context, sessionID string) error {
	path := "/api/v1/sessions/" + url.PathEscape(sessionID) + "/resume"
	return c.doJSON(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) ListInProgressSessions(
	ctx context.Context,
	userID, workoutID string,
) ([]models.Session, error) {
	var out struct {
		Sessions []models.Session `json:"sessions"`
	}
	path := "/api/v1/sessions/in-progress?workout_id=" + url.QueryEscape(workoutID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (c *Client) ListSetLogs(ctx context.Context, sessionID string) ([]models.SetLogInput, error) {
	var out struct {
		SetLogs []models.SetLogInput `json:"set_logs"`
	}
	path := "/api/v1/sessions/" + url.PathEscape(sessionID) + "/sets"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.SetLogs, nil
}

func (c *Client) SyncOfflineSessions(ctx context.Context, entries []models.PendingSyncEntry) error {
	body := struct {
		Entries []models.PendingSyncEntry `json:"entries"`
	}{Entries: entries}
	return c.doJSON(ctx, http.MethodPost, "/api/v1/sessions/sync", body, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-User-ID", c.userID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("session api: %s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("session api: status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
