package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

const maxResponseBytes = 8 << 20

// StatusError reports a non-2xx response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.URL, e.Status)
}

// GatewayConfig configures GatewayClient.
type GatewayConfig struct {
	BaseURL string
	School  string
	Timeout time.Duration
}

// GatewayClient implements Client and Transport against a JSON portal gateway.
type GatewayClient struct {
	baseURL string
	school  string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// NewGatewayClient constructs a GatewayClient with its own cookie jar.
func NewGatewayClient(cfg GatewayConfig) (*GatewayClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse gateway base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &GatewayClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		school:  cfg.School,
		http:    &http.Client{Timeout: timeout, Jar: jar},
	}, nil
}

type loginResponse struct {
	Token string `json:"token"`
}

func (c *GatewayClient) Login(ctx context.Context, username, password string) error {
	payload := map[string]string{"username": username, "password": password, "school": c.school}
	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/session/login", payload)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	var resp loginResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode login response: %w", err)
		}
	}
	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	return nil
}

func (c *GatewayClient) RefreshSession(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodPost, c.baseURL+"/session/refresh", nil); err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	return nil
}

func (c *GatewayClient) RefreshTimeline(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodPost, c.baseURL+"/timeline/refresh", nil); err != nil {
		return fmt.Errorf("refresh timeline: %w", err)
	}
	return nil
}

func (c *GatewayClient) TimetableForDate(ctx context.Context, date time.Time) ([]RawLesson, error) {
	var lessons []RawLesson
	endpoint := c.baseURL + "/timetable?date=" + url.QueryEscape(date.Format("2006-01-02"))
	if err := c.getInto(ctx, endpoint, &lessons); err != nil {
		return nil, fmt.Errorf("timetable %s: %w", date.Format("2006-01-02"), err)
	}
	return lessons, nil
}

func (c *GatewayClient) Students(ctx context.Context) ([]RawStudent, error) {
	var students []RawStudent
	if err := c.getInto(ctx, c.baseURL+"/students", &students); err != nil {
		return nil, fmt.Errorf("students: %w", err)
	}
	return students, nil
}

func (c *GatewayClient) Homeworks(ctx context.Context) ([]RawHomework, error) {
	var homeworks []RawHomework
	if err := c.getInto(ctx, c.baseURL+"/homeworks", &homeworks); err != nil {
		return nil, fmt.Errorf("homeworks: %w", err)
	}
	return homeworks, nil
}

func (c *GatewayClient) Timeline(ctx context.Context) ([]RawTimelineItem, error) {
	var items []RawTimelineItem
	if err := c.getInto(ctx, c.baseURL+"/timeline", &items); err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	return items, nil
}

func (c *GatewayClient) Teachers(ctx context.Context) ([]RawTeacher, error) {
	var teachers []RawTeacher
	if err := c.getInto(ctx, c.baseURL+"/teachers", &teachers); err != nil {
		return nil, fmt.Errorf("teachers: %w", err)
	}
	return teachers, nil
}

func (c *GatewayClient) User(ctx context.Context) (*RawRef, error) {
	var user RawRef
	if err := c.getInto(ctx, c.baseURL+"/user", &user); err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}
	return &user, nil
}

// PostJSON sends payload to an absolute portal URL using the gateway session.
func (c *GatewayClient) PostJSON(ctx context.Context, target string, payload interface{}) ([]byte, error) {
	return c.do(ctx, http.MethodPost, target, payload)
}

func (c *GatewayClient) getInto(ctx context.Context, endpoint string, dest interface{}) error {
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func (c *GatewayClient) do(ctx context.Context, method, endpoint string, payload interface{}) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: endpoint, Status: resp.StatusCode}
	}
	return body, nil
}
