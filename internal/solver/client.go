// Package solver implements the HTTP client for a FlareSolverr-compatible
// solving proxy. All commands are JSON documents POSTed to the proxy's /v1
// endpoint; logical failures arrive in the envelope's status field while
// transport failures surface as plain errors.
package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pagevault/pagevault/internal/scrape"
)

// StatusOK is the status string the solver reports on success.
const StatusOK = "ok"

const (
	cmdSessionsCreate  = "sessions.create"
	cmdSessionsDestroy = "sessions.destroy"
	cmdRequestGet      = "request.get"
)

// Config controls the solver client.
type Config struct {
	// BaseURL is the proxy address, e.g. http://localhost:8191.
	BaseURL string
	// MaxTimeout is the per-solve time limit forwarded to the proxy.
	MaxTimeout time.Duration
	// RequestTimeout bounds the whole HTTP round trip; it must exceed
	// MaxTimeout so the proxy can answer before the socket gives up.
	RequestTimeout time.Duration
}

// Client talks to the solving proxy. It implements scrape.Solver.
type Client struct {
	endpoint   string
	maxTimeout time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// New builds a Client for the configured proxy address.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("solver base url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	maxTimeout := cfg.MaxTimeout
	if maxTimeout <= 0 {
		maxTimeout = 60 * time.Second
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= maxTimeout {
		requestTimeout = maxTimeout + 15*time.Second
	}
	return &Client{
		endpoint:   base + "/v1",
		maxTimeout: maxTimeout,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}, nil
}

type command struct {
	Cmd        string `json:"cmd"`
	URL        string `json:"url,omitempty"`
	Session    string `json:"session,omitempty"`
	MaxTimeout int    `json:"maxTimeout,omitempty"`
}

type envelope struct {
	Status         string    `json:"status"`
	Message        string    `json:"message"`
	Session        string    `json:"session"`
	Solution       *solution `json:"solution"`
	StartTimestamp int64     `json:"startTimestamp"`
	EndTimestamp   int64     `json:"endTimestamp"`
	Version        string    `json:"version"`
}

type solution struct {
	URL       string            `json:"url"`
	Status    int               `json:"status"`
	UserAgent string            `json:"userAgent"`
	Headers   map[string]string `json:"headers"`
	Response  string            `json:"response"`
	Cookies   []cookie          `json:"cookies"`
}

type cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path"`
}

// CreateSession asks the proxy to allocate a browser session. A proposed id
// may be supplied; the id echoed by the proxy is authoritative.
func (c *Client) CreateSession(ctx context.Context, proposed string) (string, error) {
	res, err := c.post(ctx, command{Cmd: cmdSessionsCreate, Session: proposed})
	if err != nil {
		return "", err
	}
	if res.Status != StatusOK {
		return "", fmt.Errorf("%s returned status %q: %s", cmdSessionsCreate, res.Status, res.Message)
	}
	id := res.Session
	if id == "" {
		id = proposed
	}
	if id == "" {
		return "", fmt.Errorf("%s returned no session id", cmdSessionsCreate)
	}
	c.logger.Debug("solver session created", zap.String("session", id))
	return id, nil
}

// Solve fetches the target URL through the given session. Statuses other
// than ok come back as *scrape.SolveError; transport failures as plain
// wrapped errors.
func (c *Client) Solve(ctx context.Context, targetURL string, sessionID string) (scrape.SolveResult, error) {
	res, err := c.post(ctx, command{
		Cmd:        cmdRequestGet,
		URL:        targetURL,
		Session:    sessionID,
		MaxTimeout: int(c.maxTimeout / time.Millisecond),
	})
	if err != nil {
		return scrape.SolveResult{}, err
	}
	if res.Status != StatusOK {
		return scrape.SolveResult{}, &scrape.SolveError{Status: res.Status, Message: res.Message}
	}
	if res.Solution == nil {
		return scrape.SolveResult{}, &scrape.SolveError{Status: res.Status, Message: "response carried no solution"}
	}
	duration := time.Duration(res.EndTimestamp-res.StartTimestamp) * time.Millisecond
	if duration < 0 {
		duration = 0
	}
	return scrape.SolveResult{
		URL:        res.Solution.URL,
		StatusCode: res.Solution.Status,
		HTML:       res.Solution.Response,
		UserAgent:  res.Solution.UserAgent,
		Duration:   duration,
	}, nil
}

// DestroySession releases a solver session.
func (c *Client) DestroySession(ctx context.Context, sessionID string) error {
	res, err := c.post(ctx, command{Cmd: cmdSessionsDestroy, Session: sessionID})
	if err != nil {
		return err
	}
	if res.Status != StatusOK {
		return fmt.Errorf("%s returned status %q: %s", cmdSessionsDestroy, res.Status, res.Message)
	}
	c.logger.Debug("solver session destroyed", zap.String("session", sessionID))
	return nil
}

func (c *Client) post(ctx context.Context, cmd command) (envelope, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return envelope{}, fmt.Errorf("encode %s command: %w", cmd.Cmd, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return envelope{}, fmt.Errorf("build %s request: %w", cmd.Cmd, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("call solver: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read side only

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, fmt.Errorf("read solver response: %w", err)
	}

	// The proxy reports logical failures with a 500 plus a normal JSON
	// envelope; decode first and only treat undecodable bodies as
	// transport-level failures.
	var res envelope
	if err := json.Unmarshal(raw, &res); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return envelope{}, fmt.Errorf("solver returned HTTP %d for %s", resp.StatusCode, cmd.Cmd)
		}
		return envelope{}, fmt.Errorf("decode solver response for %s: %w", cmd.Cmd, err)
	}
	if res.Status == "" {
		return envelope{}, fmt.Errorf("solver returned HTTP %d with no status for %s", resp.StatusCode, cmd.Cmd)
	}
	return res, nil
}
