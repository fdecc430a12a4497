package solver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pagevault/pagevault/internal/scrape"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	client, err := New(Config{BaseURL: ts.URL, MaxTimeout: 60 * time.Second}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestNewRequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil)
	require.Error(t, err)
}

func TestCreateSessionReturnsServerID(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var cmd command
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			t.Errorf("decode command: %v", err)
		}
		if cmd.Cmd != "sessions.create" {
			t.Errorf("unexpected cmd %q", cmd.Cmd)
		}
		if cmd.Session != "proposed-1" {
			t.Errorf("unexpected proposed session %q", cmd.Session)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"message": "Session created successfully.",
			"session": "solver-5",
		})
	})

	id, err := client.CreateSession(context.Background(), "proposed-1")
	require.NoError(t, err)
	require.Equal(t, "solver-5", id)
}

func TestCreateSessionNonOKStatus(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "error",
			"message": "too many sessions",
		})
	})

	_, err := client.CreateSession(context.Background(), "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "too many sessions")
}

func TestSolveReturnsSolution(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var cmd command
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			t.Errorf("decode command: %v", err)
		}
		if cmd.Cmd != "request.get" {
			t.Errorf("unexpected cmd %q", cmd.Cmd)
		}
		if cmd.URL != "https://protected.example.com" {
			t.Errorf("unexpected url %q", cmd.URL)
		}
		if cmd.Session != "session-9" {
			t.Errorf("unexpected session %q", cmd.Session)
		}
		if cmd.MaxTimeout != 60000 {
			t.Errorf("unexpected maxTimeout %d", cmd.MaxTimeout)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":         "ok",
			"message":        "Challenge solved!",
			"startTimestamp": 1000,
			"endTimestamp":   3500,
			"version":        "2.4.1",
			"solution": map[string]any{
				"url":       "https://protected.example.com/",
				"status":    200,
				"userAgent": "Mozilla/5.0 (X11; Linux x86_64)",
				"response":  "<html><body>unlocked</body></html>",
				"headers":   map[string]string{"content-type": "text/html"},
			},
		})
	})

	result, err := client.Solve(context.Background(), "https://protected.example.com", "session-9")
	require.NoError(t, err)
	require.Equal(t, "https://protected.example.com/", result.URL)
	require.Equal(t, 200, result.StatusCode)
	require.Equal(t, "<html><body>unlocked</body></html>", result.HTML)
	require.Equal(t, "Mozilla/5.0 (X11; Linux x86_64)", result.UserAgent)
	require.Equal(t, 2500*time.Millisecond, result.Duration)
}

func TestSolveErrorStatusIsSolveError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "error",
			"message": "Challenge not solved",
		})
	})

	_, err := client.Solve(context.Background(), "https://protected.example.com", "session-9")
	require.Error(t, err)

	var solveErr *scrape.SolveError
	require.True(t, errors.As(err, &solveErr), "expected SolveError, got %T", err)
	require.Equal(t, "error", solveErr.Status)
	require.Contains(t, solveErr.Message, "Challenge not solved")
}

func TestSolveMissingSolutionIsSolveError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	})

	_, err := client.Solve(context.Background(), "https://protected.example.com", "session-9")
	var solveErr *scrape.SolveError
	require.True(t, errors.As(err, &solveErr), "expected SolveError, got %T", err)
}

func TestSolveTransportErrorIsNotSolveError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	client, err := New(Config{BaseURL: ts.URL}, zap.NewNop())
	require.NoError(t, err)
	ts.Close()

	_, err = client.Solve(context.Background(), "https://protected.example.com", "session-9")
	require.Error(t, err)

	var solveErr *scrape.SolveError
	require.False(t, errors.As(err, &solveErr), "transport failure must not be a SolveError")
}

func TestUndecodableErrorResponseIsTransport(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := client.Solve(context.Background(), "https://protected.example.com", "session-9")
	require.Error(t, err)
	require.Contains(t, err.Error(), "HTTP 502")
}

func TestDestroySession(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var cmd command
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			t.Errorf("decode command: %v", err)
		}
		if cmd.Cmd != "sessions.destroy" {
			t.Errorf("unexpected cmd %q", cmd.Cmd)
		}
		if cmd.Session != "session-9" {
			t.Errorf("unexpected session %q", cmd.Session)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "message": "The session has been removed."})
	})

	require.NoError(t, client.DestroySession(context.Background(), "session-9"))
}

func TestDestroySessionNonOKStatus(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "error", "message": "The session doesn't exist."})
	})

	err := client.DestroySession(context.Background(), "session-9")
	require.Error(t, err)
	require.Contains(t, err.Error(), "doesn't exist")
}
