package feed

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported feed stages.
const (
	StageCaptureStart       Stage = "CAPTURE_START"
	StageCaptureOK          Stage = "CAPTURE_OK"
	StageCaptureError       Stage = "CAPTURE_ERROR"
	StageSessionCreated     Stage = "SESSION_CREATED"
	StageSessionReused      Stage = "SESSION_REUSED"
	StageSessionInvalidated Stage = "SESSION_INVALIDATED"
)

// Event captures a single milestone in the capture or session lifecycle. The
// JSON form is what the HTTP API serves from the recent-events ring.
type Event struct {
	// Task names the scheduled task; required for capture stages.
	Task string `json:"task,omitempty"`
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time `json:"ts"`
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage `json:"stage"`
	// TargetURL is the page the event concerns.
	TargetURL string `json:"target_url,omitempty"`
	// SessionID scopes session events to a solver session.
	SessionID string `json:"session_id,omitempty"`
	// StatusCode carries the solved HTTP status for capture completions.
	StatusCode int `json:"status_code,omitempty"`
	// Bytes is the size of the captured document.
	Bytes int64 `json:"bytes,omitempty"`
	// BlobURI points at the stored artifact for successful captures.
	BlobURI string `json:"blob_uri,omitempty"`
	// DurMs captures attempt latency in milliseconds.
	DurMs int64 `json:"dur_ms,omitempty"`
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string `json:"note,omitempty"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageCaptureStart, StageCaptureOK, StageCaptureError:
		if e.Task == "" {
			return errors.New("capture events require a task name")
		}
		if e.TargetURL == "" {
			return errors.New("capture events require a target url")
		}
	case StageSessionCreated, StageSessionReused, StageSessionInvalidated:
		if e.TargetURL == "" {
			return errors.New("session events require a target url")
		}
		if e.SessionID == "" {
			return errors.New("session events require a session id")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.DurMs < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
