// Package notify delivers attention alerts to external notifier plugins.
// A plugin is an executable that reads one JSON Request on stdin and writes
// one JSON Response on stdout.
package notify

import (
	"encoding/json"

	"github.com/ayusman/drishti/internal/attention"
)

// EventAlert is sent when the engine raises a distraction alert.
const EventAlert = "alert"

// Manifest describes a plugin's metadata and the events it handles.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Handles reports whether the plugin subscribes to event.
func (m Manifest) Handles(event string) bool {
	for _, e := range m.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Alert is the alert payload sent to plugins.
type Alert struct {
	Timestamp    string  `json:"timestamp"`
	PersonID     string  `json:"person_id"`
	AvgAttention float64 `json:"avg_attention"`
	PresencePct  float64 `json:"presence_pct"`
	Reason       string  `json:"reason"`
	Label        string  `json:"label"`
}

// AlertOf converts an engine alert record.
func AlertOf(rec attention.AlertRecord) Alert {
	return Alert{
		Timestamp:    rec.Timestamp(),
		PersonID:     rec.PersonID,
		AvgAttention: rec.AvgAttention,
		PresencePct:  rec.PresencePct,
		Reason:       rec.Reason,
		Label:        attention.AlertLabel,
	}
}

// Request is written to a plugin's stdin.
type Request struct {
	Event  string          `json:"event"`
	Alert  *Alert          `json:"alert,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Response is read from a plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
