package attention

import (
	"fmt"
	"time"

	"github.com/ayusman/drishti/internal/config"
)

// State is the outcome of one alert check.
type State int

const (
	// StateNormal means presence was sufficient and attention was above threshold.
	StateNormal State = iota
	// StateInsufficientData means too few frames had a face to judge.
	StateInsufficientData
	// StatePending means the window failed but the debounce count is not reached yet.
	StatePending
	// StateAlerted means the window failed and an alert was recorded.
	StateAlerted
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateInsufficientData:
		return "insufficient_data"
	case StatePending:
		return "pending"
	case StateAlerted:
		return "alerted"
	default:
		return "unknown"
	}
}

// Decision is the result of checking one track.
type Decision struct {
	PersonID string
	At       time.Time
	State    State
	Stats    Stats        // long-window statistics the decision was based on
	Alert    *AlertRecord // the record appended to history, nil if none
}

// Engine runs the periodic alert check. It is driven from the frame loop and
// is not safe for concurrent use.
type Engine struct {
	cfg       config.Scoring
	lastCheck time.Time
}

// NewEngine creates an engine whose first check is due one interval after start.
func NewEngine(cfg config.Scoring, start time.Time) *Engine {
	return &Engine{cfg: cfg, lastCheck: start}
}

// LastCheck returns the time the schedule is anchored to.
func (e *Engine) LastCheck() time.Time { return e.lastCheck }

// Due reports whether a check interval has elapsed since the last check.
// A clock that moved backwards never triggers a check; the schedule is
// re-anchored at now instead.
func (e *Engine) Due(now time.Time) bool {
	delta := now.Sub(e.lastCheck)
	if delta < 0 {
		e.lastCheck = now
		return false
	}
	return delta >= e.cfg.AlertCheckInterval
}

// Check evaluates the long window of t and mutates its alert state.
func (e *Engine) Check(now time.Time, t *Track) Decision {
	stats := t.Stats(Long, e.cfg)
	d := Decision{PersonID: t.ID, At: now, Stats: stats}

	if stats.PresencePct < e.cfg.FacePresenceMinPct {
		t.AlertFlag = false
		t.AlertCount = 0
		d.State = StateInsufficientData
		return d
	}

	if stats.AvgAttention*100 < e.cfg.AlertThresholdPct {
		t.AlertCount++
		if t.AlertCount < e.cfg.ConsecutiveAlertWindowsRequired {
			d.State = StatePending
			return d
		}

		rec := AlertRecord{
			At:           now,
			PersonID:     t.ID,
			AvgAttention: stats.AvgAttention,
			PresencePct:  stats.PresencePct,
			Reason:       fmt.Sprintf("%s avg < threshold (%.1f%%)", Long.Label(), e.cfg.AlertThresholdPct),
		}
		t.AlertFlag = true
		t.AlertHistory = append(t.AlertHistory, rec)
		t.RedBoxUntil = now.Add(e.cfg.RedBoxDuration)

		d.State = StateAlerted
		d.Alert = &rec
		return d
	}

	t.AlertFlag = false
	t.AlertCount = 0
	d.State = StateNormal
	return d
}

// Tick checks every track in reg when a check is due and returns the
// decisions, or nil when no check ran.
func (e *Engine) Tick(now time.Time, reg *Registry) []Decision {
	if !e.Due(now) {
		return nil
	}
	e.lastCheck = now

	var out []Decision
	reg.Each(func(t *Track) {
		out = append(out, e.Check(now, t))
	})
	return out
}
