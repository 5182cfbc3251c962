package attention

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Horizon selects one of a track's sliding windows.
type Horizon int

const (
	Short Horizon = iota
	Medium
	Long

	numHorizons = 3
)

// Horizons lists every horizon from shortest to longest.
var Horizons = [numHorizons]Horizon{Short, Medium, Long}

// Duration returns the time span the horizon covers.
func (h Horizon) Duration() time.Duration {
	switch h {
	case Short:
		return time.Second
	case Medium:
		return 30 * time.Second
	case Long:
		return 300 * time.Second
	default:
		return 0
	}
}

// Capacity is the sample capacity of the horizon at the given frame rate,
// never less than one.
func (h Horizon) Capacity(fps float64) int {
	n := int(math.Round(fps * h.Duration().Seconds()))
	if n < 1 {
		return 1
	}
	return n
}

func (h Horizon) String() string {
	switch h {
	case Short:
		return "short"
	case Medium:
		return "medium"
	case Long:
		return "long"
	default:
		return "unknown"
	}
}

// ParseHorizon accepts a horizon name ("short") or label ("5min").
func ParseHorizon(s string) (Horizon, error) {
	for _, h := range Horizons {
		if s == h.String() || s == h.Label() {
			return h, nil
		}
	}
	return 0, fmt.Errorf("unknown horizon %q", s)
}

// Label is the human-readable span used in alert reasons.
func (h Horizon) Label() string {
	switch h {
	case Short:
		return "1s"
	case Medium:
		return "30s"
	case Long:
		return "5min"
	default:
		return "?"
	}
}

// Sample is one frame's contribution to a window.
type Sample struct {
	At        time.Time `json:"at"`
	Attention float64   `json:"attention"`
	Present   bool      `json:"present"`
}

// Stats summarizes a window.
type Stats struct {
	AvgAttention float64 `json:"avg_attention"` // mean over present samples only
	PresencePct  float64 `json:"presence_pct"`  // present / total, as a fraction
	FocusedPct   float64 `json:"focused_pct"`   // present samples at or above the focus threshold / present
	Samples      int     `json:"samples"`
	Present      int     `json:"present"`
}

// Window is a fixed-capacity ring buffer of samples in chronological order.
// It is not safe for concurrent use; the owning Registry serializes access.
type Window struct {
	buf   []Sample
	start int
	n     int
}

// NewWindow creates a window that holds at most capacity samples.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]Sample, capacity)}
}

// Push appends s, evicting the oldest sample when full. A sample stamped
// before the newest one held is kept but restamped to the newest time, so
// the window stays in chronological order when the clock steps back.
func (w *Window) Push(s Sample) {
	if w.n > 0 {
		if newest := w.newest().At; s.At.Before(newest) {
			s.At = newest
		}
	}
	if w.n < len(w.buf) {
		w.buf[(w.start+w.n)%len(w.buf)] = s
		w.n++
		return
	}
	w.buf[w.start] = s
	w.start = (w.start + 1) % len(w.buf)
}

func (w *Window) newest() Sample {
	return w.buf[(w.start+w.n-1)%len(w.buf)]
}

// Len returns the number of samples held.
func (w *Window) Len() int { return w.n }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Samples returns a copy of the held samples, oldest first.
func (w *Window) Samples() []Sample {
	out := make([]Sample, w.n)
	for i := 0; i < w.n; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}

// Stats computes presence and average attention. FocusedPct is left at zero;
// use StatsWithFocus when it is needed.
func (w *Window) Stats() Stats {
	return w.stats(math.Inf(1))
}

// StatsWithFocus is Stats plus the fraction of present samples whose
// attention is at least threshold.
func (w *Window) StatsWithFocus(threshold float64) Stats {
	return w.stats(threshold)
}

func (w *Window) stats(focus float64) Stats {
	st := Stats{Samples: w.n}
	if w.n == 0 {
		return st
	}

	present := make([]float64, 0, w.n)
	focused := 0
	for i := 0; i < w.n; i++ {
		s := w.buf[(w.start+i)%len(w.buf)]
		if !s.Present {
			continue
		}
		present = append(present, s.Attention)
		if s.Attention >= focus {
			focused++
		}
	}

	st.Present = len(present)
	st.PresencePct = float64(st.Present) / float64(st.Samples)
	if st.Present > 0 {
		st.AvgAttention = stat.Mean(present, nil)
		st.FocusedPct = float64(focused) / float64(st.Present)
	}
	return st
}
