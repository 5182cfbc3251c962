package attention

import (
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/drishti/internal/config"
)

// TrackRef is the identity and last position of a track, offered to an
// Associator.
type TrackRef struct {
	ID       string
	Box      image.Rectangle
	LastSeen time.Time
}

// Associator decides which existing track a detected face belongs to.
// Tracks are given in creation order. ok is false when a new track should
// be created.
type Associator interface {
	Associate(tracks []TrackRef, box image.Rectangle) (id string, ok bool)
}

// SingleSlot assigns every face to the first track ever created.
type SingleSlot struct{}

// Associate implements Associator.
func (SingleSlot) Associate(tracks []TrackRef, _ image.Rectangle) (string, bool) {
	if len(tracks) == 0 {
		return "", false
	}
	return tracks[0].ID, true
}

// IoUAssociator matches a face to the track whose last box overlaps it most,
// provided the overlap reaches Threshold.
type IoUAssociator struct {
	Threshold float64
}

// Associate implements Associator.
func (a IoUAssociator) Associate(tracks []TrackRef, box image.Rectangle) (string, bool) {
	bestID := ""
	best := a.Threshold
	for _, tr := range tracks {
		v := IoU(tr.Box, box)
		if v >= best && (bestID == "" || v > best) {
			best = v
			bestID = tr.ID
		}
	}
	return bestID, bestID != ""
}

// IoU returns the intersection over union of two rectangles.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := area(inter)
	union := area(a) + area(b) - ia
	if union <= 0 {
		return 0
	}
	return float64(ia) / float64(union)
}

func area(r image.Rectangle) int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}

// Registry owns every Track, keyed by a generated id. All access goes through
// its lock so frame updates and alert checks never interleave on a track.
type Registry struct {
	mu     sync.RWMutex
	cfg    config.Scoring
	assoc  Associator
	tracks map[string]*Track
	order  []string
	newID  func() string
}

// NewRegistry creates an empty registry. A nil associator means SingleSlot.
func NewRegistry(cfg config.Scoring, assoc Associator) *Registry {
	if assoc == nil {
		assoc = SingleSlot{}
	}
	return &Registry{
		cfg:    cfg,
		assoc:  assoc,
		tracks: make(map[string]*Track),
		newID:  uuid.NewString,
	}
}

// Observe routes one detected face to its track, creating the track if the
// associator finds none. Every other track records an absent frame.
// It returns the id of the observed track.
func (r *Registry) Observe(ts time.Time, sig FrameSignals) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	refs := make([]TrackRef, 0, len(r.order))
	for _, id := range r.order {
		t := r.tracks[id]
		refs = append(refs, TrackRef{ID: id, Box: t.FaceBox, LastSeen: t.LastSeen})
	}

	id, ok := r.assoc.Associate(refs, sig.FaceBox)
	if !ok || r.tracks[id] == nil {
		id = r.newID()
		r.tracks[id] = NewTrack(id, r.cfg)
		r.order = append(r.order, id)
	}

	for _, tid := range r.order {
		if tid == id {
			r.tracks[tid].Observe(ts, sig, r.cfg)
		} else {
			r.tracks[tid].ObserveAbsent(ts, r.cfg)
		}
	}
	return id
}

// ObserveAbsent records a frame with no face on every track.
func (r *Registry) ObserveAbsent(ts time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.order {
		r.tracks[id].ObserveAbsent(ts, r.cfg)
	}
}

// Len returns the number of tracks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Get returns a view of the track with the given id.
func (r *Registry) Get(id string, now time.Time) (TrackView, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tracks[id]
	if !ok {
		return TrackView{}, false
	}
	return t.View(now, r.cfg), true
}

// Snapshot returns views of every track in creation order.
func (r *Registry) Snapshot(now time.Time) []TrackView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TrackView, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tracks[id].View(now, r.cfg))
	}
	return out
}

// Samples returns a copy of one window of a track.
func (r *Registry) Samples(id string, h Horizon) ([]Sample, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tracks[id]
	if !ok {
		return nil, false
	}
	return t.Window(h).Samples(), true
}

// AlertHistory returns a copy of a track's alert history.
func (r *Registry) AlertHistory(id string) ([]AlertRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tracks[id]
	if !ok {
		return nil, false
	}
	return append([]AlertRecord(nil), t.AlertHistory...), true
}

// With runs fn on the track with the given id under the write lock.
func (r *Registry) With(id string, fn func(*Track)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tracks[id]
	if !ok {
		return false
	}
	fn(t)
	return true
}

// Each runs fn on every track in creation order under the write lock.
func (r *Registry) Each(fn func(*Track)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.order {
		fn(r.tracks[id])
	}
}

// Remove deletes a track. It reports whether the track existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(id)
}

// Prune removes tracks not seen within timeout of now and returns their ids.
// A non-positive timeout removes nothing. Tracks that were never seen are
// measured from the zero time and so are pruned too.
func (r *Registry) Prune(now time.Time, timeout time.Duration) []string {
	if timeout <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for _, id := range append([]string(nil), r.order...) {
		if now.Sub(r.tracks[id].LastSeen) > timeout {
			r.removeLocked(id)
			removed = append(removed, id)
		}
	}
	return removed
}

func (r *Registry) removeLocked(id string) bool {
	if _, ok := r.tracks[id]; !ok {
		return false
	}
	delete(r.tracks, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}
