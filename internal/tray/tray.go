// Package tray provides a system tray interface for drishti.
package tray

import (
	"fmt"
	"math"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/drishti/internal/attention"
)

// Tray shows the live attention score and the last alert in the system tray.
type Tray struct {
	onToggle    func(enabled bool)
	onDashboard func()
	onQuit      func()
	enabled     bool
	mu          sync.RWMutex

	// Menu items stored for later updates
	menuToggle    *systray.MenuItem
	menuAttention *systray.MenuItem
	menuLastAlert *systray.MenuItem
}

// New creates a new Tray instance with enabled state set to true by default.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback function to be called when scoring is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnDashboard sets the callback function to be called when the dashboard menu item is clicked.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray event loop.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle(Title(nil))
	systray.SetTooltip("drishti attention monitor")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Pause or resume attention scoring")
	systray.AddSeparator()

	t.menuAttention = systray.AddMenuItem(Summary(nil), "Attention of the tracked subjects")
	t.menuAttention.Disable()
	t.menuLastAlert = systray.AddMenuItem("Last alert: none", "Most recent distraction alert")
	t.menuLastAlert.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuDashboard := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit drishti")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuDashboard.ClickedCh:
				t.handleDashboard()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleDashboard() {
	t.mu.RLock()
	callback := t.onDashboard
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Update refreshes the title and attention item from the current views.
func (t *Tray) Update(views []attention.TrackView) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuAttention == nil {
		return
	}
	systray.SetTitle(Title(views))
	t.menuAttention.SetTitle(Summary(views))
}

// SetLastAlert shows rec as the most recent alert.
func (t *Tray) SetLastAlert(rec attention.AlertRecord) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLastAlert != nil {
		t.menuLastAlert.SetTitle(AlertText(rec))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// Title is the tray title for views: the lowest smoothed attention, marked
// with "!" while any track shows the alert indicator.
func Title(views []attention.TrackView) string {
	if len(views) == 0 {
		return "Attn --"
	}
	lowest := views[0]
	alerted := false
	for _, v := range views {
		if v.EMAAttention < lowest.EMAAttention {
			lowest = v
		}
		alerted = alerted || v.Indicator
	}
	title := fmt.Sprintf("Attn %d%%", percent(lowest.EMAAttention))
	if alerted {
		title += " !"
	}
	return title
}

// Summary describes how many subjects are tracked and how many are alerted.
func Summary(views []attention.TrackView) string {
	if len(views) == 0 {
		return "No subject in view"
	}
	alerted := 0
	for _, v := range views {
		if v.Indicator {
			alerted++
		}
	}
	return fmt.Sprintf("Tracking %d, alerted %d", len(views), alerted)
}

// AlertText is the menu text for an alert.
func AlertText(rec attention.AlertRecord) string {
	return fmt.Sprintf("Last alert: %s (%d%%)", rec.At.Local().Format("15:04:05"), percent(rec.AvgAttention))
}

func percent(v float64) int {
	return int(math.Floor(attention.Clamp(v, 0, 1) * 100))
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Scoring"
	}
	return "○ Paused"
}
