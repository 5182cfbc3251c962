package app

import (
	"errors"
	"time"

	"github.com/ayusman/drishti/internal/log"
)

// ErrNoSource is returned by Start when the App has no frame source.
var ErrNoSource = errors.New("no frame source configured")

// Start opens the source and begins the frame loop. Calling Start on a
// running App does nothing.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}
	if a.source == nil {
		return ErrNoSource
	}

	if !a.source.IsOpen() {
		if err := a.source.Open(); err != nil {
			return err
		}
	}

	fps := a.config.Scoring.FrameRate()
	a.source.SetFPS(fps)

	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.runPipeline(a.stopCh, a.done, time.Second/time.Duration(fps))

	log.Info("attention pipeline started", "fps", fps)
	return nil
}

// Stop halts the frame loop, waits for it to exit and releases the source
// and detector.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, done := a.stopCh, a.done
	a.stopCh, a.done = nil, nil
	a.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-done
	}

	if a.source != nil {
		if err := a.source.Close(); err != nil {
			log.Warn("error closing camera", "error", err)
		}
	}
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			log.Warn("error closing detector", "error", err)
		}
	}

	log.Info("attention pipeline stopped")
}

// Running reports whether the frame loop is active.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopCh != nil
}

// runPipeline reads one frame per tick: capture, detect, score, check,
// draw, publish. A frame that cannot be read counts as absent.
func (a *App) runPipeline(stopCh <-chan struct{}, done chan<- struct{}, interval time.Duration) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			frame, err := a.source.ReadFrame()
			if err != nil {
				log.Warn("error reading frame", "error", err)
				a.ProcessObservation(now, nil)
				continue
			}

			a.ProcessFrame(now, frame)
			frame.Close()
		}
	}
}
