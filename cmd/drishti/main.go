package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/drishti/internal/app"
	"github.com/ayusman/drishti/internal/attention"
	"github.com/ayusman/drishti/internal/capture"
	"github.com/ayusman/drishti/internal/config"
	"github.com/ayusman/drishti/internal/detector"
	"github.com/ayusman/drishti/internal/log"
	"github.com/ayusman/drishti/internal/notify"
	"github.com/ayusman/drishti/internal/server"
	"github.com/ayusman/drishti/internal/store"
	"github.com/ayusman/drishti/internal/tray"
)

const pluginTimeout = 5 * time.Second

func main() {
	rt, err := config.LoadRuntime()
	if err != nil {
		fmt.Fprintf(os.Stderr, "drishti: %v\n", err)
		os.Exit(1)
	}
	log.Init(rt.LogLevel)

	scoring, err := rt.Scoring()
	if err != nil {
		log.Error("invalid scoring configuration", "path", rt.TuningPath, "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(rt.DBPath), 0755); err != nil {
		log.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}
	st, err := store.New(rt.DBPath)
	if err != nil {
		log.Error("failed to initialize store", "path", rt.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	session := &store.Session{ID: uuid.NewString(), CameraID: rt.CameraID}
	if err := st.Sessions().Create(session); err != nil {
		log.Error("failed to start session", "error", err)
		os.Exit(1)
	}
	log.Info("session started", "session_id", session.ID, "camera_id", rt.CameraID)

	plugins := notify.NewManager(rt.PluginDir)
	if err := plugins.Discover(); err != nil {
		log.Warn("plugin discovery failed", "dir", rt.PluginDir, "error", err)
	}
	log.Info("notifier plugins loaded", "count", len(plugins.Subscribers(notify.EventAlert)))
	dispatcher := notify.NewDispatcher(plugins, notify.NewExecutor(pluginTimeout))

	var det detector.Detector
	if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig()); err == nil {
		det = mp
		log.Info("using MediaPipe landmark detection")
	} else {
		log.Warn("MediaPipe not available, using mock detector", "error", err)
		det = detector.NewMockDetector()
	}

	camOpts := capture.DefaultOptions()
	camOpts.DeviceID = rt.CameraID
	camOpts.FPS = scoring.FrameRate()

	// One subject by default; IoU matching keeps a track per visible face.
	var assoc attention.Associator
	if rt.MultiFace {
		assoc = attention.IoUAssociator{Threshold: 0.3}
		log.Info("multi-face tracking enabled", "track_timeout", rt.TrackTimeout)
	}

	a := app.New(app.Config{
		Scoring:      scoring,
		Store:        st,
		SessionID:    session.ID,
		Notifier:     dispatcher,
		TrackTimeout: rt.TrackTimeout,
		Associator:   assoc,
	}, capture.NewCamera(camOpts), det)

	hub := server.NewOverlayHub()
	a.OnFrame(hub.Publish)

	webDir := findWebDir()
	if webDir != "" {
		log.Info("serving static files", "dir", webDir)
	}
	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		Tracks:    a,
		Frames:    a,
		Overlay:   hub,
	})

	go func() {
		log.Info("starting server", "addr", rt.ListenAddr)
		if err := srv.ListenAndServe(rt.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	if err := a.Start(); err != nil {
		log.Error("failed to start pipeline", "error", err)
	}

	shutdown := func() {
		a.Stop()
		dispatcher.Close()
		if err := st.Sessions().End(session.ID, time.Now()); err != nil {
			log.Warn("failed to end session", "session_id", session.ID, "error", err)
		}
		log.Info("session ended", "session_id", session.ID)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if !rt.Tray {
		<-sigCh
		shutdown()
		return
	}

	t := tray.New()
	t.OnToggle(a.SetEnabled)
	t.OnDashboard(func() { openBrowser(dashboardURL(rt.ListenAddr)) })
	a.OnFrame(func(_ time.Time, views []attention.TrackView) { t.Update(views) })
	a.OnAlert(t.SetLastAlert)

	go func() {
		<-sigCh
		t.Quit()
	}()
	t.Run()
	shutdown()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.drishti/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".drishti", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}

// dashboardURL turns a listen address into a browsable URL.
func dashboardURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Warn("failed to open browser", "url", url, "error", err)
		return
	}
	go cmd.Wait()
}
