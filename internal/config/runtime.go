package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Runtime holds the process settings loaded from environment variables.
type Runtime struct {
	ListenAddr   string
	DBPath       string
	CameraID     int
	TuningPath   string // empty means DefaultScoring
	PluginDir    string
	LogLevel     string
	Tray         bool
	TrackTimeout time.Duration // 0 disables eviction
	MultiFace    bool          // track every face instead of one subject
}

// DefaultMultiFaceTrackTimeout evicts tracks of people who left the frame
// when multi-face tracking is on and DRISHTI_TRACK_TIMEOUT is unset.
const DefaultMultiFaceTrackTimeout = 10 * time.Second

// LoadRuntime reads process settings from the environment.
// Optional variables with defaults: DRISHTI_LISTEN_ADDR (127.0.0.1:8080),
// DRISHTI_DB_PATH (~/.drishti/drishti.db), DRISHTI_CAMERA_ID (0),
// DRISHTI_TUNING (unset), DRISHTI_PLUGIN_DIR (~/.drishti/plugins),
// DRISHTI_LOG_LEVEL (info), DRISHTI_TRAY (false), DRISHTI_MULTI_FACE (false),
// DRISHTI_TRACK_TIMEOUT (0, or DefaultMultiFaceTrackTimeout with multi-face).
func LoadRuntime() (*Runtime, error) {
	dataDir := ".drishti"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".drishti")
	}

	rt := &Runtime{
		ListenAddr: "127.0.0.1:8080",
		DBPath:     filepath.Join(dataDir, "drishti.db"),
		PluginDir:  filepath.Join(dataDir, "plugins"),
		LogLevel:   "info",
	}

	if v, ok := os.LookupEnv("DRISHTI_LISTEN_ADDR"); ok {
		rt.ListenAddr = v
	}
	if v, ok := os.LookupEnv("DRISHTI_DB_PATH"); ok {
		rt.DBPath = v
	}
	if v, ok := os.LookupEnv("DRISHTI_CAMERA_ID"); ok {
		id, err := strconv.Atoi(v)
		if err != nil || id < 0 {
			return nil, fmt.Errorf("DRISHTI_CAMERA_ID has invalid value %q", v)
		}
		rt.CameraID = id
	}
	if v, ok := os.LookupEnv("DRISHTI_TUNING"); ok {
		rt.TuningPath = v
	}
	if v, ok := os.LookupEnv("DRISHTI_PLUGIN_DIR"); ok {
		rt.PluginDir = v
	}
	if v, ok := os.LookupEnv("DRISHTI_LOG_LEVEL"); ok {
		rt.LogLevel = v
	}
	if v, ok := os.LookupEnv("DRISHTI_TRAY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("DRISHTI_TRAY has invalid boolean %q: %w", v, err)
		}
		rt.Tray = b
	}
	if v, ok := os.LookupEnv("DRISHTI_MULTI_FACE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("DRISHTI_MULTI_FACE has invalid boolean %q: %w", v, err)
		}
		rt.MultiFace = b
	}
	if rt.MultiFace {
		rt.TrackTimeout = DefaultMultiFaceTrackTimeout
	}
	if v, ok := os.LookupEnv("DRISHTI_TRACK_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("DRISHTI_TRACK_TIMEOUT has invalid duration %q: %w", v, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("DRISHTI_TRACK_TIMEOUT must not be negative, got %v", d)
		}
		rt.TrackTimeout = d
	}

	return rt, nil
}

// Scoring loads the tuning file if one is configured, else the defaults.
func (r *Runtime) Scoring() (Scoring, error) {
	if r.TuningPath == "" {
		cfg := DefaultScoring()
		return cfg, cfg.Validate()
	}
	return LoadScoring(r.TuningPath)
}
