// Package main is a notifier plugin that shows attention alerts as desktop
// notifications (osascript on macOS, notify-send elsewhere).
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
)

// Request mirrors the notifier request written to stdin.
type Request struct {
	Event  string          `json:"event"`
	Alert  *Alert          `json:"alert,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Alert mirrors the alert payload.
type Alert struct {
	Timestamp    string  `json:"timestamp"`
	PersonID     string  `json:"person_id"`
	AvgAttention float64 `json:"avg_attention"`
	PresencePct  float64 `json:"presence_pct"`
	Reason       string  `json:"reason"`
	Label        string  `json:"label"`
}

// Response is written to stdout.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Options are read from the manifest config.
type Options struct {
	Sound  string `json:"sound"`
	DryRun bool   `json:"dry_run"`
}

type notifier func(title, body string, opts Options) error

func main() {
	if err := run(os.Stdin, os.Stdout, notifierFor(runtime.GOOS)); err != nil {
		os.Exit(1)
	}
}

func run(in io.Reader, out io.Writer, notify notifier) error {
	var req Request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return writeResponse(out, fmt.Errorf("failed to decode request: %w", err))
	}
	if req.Event != "alert" || req.Alert == nil {
		return writeResponse(out, fmt.Errorf("unsupported event: %q", req.Event))
	}

	var opts Options
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &opts); err != nil {
			return writeResponse(out, fmt.Errorf("invalid config: %w", err))
		}
	}

	title, body := message(req.Alert)
	if opts.DryRun {
		return writeResponse(out, nil)
	}
	return writeResponse(out, notify(title, body, opts))
}

func message(a *Alert) (title, body string) {
	title = a.Label
	if title == "" {
		title = "DISTRACTION ALERT"
	}
	body = fmt.Sprintf("Attention %.0f%% over the last 5 minutes (%s)", a.AvgAttention*100, a.Reason)
	return title, body
}

func writeResponse(out io.Writer, err error) error {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	return json.NewEncoder(out).Encode(resp)
}

func notifierFor(goos string) notifier {
	if goos == "darwin" {
		return osascript
	}
	return notifySend
}

func osascript(title, body string, opts Options) error {
	script := fmt.Sprintf("display notification %q with title %q", body, title)
	if opts.Sound != "" {
		script += fmt.Sprintf(" sound name %q", opts.Sound)
	}
	return runCommand("osascript", "-e", script)
}

func notifySend(title, body string, _ Options) error {
	return runCommand("notify-send", "--urgency=critical", title, body)
}

func runCommand(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, string(output))
	}
	return nil
}
