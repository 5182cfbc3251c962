package server

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ayusman/drishti/internal/attention"
	"github.com/ayusman/drishti/internal/server/api"
)

// ChartHandler renders an HTML page charting the attention windows of a
// track: the long-window attention trace and per-horizon statistics.
type ChartHandler struct {
	tracks api.TrackSource
}

// NewChartHandler creates a ChartHandler over tracks.
func NewChartHandler(tracks api.TrackSource) *ChartHandler {
	return &ChartHandler{tracks: tracks}
}

// ServeHTTP handles GET /debug/attention?id=<track>. Without an id the
// first track is shown.
func (h *ChartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		views := h.tracks.Snapshot()
		if len(views) == 0 {
			http.Error(w, "no tracks", http.StatusNotFound)
			return
		}
		id = views[0].ID
	}

	view, ok := h.tracks.Track(id)
	if !ok {
		http.Error(w, "track not found", http.StatusNotFound)
		return
	}
	samples, _ := h.tracks.Samples(id, attention.Long)

	page := components.NewPage()
	page.AddCharts(traceChart(view, samples), statsChart(view))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("render error: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func traceChart(view attention.TrackView, samples []attention.Sample) *charts.Line {
	x := make([]string, 0, len(samples))
	attn := make([]opts.LineData, 0, len(samples))
	present := make([]opts.LineData, 0, len(samples))
	for _, s := range samples {
		x = append(x, s.At.Format("15:04:05.000"))
		attn = append(attn, opts.LineData{Value: s.Attention})
		p := 0.0
		if s.Present {
			p = 1
		}
		present = append(present, opts.LineData{Value: p})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Attention", Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Attention (" + attention.Long.Label() + ")",
			Subtitle: fmt.Sprintf("track=%s samples=%d ema=%.2f", view.ID, len(samples), view.EMAAttention),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1}),
	)
	line.SetXAxis(x).
		AddSeries("attention", attn).
		AddSeries("present", present)
	return line
}

func statsChart(view attention.TrackView) *charts.Bar {
	stats := []attention.Stats{view.Short, view.Medium, view.Long}

	x := make([]string, 0, len(stats))
	avg := make([]opts.BarData, 0, len(stats))
	presence := make([]opts.BarData, 0, len(stats))
	focused := make([]opts.BarData, 0, len(stats))
	for i, h := range attention.Horizons {
		x = append(x, h.Label())
		avg = append(avg, opts.BarData{Value: stats[i].AvgAttention})
		presence = append(presence, opts.BarData{Value: stats[i].PresencePct})
		focused = append(focused, opts.BarData{Value: stats[i].FocusedPct})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Window statistics", Subtitle: fmt.Sprintf("alerts=%d indicator=%t", view.Alerts, view.Indicator)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1}),
	)
	bar.SetXAxis(x).
		AddSeries("avg attention", avg).
		AddSeries("presence", presence).
		AddSeries("focused", focused)
	return bar
}
