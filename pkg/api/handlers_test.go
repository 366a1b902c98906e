package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paulmach/orb/geojson"

	"space_syntax/pkg/geo"
	"space_syntax/pkg/syntax"
)

// mockAnalyzer implements syntax.Analyzer for testing.
type mockAnalyzer struct {
	result *syntax.Result
	err    error
	got    syntax.Request
}

func (m *mockAnalyzer) Analyze(ctx context.Context, req syntax.Request) (*syntax.Result, error) {
	m.got = req
	return m.result, m.err
}

func oneRoadResult() *syntax.Result {
	ch := syntax.Channel{
		Choice:      []float64{0},
		Integration: []float64{0},
		MeanDepth:   []float64{0},
		TotalDepth:  []float64{0},
		NodeCount:   []int{0},
	}
	return &syntax.Result{
		Roads:    []geo.Polyline{{{X: 0, Y: 0}, {X: 10, Y: 0}}},
		Members:  [][]int{{0}},
		Metric:   ch,
		Angular:  ch,
		NACH:     []float64{0},
		NAIN:     []float64{0},
		Radius:   math.Inf(1),
		Complete: true,
	}
}

func postAnalyze(h *Handlers, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/v1/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.HandleAnalyze(w, req)
	return w
}

func defaults() syntax.Request {
	return syntax.Request{Tolerance: 1e-6, Radius: -1, Workers: 2}
}

func TestHandleAnalyze_Success(t *testing.T) {
	mock := &mockAnalyzer{result: oneRoadResult()}
	h := NewHandlers(mock, defaults(), 1<<20)

	w := postAnalyze(h, `{"polylines":[[[0,0],[10,0,0]]],"merge":true,"radius":400,"radius_policy":"independent"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}

	var resp AnalyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Roads) != 1 || len(resp.Roads[0]) != 2 {
		t.Errorf("Roads = %v", resp.Roads)
	}
	if resp.Radius != -1 {
		t.Errorf("Radius = %v, want -1 for a global analysis", resp.Radius)
	}

	got := mock.got
	if !got.Merge || got.Radius != 400 || got.RadiusPolicy != syntax.Independent {
		t.Errorf("request options not applied: %+v", got)
	}
	if got.Tolerance != 1e-6 || got.Workers != 2 {
		t.Errorf("defaults not applied: %+v", got)
	}
	if len(got.Polylines) != 1 || got.Polylines[0][1] != (geo.Point3{X: 10}) {
		t.Errorf("Polylines = %v", got.Polylines)
	}
}

func TestHandleAnalyze_InvalidJSON(t *testing.T) {
	h := NewHandlers(&mockAnalyzer{}, defaults(), 1<<20)

	w := postAnalyze(h, "not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleAnalyze_MissingContentType(t *testing.T) {
	h := NewHandlers(&mockAnalyzer{}, defaults(), 1<<20)

	req := httptest.NewRequest("POST", "/api/v1/analyze", strings.NewReader(`{"polylines":[[[0,0],[1,0]]]}`))
	w := httptest.NewRecorder()
	h.HandleAnalyze(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleAnalyze_TooLarge(t *testing.T) {
	h := NewHandlers(&mockAnalyzer{}, defaults(), 16)

	w := postAnalyze(h, `{"polylines":[[[0,0],[1,0]],[[0,1],[1,1]]]}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestHandleAnalyze_BadInput(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"no polylines", `{"polylines":[]}`, "polylines"},
		{"one coordinate", `{"polylines":[[[0],[1,0]]]}`, "polylines"},
		{"four coordinates", `{"polylines":[[[0,0,0,0],[1,0]]]}`, "polylines"},
		{"unknown policy", `{"polylines":[[[0,0],[1,0]]],"radius_policy":"angular"}`, "radius_policy"},
		{"unknown coordinates", `{"polylines":[[[0,0],[1,0]]],"coordinates":"utm"}`, "coordinates"},
		{"latitude out of range", `{"polylines":[[[103.8,91],[103.8,1.3]]],"coordinates":"lonlat"}`, "coordinates"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandlers(&mockAnalyzer{}, defaults(), 1<<20)
			w := postAnalyze(h, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			var resp ErrorResponse
			json.Unmarshal(w.Body.Bytes(), &resp)
			if resp.Field != tt.field {
				t.Errorf("field = %q, want %q", resp.Field, tt.field)
			}
		})
	}
}

func TestHandleAnalyze_ScoresMismatch(t *testing.T) {
	mock := &mockAnalyzer{err: fmt.Errorf("wrapped: %w", syntax.ErrScoresMismatch)}
	h := NewHandlers(mock, defaults(), 1<<20)

	w := postAnalyze(h, `{"polylines":[[[0,0],[1,0]]],"scores":[1,2]}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestHandleAnalyze_NegativeScore(t *testing.T) {
	h := NewHandlers(syntax.NewEngine(nil), defaults(), 1<<20)

	w := postAnalyze(h, `{"polylines":[[[0,0],[1,0]]],"scores":[-3]}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error != "invalid_scores" {
		t.Errorf("error = %q, want invalid_scores", resp.Error)
	}
}

func TestHandleAnalyze_Incomplete(t *testing.T) {
	res := oneRoadResult()
	res.Complete = false
	h := NewHandlers(&mockAnalyzer{result: res}, defaults(), 1<<20)

	w := postAnalyze(h, `{"polylines":[[[0,0],[1,0]]]}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestHandleAnalyze_EndToEndLonLat(t *testing.T) {
	h := NewHandlers(syntax.NewEngine(nil), defaults(), 1<<20)

	body := `{
		"coordinates": "lonlat",
		"polylines": [
			[[103.800, 1.300], [103.802, 1.300]],
			[[103.801, 1.299], [103.801, 1.301]]
		],
		"geojson": true
	}`
	w := postAnalyze(h, body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("Content-Type = %q", ct)
	}

	fc, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
	if err != nil {
		t.Fatalf("decode geojson: %v", err)
	}
	if len(fc.Features) != 4 {
		t.Fatalf("got %d features, want 4", len(fc.Features))
	}
	for _, f := range fc.Features {
		if n := f.Properties.MustFloat64("metric_node_count"); n != 3 {
			t.Errorf("metric_node_count = %v, want 3", n)
		}
		lon, lat := f.Geometry.Bound().Center()[0], f.Geometry.Bound().Center()[1]
		if lon < 103.799 || lon > 103.803 || lat < 1.298 || lat > 1.302 {
			t.Errorf("feature centre (%v, %v) is not near the input", lon, lat)
		}
	}

	// Stats reflect the completed analysis.
	sw := httptest.NewRecorder()
	h.HandleStats(sw, httptest.NewRequest("GET", "/api/v1/stats", nil))
	var stats StatsResponse
	json.Unmarshal(sw.Body.Bytes(), &stats)
	if stats.Analyses != 1 || stats.RoadsAnalysed != 4 || stats.Workers != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestHandleHealth(t *testing.T) {
	h := NewHandlers(&mockAnalyzer{}, defaults(), 1<<20)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()

	h.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var resp HealthResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want 'ok'", resp.Status)
	}
}

func TestServerRoutes(t *testing.T) {
	h := NewHandlers(&mockAnalyzer{result: oneRoadResult()}, defaults(), 1<<20)
	cfg := DefaultConfig(":0")
	cfg.CORSOrigin = "https://example.org"
	srv := httptest.NewServer(NewServer(cfg, h).Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://example.org" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	resp, err = http.Post(srv.URL+"/api/v1/analyze", "application/json", strings.NewReader(`{"polylines":[[[0,0],[10,0]]]}`))
	if err != nil {
		t.Fatalf("POST analyze: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("analyze status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/v1/analyze")
	if err != nil {
		t.Fatalf("GET analyze: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET analyze status = %d, want 405", resp.StatusCode)
	}
}
