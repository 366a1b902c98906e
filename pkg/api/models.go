package api

import "space_syntax/pkg/syntax"

// Coordinate systems accepted in AnalyzeRequest.Coordinates.
const (
	CoordsLocal  = "local"  // [x, y, z] in metres
	CoordsLonLat = "lonlat" // [lon, lat, z] in degrees, z in metres
)

// AnalyzeRequest is the JSON body for POST /api/v1/analyze. Unset options
// fall back to the server's configured defaults.
type AnalyzeRequest struct {
	Polylines   [][][]float64 `json:"polylines"`
	Coordinates string        `json:"coordinates,omitempty"`
	Scores      []float64     `json:"scores,omitempty"`

	Tolerance            *float64 `json:"tolerance,omitempty"`
	Merge                *bool    `json:"merge,omitempty"`
	Radius               *float64 `json:"radius,omitempty"` // -1 for global
	RadiusPolicy         string   `json:"radius_policy,omitempty"`
	SnapEndpoints        *bool    `json:"snap_endpoints,omitempty"`
	LargestComponentOnly *bool    `json:"largest_component_only,omitempty"`

	// GeoJSON selects a feature collection response instead of arrays.
	GeoJSON bool `json:"geojson,omitempty"`
}

// AnalyzeResponse is the JSON response for a successful analysis. Every
// per-road array is aligned with Roads.
type AnalyzeResponse struct {
	Roads   [][][]float64             `json:"roads"`
	Members [][]int                   `json:"members"`
	Metric  syntax.Channel            `json:"metric"`
	Angular syntax.Channel            `json:"angular"`
	Custom  *syntax.Channel           `json:"custom,omitempty"`
	NACH    []float64                 `json:"nach"`
	NAIN    []float64                 `json:"nain"`
	Radius  float64                   `json:"radius"` // -1 for global
	Policy  string                    `json:"radius_policy"`
	Stats   syntax.Stats              `json:"stats"`
	Summary map[string]syntax.Summary `json:"summary"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	Analyses      int64   `json:"analyses"`
	Failed        int64   `json:"failed"`
	RoadsAnalysed int64   `json:"roads_analysed"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Workers       int     `json:"workers"`
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}
