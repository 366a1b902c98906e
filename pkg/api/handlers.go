package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"

	"space_syntax/pkg/export"
	"space_syntax/pkg/geo"
	"space_syntax/pkg/syntax"
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	analyzer     syntax.Analyzer
	defaults     syntax.Request
	maxBodyBytes int64
	started      time.Time

	analyses atomic.Int64
	failed   atomic.Int64
	roads    atomic.Int64
}

// NewHandlers creates handlers running analyses with the given analyzer.
// defaults supplies every option a request leaves unset.
func NewHandlers(analyzer syntax.Analyzer, defaults syntax.Request, maxBodyBytes int64) *Handlers {
	return &Handlers{
		analyzer:     analyzer,
		defaults:     defaults,
		maxBodyBytes: maxBodyBytes,
		started:      time.Now(),
	}
}

// HandleAnalyze handles POST /api/v1/analyze.
func (h *Handlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	// Enforce Content-Type.
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	// Parse request.
	var req AnalyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request_too_large", "")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	sreq, proj, field, err := h.buildRequest(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+field, field)
		return
	}

	// Analyze.
	result, err := h.analyzer.Analyze(r.Context(), sreq)
	if err != nil {
		h.failed.Add(1)
		if errors.Is(err, syntax.ErrScoresMismatch) {
			writeError(w, http.StatusUnprocessableEntity, "scores_mismatch", "scores")
			return
		}
		if errors.Is(err, syntax.ErrInvalidScores) {
			writeError(w, http.StatusUnprocessableEntity, "invalid_scores", "scores")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	if !result.Complete {
		h.failed.Add(1)
		writeError(w, http.StatusServiceUnavailable, "request_timeout", "")
		return
	}
	h.analyses.Add(1)
	h.roads.Add(int64(len(result.Roads)))

	w.Header().Set("Content-Type", "application/json")
	if req.GeoJSON {
		w.Header().Set("Content-Type", "application/geo+json")
		export.Write(w, result, proj)
		return
	}
	json.NewEncoder(w).Encode(toResponse(result, proj))
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatsResponse{
		Analyses:      h.analyses.Load(),
		Failed:        h.failed.Load(),
		RoadsAnalysed: h.roads.Load(),
		UptimeSeconds: time.Since(h.started).Seconds(),
		Workers:       h.defaults.Workers,
	})
}

// buildRequest merges the request over the defaults and converts its
// coordinates to local metres. On failure it names the offending field.
func (h *Handlers) buildRequest(req *AnalyzeRequest) (syntax.Request, *geo.Projection, string, error) {
	out := h.defaults
	if req.Tolerance != nil {
		out.Tolerance = *req.Tolerance
	}
	if req.Merge != nil {
		out.Merge = *req.Merge
	}
	if req.Radius != nil {
		out.Radius = *req.Radius
	}
	if req.RadiusPolicy != "" {
		p, err := syntax.ParseRadiusPolicy(req.RadiusPolicy)
		if err != nil {
			return out, nil, "radius_policy", err
		}
		out.RadiusPolicy = p
	}
	if req.SnapEndpoints != nil {
		out.SnapEndpoints = *req.SnapEndpoints
	}
	if req.LargestComponentOnly != nil {
		out.LargestComponentOnly = *req.LargestComponentOnly
	}
	out.Scores = req.Scores

	if len(req.Polylines) == 0 {
		return out, nil, "polylines", errors.New("no polylines")
	}
	var proj *geo.Projection
	switch req.Coordinates {
	case "", CoordsLocal:
	case CoordsLonLat:
		var err error
		if proj, err = projectionFor(req.Polylines); err != nil {
			return out, nil, "coordinates", err
		}
	default:
		return out, nil, "coordinates", fmt.Errorf("unknown coordinate system %q", req.Coordinates)
	}

	out.Polylines = make([]geo.Polyline, len(req.Polylines))
	for i, raw := range req.Polylines {
		pl := make(geo.Polyline, len(raw))
		for k, c := range raw {
			if len(c) < 2 || len(c) > 3 {
				return out, nil, "polylines", fmt.Errorf("polyline %d point %d has %d coordinates", i, k, len(c))
			}
			var z float64
			if len(c) == 3 {
				z = c[2]
			}
			if proj != nil {
				pl[k] = proj.Forward(c[1], c[0], z)
			} else {
				pl[k] = geo.Point3{X: c[0], Y: c[1], Z: z}
			}
		}
		out.Polylines[i] = pl
	}
	return out, proj, "", nil
}

// projectionFor validates lon/lat input and returns a projection centred on
// its extent.
func projectionFor(polylines [][][]float64) (*geo.Projection, error) {
	var b orb.Bound
	first := true
	for _, raw := range polylines {
		for _, c := range raw {
			if len(c) < 2 {
				continue
			}
			if err := validateCoord(c[1], c[0]); err != nil {
				return nil, err
			}
			p := orb.Point{c[0], c[1]}
			if first {
				b = orb.Bound{Min: p, Max: p}
				first = false
			} else {
				b = b.Extend(p)
			}
		}
	}
	center := b.Center()
	return geo.NewProjection(center.Lat(), center.Lon()), nil
}

func toResponse(res *syntax.Result, proj *geo.Projection) AnalyzeResponse {
	resp := AnalyzeResponse{
		Roads:   make([][][]float64, len(res.Roads)),
		Members: res.Members,
		Metric:  res.Metric,
		Angular: res.Angular,
		Custom:  res.Custom,
		NACH:    res.NACH,
		NAIN:    res.NAIN,
		Radius:  res.Radius,
		Policy:  res.Policy.String(),
		Stats:   res.Stats,
		Summary: res.Summary,
	}
	if syntax.IsGlobal(res.Radius) {
		resp.Radius = -1
	}
	for i, road := range res.Roads {
		coords := make([][]float64, len(road))
		for k, pt := range road {
			if proj != nil {
				lat, lon := proj.Inverse(pt)
				coords[k] = []float64{lon, lat, pt.Z}
			} else {
				coords[k] = []float64{pt.X, pt.Y, pt.Z}
			}
		}
		resp.Roads[i] = coords
	}
	return resp
}

func validateCoord(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return errors.New("coordinates must be finite numbers")
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return errors.New("coordinates out of range")
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Field: field})
}
