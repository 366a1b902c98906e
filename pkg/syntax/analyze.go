// Package syntax runs the space syntax pipeline: it cleans raw road
// polylines into a road graph and publishes per-road centrality indices
// (choice, integration, mean depth, NACH, NAIN).
package syntax

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"space_syntax/pkg/centrality"
	"space_syntax/pkg/geo"
	"space_syntax/pkg/graph"
	"space_syntax/pkg/snap"
	"space_syntax/pkg/split"
)

// ErrScoresMismatch is returned when custom scores are not aligned with the
// input polylines.
var ErrScoresMismatch = graph.ErrScoresMismatch

// ErrInvalidScores is returned when a custom score is negative or not finite.
var ErrInvalidScores = graph.ErrInvalidScores

// RadiusPolicy decides how a finite radius applies to the angular and custom
// passes.
type RadiusPolicy uint8

const (
	// MetricBounded limits every pass to the vertices metrically within the
	// radius of the source, as found by the metric pass.
	MetricBounded RadiusPolicy = iota
	// Independent tests the radius against each channel's own distances.
	Independent
)

func (p RadiusPolicy) String() string {
	switch p {
	case MetricBounded:
		return "metric-bounded"
	case Independent:
		return "independent"
	default:
		return fmt.Sprintf("RadiusPolicy(%d)", uint8(p))
	}
}

// ParseRadiusPolicy parses the names produced by RadiusPolicy.String.
func ParseRadiusPolicy(s string) (RadiusPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "metric-bounded", "metric":
		return MetricBounded, nil
	case "independent":
		return Independent, nil
	default:
		return 0, fmt.Errorf("unknown radius policy %q", s)
	}
}

// Request is one analysis run.
type Request struct {
	Polylines []geo.Polyline
	// Tolerance is the geometric epsilon; values below geo.MinTolerance are
	// clamped.
	Tolerance float64
	// Merge joins chains of roads meeting at degree-two junctions.
	Merge bool
	// Radius is the locality cutoff in metric units; -1 means global.
	Radius       float64
	RadiusPolicy RadiusPolicy
	// Scores holds one custom score per input polyline. When set a Custom
	// channel is computed.
	Scores []float64

	// SnapEndpoints welds polyline ends closer than Tolerance before splitting.
	SnapEndpoints bool
	// LargestComponentOnly drops roads outside the largest connected component.
	LargestComponentOnly bool

	Workers int // 0 uses runtime.NumCPU()
}

// Channel holds the published indices of one weight channel, indexed by road.
type Channel struct {
	Choice      []float64 `json:"choice"`
	Integration []float64 `json:"integration"`
	MeanDepth   []float64 `json:"mean_depth"`
	TotalDepth  []float64 `json:"total_depth"`
	NodeCount   []int     `json:"node_count"`
}

// Stats counts the work done by one analysis.
type Stats struct {
	Polylines   int           `json:"polylines"`
	RawSegments int           `json:"raw_segments"`
	Filtered    int           `json:"filtered"`
	Segments    int           `json:"segments"`
	Roads       int           `json:"roads"`
	Edges       int           `json:"edges"`
	Components  int           `json:"components"`
	Dropped     int           `json:"dropped"` // roads outside the kept component
	Snapped     int           `json:"snapped"` // endpoints moved by snapping
	Elapsed     time.Duration `json:"elapsed_ns"`
}

// Result is the output of an analysis. Every per-road slice is aligned with
// Roads.
type Result struct {
	Roads   []geo.Polyline
	Members [][]int // input polylines each road was built from
	Scores  []float64

	Metric  Channel
	Angular Channel
	Custom  *Channel
	NACH    []float64
	NAIN    []float64

	Radius float64 // normalised; +Inf for a global analysis
	Policy RadiusPolicy
	// Complete is false when the context ended before every source was
	// processed; the indices then cover the finished sources only.
	Complete bool
	Stats    Stats
	Summary  map[string]Summary
}

// Analyzer runs space syntax analyses.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*Result, error)
}

// Engine implements Analyzer.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates an analysis engine. A nil logger uses slog.Default().
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Analyze runs the full pipeline on req.
func Analyze(ctx context.Context, req Request) (*Result, error) {
	return NewEngine(nil).Analyze(ctx, req)
}

// Analyze snaps, splits and merges the input, builds the road graph and runs
// the metric, angular and (with scores) custom centrality passes.
func (e *Engine) Analyze(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	if req.Scores != nil && len(req.Scores) != len(req.Polylines) {
		return nil, fmt.Errorf("%w: %d scores for %d polylines", ErrScoresMismatch, len(req.Scores), len(req.Polylines))
	}
	for i, s := range req.Scores {
		if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
			return nil, fmt.Errorf("%w: polyline %d has score %v", ErrInvalidScores, i, s)
		}
	}
	if req.RadiusPolicy > Independent {
		return nil, fmt.Errorf("unknown radius policy %d", req.RadiusPolicy)
	}
	tol := geo.ClampTolerance(req.Tolerance)
	radius := NormalizeRadius(req.Radius)

	res := &Result{Radius: radius, Policy: req.RadiusPolicy}
	res.Stats.Polylines = len(req.Polylines)

	// Step 1: Weld nearby endpoints.
	polylines := req.Polylines
	if req.SnapEndpoints {
		sn := snap.Endpoints(polylines, tol, e.logger)
		polylines = sn.Polylines
		res.Stats.Snapped = sn.Moved
	}

	// Step 2: Split into atomic segments.
	sp := split.Split(polylines, split.Options{Tolerance: tol, Logger: e.logger})
	res.Stats.RawSegments = sp.Stats.RawSegments
	res.Stats.Filtered = sp.Stats.Filtered
	res.Stats.Segments = len(sp.Segments)

	atoms := make([]geo.Polyline, len(sp.Segments))
	for i, s := range sp.Segments {
		atoms[i] = geo.Polyline{s.From, s.To}
	}
	var atomScores []float64
	if req.Scores != nil {
		atomScores = make([]float64, len(atoms))
		for i, src := range sp.Sources {
			atomScores[i] = req.Scores[src]
		}
	}

	// Step 3: Build the road graph.
	net, err := graph.BuildNetwork(atoms, graph.BuildOptions{
		Merge:         req.Merge,
		Scores:        atomScores,
		CheckParallel: true,
		Logger:        e.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build network: %w", err)
	}
	g := net.Graph
	roads, members, scores := net.Roads, net.Members, net.Scores
	for i, m := range members {
		// Report members against the caller's polylines, not the atoms.
		members[i] = sourcesOf(m, sp.Sources)
	}

	comps := graph.Components(g)
	res.Stats.Components = comps.Count
	if req.LargestComponentOnly && comps.Count > 1 {
		keep := graph.LargestComponent(g)
		g = graph.FilterToComponent(g, keep)
		roads = pick(roads, keep)
		members = pick(members, keep)
		if scores != nil {
			scores = pick(scores, keep)
		}
		res.Stats.Dropped = len(net.Roads) - len(keep)
	}
	res.Roads, res.Members, res.Scores = roads, members, scores
	res.Stats.Roads = len(roads)
	res.Stats.Edges = int(g.NumEdges)

	// Step 4: Centrality passes.
	metric, err := centrality.Compute(ctx, g, centrality.Options{
		Channel: graph.Metric,
		Radius:  radius,
		Workers: req.Workers,
		Logger:  e.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("metric pass: %w", err)
	}
	angular, err := e.dependentPass(ctx, g, graph.Angular, metric, radius, req)
	if err != nil {
		return nil, fmt.Errorf("angular pass: %w", err)
	}

	res.Metric = publish(metric)
	res.Angular = publish(angular)
	res.NACH = make([]float64, len(roads))
	res.NAIN = make([]float64, len(roads))
	for i := range roads {
		res.NACH[i] = NACH(angular.Betweenness[i], angular.TotalDepth[i])
		res.NAIN[i] = NAIN(angular.NodeCount[i], angular.TotalDepth[i])
	}
	res.Complete = metric.Complete && angular.Complete

	if scores != nil {
		custom, err := e.dependentPass(ctx, g, graph.Custom, metric, radius, req)
		if err != nil {
			return nil, fmt.Errorf("custom pass: %w", err)
		}
		ch := publish(custom)
		res.Custom = &ch
		res.Complete = res.Complete && custom.Complete
	}

	res.Summary = summarize(res)
	res.Stats.Elapsed = time.Since(started)

	e.logger.Info("analysis complete",
		"polylines", res.Stats.Polylines,
		"segments", res.Stats.Segments,
		"roads", res.Stats.Roads,
		"edges", res.Stats.Edges,
		"radius", radius,
		"policy", req.RadiusPolicy.String(),
		"complete", res.Complete,
		"elapsed", res.Stats.Elapsed,
	)
	return res, nil
}

// dependentPass runs a non-metric channel. Under MetricBounded with a finite
// radius it reuses the metric pass's reachable sets instead of testing the
// radius against its own distances.
func (e *Engine) dependentPass(ctx context.Context, g *graph.Graph, ch graph.Channel, metric *centrality.Result, radius float64, req Request) (*centrality.Result, error) {
	opts := centrality.Options{
		Channel: ch,
		Radius:  radius,
		Workers: req.Workers,
		Logger:  e.logger,
	}
	if !IsGlobal(radius) && req.RadiusPolicy == MetricBounded {
		opts.Radius = 0
		opts.Restrict = metric.Subgraphs
	}
	return centrality.Compute(ctx, g, opts)
}

func publish(r *centrality.Result) Channel {
	n := len(r.TotalDepth)
	c := Channel{
		Choice:      r.Betweenness,
		Integration: make([]float64, n),
		MeanDepth:   make([]float64, n),
		TotalDepth:  r.TotalDepth,
		NodeCount:   r.NodeCount,
	}
	for i := range n {
		c.Integration[i] = Integration(r.NodeCount[i], r.TotalDepth[i])
		c.MeanDepth[i] = MeanDepth(r.NodeCount[i], r.TotalDepth[i])
	}
	return c
}

func summarize(res *Result) map[string]Summary {
	out := map[string]Summary{
		"metric_choice":       Summarize(res.Metric.Choice),
		"metric_integration":  Summarize(res.Metric.Integration),
		"metric_mean_depth":   Summarize(res.Metric.MeanDepth),
		"angular_choice":      Summarize(res.Angular.Choice),
		"angular_integration": Summarize(res.Angular.Integration),
		"angular_mean_depth":  Summarize(res.Angular.MeanDepth),
		"nach":                Summarize(res.NACH),
		"nain":                Summarize(res.NAIN),
	}
	if res.Custom != nil {
		out["custom_choice"] = Summarize(res.Custom.Choice)
		out["custom_integration"] = Summarize(res.Custom.Integration)
		out["custom_mean_depth"] = Summarize(res.Custom.MeanDepth)
	}
	return out
}

// sourcesOf maps atom indices to the distinct input polylines they came
// from, in first-seen order.
func sourcesOf(atoms []int, sources []int) []int {
	out := make([]int, 0, len(atoms))
	seen := make(map[int]bool, len(atoms))
	for _, a := range atoms {
		src := sources[a]
		if !seen[src] {
			seen[src] = true
			out = append(out, src)
		}
	}
	return out
}

func pick[T any](items []T, keep []uint32) []T {
	out := make([]T, len(keep))
	for i, k := range keep {
		out[i] = items[k]
	}
	return out
}
