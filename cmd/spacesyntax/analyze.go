package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"space_syntax/pkg/config"
	"space_syntax/pkg/export"
	"space_syntax/pkg/geo"
	"space_syntax/pkg/osm"
	"space_syntax/pkg/syntax"
)

var (
	analyzeOutput      string
	analyzeFormat      string
	analyzeTolerance   float64
	analyzeMerge       bool
	analyzeRadius      float64
	analyzePolicy      string
	analyzeSnap        bool
	analyzeLargest     bool
	analyzeWorkers     int
	analyzeBBox        string
	analyzeSingapore   bool
	analyzeScoreProp   string
	analyzeTimeout     time.Duration
	analyzeLayerHeight float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <input>",
	Short: "Analyze a street network file",
	Long: `Analyze reads street centre lines and writes the indices of every road.

Inputs:
  *.osm.pbf, *.osm, *.xml   OpenStreetMap extracts (highways only)
  *.geojson, *.json         LineString / MultiLineString features in lon/lat

Examples:
  spacesyntax analyze city.osm.pbf --bbox 1.27,103.83,1.31,103.87 -o city.geojson
  spacesyntax analyze district.geojson --radius 800 --merge --format summary
  spacesyntax analyze plan.geojson --score-property footfall`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	f := analyzeCmd.Flags()
	f.StringVarP(&analyzeOutput, "output", "o", "", "Output file (default stdout)")
	f.StringVar(&analyzeFormat, "format", "geojson", "Output format: geojson or summary")
	f.Float64Var(&analyzeTolerance, "tolerance", 1e-6, "Geometric tolerance in metres")
	f.BoolVar(&analyzeMerge, "merge", false, "Merge chains of roads through degree-two junctions")
	f.Float64Var(&analyzeRadius, "radius", -1, "Metric radius in metres (-1 for global)")
	f.StringVar(&analyzePolicy, "radius-policy", "metric-bounded", "Radius for angular and custom passes: metric-bounded or independent")
	f.BoolVar(&analyzeSnap, "snap", false, "Weld polyline ends closer than the tolerance")
	f.BoolVar(&analyzeLargest, "largest-component", false, "Keep only the largest connected component")
	f.IntVar(&analyzeWorkers, "workers", 0, "Centrality workers (0 = number of CPUs)")
	f.StringVar(&analyzeBBox, "bbox", "", "OSM bounding box filter: minLat,minLng,maxLat,maxLng")
	f.BoolVar(&analyzeSingapore, "singapore", false, "Shortcut for --bbox 1.15,103.6,1.48,104.1")
	f.StringVar(&analyzeScoreProp, "score-property", "", "GeoJSON property holding a custom score per feature")
	f.DurationVar(&analyzeTimeout, "timeout", 0, "Stop after this long and write partial results (0 = no limit)")
	f.Float64Var(&analyzeLayerHeight, "layer-height", 5, "Elevation in metres per OSM layer step")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyAnalyzeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	req, err := cfg.Analysis.Request()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if analyzeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, analyzeTimeout)
		defer cancel()
	}

	start := time.Now()

	// Step 1: Load polylines.
	input := args[0]
	var proj *geo.Projection
	switch ext := strings.ToLower(filepath.Ext(input)); ext {
	case ".geojson", ".json":
		data, err := os.ReadFile(input)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		req.Polylines, req.Scores, proj, err = readGeoJSON(data, analyzeScoreProp)
		if err != nil {
			return err
		}
	default:
		if analyzeScoreProp != "" {
			return fmt.Errorf("--score-property needs GeoJSON input")
		}
		req.Polylines, proj, err = readOSM(ctx, input, cfg.OSM)
		if err != nil {
			return err
		}
	}
	log.Printf("Loaded %d polylines in %s", len(req.Polylines), time.Since(start).Round(time.Millisecond))

	// Step 2: Analyze.
	res, err := syntax.NewEngine(nil).Analyze(ctx, req)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	log.Printf("Analyzed %d roads, %d edges in %s", res.Stats.Roads, res.Stats.Edges, res.Stats.Elapsed.Round(time.Millisecond))
	if !res.Complete {
		log.Printf("Warning: analysis interrupted, results are partial")
	}

	// Step 3: Write output.
	var w io.Writer = cmd.OutOrStdout()
	if analyzeOutput != "" {
		f, err := os.Create(analyzeOutput)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	switch analyzeFormat {
	case "geojson":
		err = export.Write(w, res, proj)
	case "summary":
		err = writeSummary(w, res)
	default:
		err = fmt.Errorf("unknown format %q", analyzeFormat)
	}
	if err != nil {
		return err
	}
	if analyzeOutput != "" {
		log.Printf("Wrote %s", analyzeOutput)
	}
	return nil
}

// applyAnalyzeFlags lets explicitly set flags override the configuration.
func applyAnalyzeFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	a := &cfg.Analysis
	if f.Changed("tolerance") {
		a.Tolerance = analyzeTolerance
	}
	if f.Changed("merge") {
		a.Merge = analyzeMerge
	}
	if f.Changed("radius") {
		a.Radius = analyzeRadius
	}
	if f.Changed("radius-policy") {
		a.RadiusPolicy = analyzePolicy
	}
	if f.Changed("snap") {
		a.SnapEndpoints = analyzeSnap
	}
	if f.Changed("largest-component") {
		a.LargestComponentOnly = analyzeLargest
	}
	if f.Changed("workers") {
		a.Workers = analyzeWorkers
	}
	if f.Changed("layer-height") {
		cfg.OSM.LayerHeight = analyzeLayerHeight
	}
}

func readOSM(ctx context.Context, path string, oc config.OSMConfig) ([]geo.Polyline, *geo.Projection, error) {
	format, err := osm.FormatFromPath(path)
	if err != nil {
		return nil, nil, err
	}
	opts := osm.ParseOptions{
		Format:      format,
		Highways:    oc.Highways,
		LayerHeight: oc.LayerHeight,
	}
	if analyzeSingapore {
		opts.BBox = osm.BBox{MinLat: 1.15, MaxLat: 1.48, MinLng: 103.6, MaxLng: 104.1}
		log.Println("Using Singapore bounding box filter: lat [1.15, 1.48], lng [103.6, 104.1]")
	} else if analyzeBBox != "" {
		var minLat, minLng, maxLat, maxLng float64
		if _, err := fmt.Sscanf(analyzeBBox, "%f,%f,%f,%f", &minLat, &minLng, &maxLat, &maxLng); err != nil {
			return nil, nil, fmt.Errorf("invalid bbox format (expected minLat,minLng,maxLat,maxLng): %w", err)
		}
		opts.BBox = osm.BBox{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}
		log.Printf("Using bounding box filter: lat [%.4f, %.4f], lng [%.4f, %.4f]", minLat, maxLat, minLng, maxLng)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	streets, err := osm.Load(ctx, f, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("load osm: %w", err)
	}
	return streets.Polylines, streets.Projection, nil
}

// readGeoJSON returns the line features of a lon/lat feature collection
// projected around its centre. Each line of a MultiLineString becomes its
// own polyline sharing the feature's score.
func readGeoJSON(data []byte, scoreProp string) ([]geo.Polyline, []float64, *geo.Projection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse geojson: %w", err)
	}

	type line struct {
		ls    orb.LineString
		z     float64
		score float64
	}
	var lines []line
	var bound orb.Bound
	for i, f := range fc.Features {
		score := math.NaN()
		if scoreProp != "" {
			score = f.Properties.MustFloat64(scoreProp, math.NaN())
			if math.IsNaN(score) {
				return nil, nil, nil, fmt.Errorf("feature %d has no numeric %q property", i, scoreProp)
			}
		}
		z := f.Properties.MustFloat64("elevation", 0)

		var parts []orb.LineString
		switch g := f.Geometry.(type) {
		case orb.LineString:
			parts = []orb.LineString{g}
		case orb.MultiLineString:
			parts = g
		default:
			continue
		}
		for _, ls := range parts {
			if len(ls) < 2 {
				continue
			}
			if len(lines) == 0 {
				bound = ls.Bound()
			} else {
				bound = bound.Union(ls.Bound())
			}
			lines = append(lines, line{ls: ls, z: z, score: score})
		}
	}
	if len(lines) == 0 {
		return nil, nil, nil, fmt.Errorf("no line features in input")
	}

	center := bound.Center()
	proj := geo.NewProjection(center.Lat(), center.Lon())
	polylines := make([]geo.Polyline, len(lines))
	var scores []float64
	if scoreProp != "" {
		scores = make([]float64, len(lines))
	}
	for i, l := range lines {
		pl := make(geo.Polyline, len(l.ls))
		for k, p := range l.ls {
			pl[k] = proj.Forward(p.Lat(), p.Lon(), l.z)
		}
		polylines[i] = pl
		if scores != nil {
			scores[i] = l.score
		}
	}
	return polylines, scores, proj, nil
}

func writeSummary(w io.Writer, res *syntax.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "roads\t%d\n", res.Stats.Roads)
	fmt.Fprintf(tw, "edges\t%d\n", res.Stats.Edges)
	fmt.Fprintf(tw, "components\t%d\n", res.Stats.Components)
	if syntax.IsGlobal(res.Radius) {
		fmt.Fprintf(tw, "radius\tglobal\n")
	} else {
		fmt.Fprintf(tw, "radius\t%g (%s)\n", res.Radius, res.Policy)
	}
	fmt.Fprintf(tw, "complete\t%t\n\n", res.Complete)

	fmt.Fprintf(tw, "index\tmean\tstd dev\tmin\tmax\n")
	keys := make([]string, 0, len(res.Summary))
	for k := range res.Summary {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		s := res.Summary[k]
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%.4f\n", k, s.Mean, s.StdDev, s.Min, s.Max)
	}
	return tw.Flush()
}
