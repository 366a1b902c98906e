// Package osm extracts street centre lines from OpenStreetMap data and
// projects them into local metric polylines for analysis.
package osm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"

	"space_syntax/pkg/geo"
)

// ErrUnsupportedFormat is returned for inputs that are neither PBF nor XML.
var ErrUnsupportedFormat = errors.New("unsupported OSM format")

// Format is an OSM file encoding.
type Format uint8

const (
	FormatPBF Format = iota + 1
	FormatXML
)

// FormatFromPath guesses the encoding from a file name.
func FormatFromPath(path string) (Format, error) {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".pbf"):
		return FormatPBF, nil
	case strings.HasSuffix(name, ".osm"), strings.HasSuffix(name, ".xml"):
		return FormatXML, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// streetHighways lists highway tag values that form the street network
// people move through.
var streetHighways = map[string]bool{
	"motorway":       true,
	"motorway_link":  true,
	"trunk":          true,
	"trunk_link":     true,
	"primary":        true,
	"primary_link":   true,
	"secondary":      true,
	"secondary_link": true,
	"tertiary":       true,
	"tertiary_link":  true,
	"unclassified":   true,
	"residential":    true,
	"living_street":  true,
	"service":        true,
	"pedestrian":     true,
	"footway":        true,
	"cycleway":       true,
	"path":           true,
	"steps":          true,
	"track":          true,
}

// isStreet reports whether the way belongs to the analysed network. A
// non-empty allow set replaces the built-in highway list.
func isStreet(tags osm.Tags, allow map[string]bool) bool {
	hw := tags.Find("highway")
	if len(allow) > 0 {
		if !allow[hw] {
			return false
		}
	} else if !streetHighways[hw] {
		return false
	}

	// Skip area highways (pedestrian plazas).
	if tags.Find("area") == "yes" {
		return false
	}
	access := tags.Find("access")
	return access != "no" && access != "private"
}

// layerOf returns the vertical layer of a way. Untagged bridges sit on
// layer 1 and untagged tunnels on layer -1.
func layerOf(tags osm.Tags) int {
	if v := tags.Find("layer"); v != "" {
		if i := strings.IndexAny(v, ";,"); i >= 0 {
			v = v[:i]
		}
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	if b := tags.Find("bridge"); b != "" && b != "no" {
		return 1
	}
	if t := tags.Find("tunnel"); t != "" && t != "no" {
		return -1
	}
	return 0
}

// wayInfo holds parsed way data collected during Pass 1.
type wayInfo struct {
	ID      osm.WayID
	Name    string
	NodeIDs []osm.NodeID
}

// groundward returns whichever of two layers is nearer the ground, the lower
// one on a tie.
func groundward(a, b int) int {
	aa, ab := a, b
	if aa < 0 {
		aa = -aa
	}
	if ab < 0 {
		ab = -ab
	}
	if ab < aa || (ab == aa && b < a) {
		return b
	}
	return a
}

// BBox defines a geographic bounding box for filtering.
// If non-zero, only nodes inside the box are kept.
type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// IsZero returns true if the bbox is unset.
func (b BBox) IsZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLng == 0 && b.MaxLng == 0
}

// Contains returns true if the point is inside the bounding box.
func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// Bound returns the box as an orb bound (X is longitude).
func (b BBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinLng, b.MinLat}, Max: orb.Point{b.MaxLng, b.MaxLat}}
}

// ParseOptions configures Load.
type ParseOptions struct {
	Format Format // required
	BBox   BBox   // if non-zero, drop nodes outside this box
	// Highways overrides the default set of highway values kept.
	Highways []string
	// LayerHeight is the elevation in metres given to each OSM layer step.
	LayerHeight float64
	// Origin is the projection origin; nil centres it on the data.
	Origin *orb.Point
	Logger *slog.Logger // Optional, uses slog.Default() if nil
}

// Stats counts what Load kept and dropped.
type Stats struct {
	Ways           int
	Nodes          int
	MissingNodes   int // referenced nodes without coordinates
	OutsideBBox    int
	Polylines      int
	ElevatedPoints int
}

// Streets is the output of Load. Polylines, WayIDs and Names are aligned.
type Streets struct {
	Polylines  []geo.Polyline
	WayIDs     []osm.WayID
	Names      []string
	Projection *geo.Projection
	Bound      orb.Bound // lon/lat extent of the kept nodes
	Stats      Stats
}

type latLon struct{ lat, lon float64 }

func newScanner(ctx context.Context, r io.Reader, format Format, skipNodes, skipWays bool) (osm.Scanner, error) {
	switch format {
	case FormatPBF:
		s := osmpbf.New(ctx, r, 1)
		s.SkipNodes = skipNodes
		s.SkipWays = skipWays
		s.SkipRelations = true
		return s, nil
	case FormatXML:
		return osmxml.New(ctx, r), nil
	default:
		return nil, fmt.Errorf("%w: format %d", ErrUnsupportedFormat, format)
	}
}

// Load reads an OSM extract and returns its streets as projected
// polylines, one per maximal run of a way's nodes with known coordinates
// inside the bounding box.
//
// Every node is raised to its layer times LayerHeight, so bridges do not
// cross the streets beneath them. A node shared by ways on different layers
// takes the layer nearest the ground: a bridge's end nodes stay on the
// streets it connects and only its span is raised.
//
// The reader is consumed twice (seeks back to start for the second pass),
// so it must implement io.ReadSeeker.
func Load(ctx context.Context, rs io.ReadSeeker, opts ParseOptions) (*Streets, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var allow map[string]bool
	if len(opts.Highways) > 0 {
		allow = make(map[string]bool, len(opts.Highways))
		for _, h := range opts.Highways {
			allow[h] = true
		}
	}

	// Pass 1: Scan ways for way info and the layer of every referenced node.
	referenced := make(map[osm.NodeID]int)
	var ways []wayInfo

	scanner, err := newScanner(ctx, rs, opts.Format, true, false)
	if err != nil {
		return nil, err
	}
	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok || len(w.Nodes) < 2 || !isStreet(w.Tags, allow) {
			continue
		}
		layer := layerOf(w.Tags)
		info := wayInfo{
			ID:      w.ID,
			Name:    w.Tags.Find("name"),
			NodeIDs: make([]osm.NodeID, len(w.Nodes)),
		}
		for i, wn := range w.Nodes {
			info.NodeIDs[i] = wn.ID
			if cur, ok := referenced[wn.ID]; ok {
				referenced[wn.ID] = groundward(cur, layer)
			} else {
				referenced[wn.ID] = layer
			}
		}
		ways = append(ways, info)
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 1 (ways): %w", err)
	}
	scanner.Close()

	logger.Debug("osm pass 1 complete", "ways", len(ways), "referenced_nodes", len(referenced))

	// Pass 2: Scan nodes to collect coordinates for referenced nodes only.
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek for pass 2: %w", err)
	}

	streets := &Streets{}
	coords := make(map[osm.NodeID]latLon, len(referenced))
	useBBox := !opts.BBox.IsZero()

	scanner, err = newScanner(ctx, rs, opts.Format, false, true)
	if err != nil {
		return nil, err
	}
	first := true
	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referenced[n.ID]; !needed {
			continue
		}
		if useBBox && !opts.BBox.Contains(n.Lat, n.Lon) {
			streets.Stats.OutsideBBox++
			continue
		}
		coords[n.ID] = latLon{n.Lat, n.Lon}
		p := orb.Point{n.Lon, n.Lat}
		if first {
			streets.Bound = orb.Bound{Min: p, Max: p}
			first = false
		} else {
			streets.Bound = streets.Bound.Extend(p)
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	scanner.Close()

	streets.Stats.Ways = len(ways)
	streets.Stats.Nodes = len(coords)
	logger.Debug("osm pass 2 complete", "nodes", len(coords), "outside_bbox", streets.Stats.OutsideBBox)

	origin := streets.Bound.Center()
	if opts.Origin != nil {
		origin = *opts.Origin
	}
	streets.Projection = geo.NewProjection(origin.Lat(), origin.Lon())

	// Build polylines from ways, breaking at nodes without coordinates.
	for _, w := range ways {
		var run geo.Polyline
		flush := func() {
			if len(run) >= 2 {
				streets.Polylines = append(streets.Polylines, run)
				streets.WayIDs = append(streets.WayIDs, w.ID)
				streets.Names = append(streets.Names, w.Name)
				for _, p := range run {
					if p.Z != 0 {
						streets.Stats.ElevatedPoints++
					}
				}
			}
			run = nil
		}
		for _, id := range w.NodeIDs {
			c, ok := coords[id]
			if !ok {
				if !useBBox {
					streets.Stats.MissingNodes++
				}
				flush()
				continue
			}
			z := float64(referenced[id]) * opts.LayerHeight
			run = append(run, streets.Projection.Forward(c.lat, c.lon, z))
		}
		flush()
	}
	streets.Stats.Polylines = len(streets.Polylines)

	if streets.Stats.MissingNodes > 0 {
		logger.Warn("ways reference nodes without coordinates", "missing", streets.Stats.MissingNodes)
	}
	logger.Info("loaded streets",
		"ways", streets.Stats.Ways,
		"polylines", streets.Stats.Polylines,
		"origin_lat", origin.Lat(),
		"origin_lon", origin.Lon(),
	)
	return streets, nil
}
