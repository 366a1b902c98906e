// Package export writes analysis results as GeoJSON.
package export

import (
	"fmt"
	"io"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"space_syntax/pkg/geo"
	"space_syntax/pkg/syntax"
)

// FeatureCollection returns one LineString feature per analysed road with
// its indices as properties. With a projection the coordinates are mapped
// back to longitude/latitude; without one they stay in local metres.
func FeatureCollection(res *syntax.Result, proj *geo.Projection) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, road := range res.Roads {
		f := geojson.NewFeature(lineString(road, proj))
		f.ID = i
		p := f.Properties
		p["length"] = road.Length()
		p["elevation"] = meanZ(road)
		p["members"] = res.Members[i]

		addChannel(p, "metric", res.Metric, i)
		addChannel(p, "angular", res.Angular, i)
		if res.Custom != nil {
			addChannel(p, "custom", *res.Custom, i)
		}
		if res.Scores != nil {
			p["score"] = res.Scores[i]
		}
		p["nach"] = finite(res.NACH[i])
		p["nain"] = finite(res.NAIN[i])

		fc.Append(f)
	}
	fc.ExtraMembers = geojson.Properties{
		"radius":   radiusValue(res.Radius),
		"policy":   res.Policy.String(),
		"complete": res.Complete,
		"summary":  res.Summary,
	}
	return fc
}

// Write encodes the result as a GeoJSON feature collection.
func Write(w io.Writer, res *syntax.Result, proj *geo.Projection) error {
	data, err := FeatureCollection(res, proj).MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write geojson: %w", err)
	}
	return nil
}

func lineString(road geo.Polyline, proj *geo.Projection) orb.LineString {
	ls := make(orb.LineString, len(road))
	for i, pt := range road {
		if proj == nil {
			ls[i] = orb.Point{pt.X, pt.Y}
			continue
		}
		lat, lon := proj.Inverse(pt)
		ls[i] = orb.Point{lon, lat}
	}
	return ls
}

func addChannel(p geojson.Properties, prefix string, c syntax.Channel, i int) {
	p[prefix+"_choice"] = c.Choice[i]
	p[prefix+"_integration"] = c.Integration[i]
	p[prefix+"_mean_depth"] = c.MeanDepth[i]
	p[prefix+"_total_depth"] = c.TotalDepth[i]
	p[prefix+"_node_count"] = c.NodeCount[i]
}

func meanZ(road geo.Polyline) float64 {
	var z float64
	for _, pt := range road {
		z += pt.Z
	}
	return z / float64(len(road))
}

// finite maps NaN and infinities, which JSON cannot carry, to nil.
func finite(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func radiusValue(r float64) float64 {
	if syntax.IsGlobal(r) {
		return -1
	}
	return r
}
