package export

import (
	"bytes"
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"space_syntax/pkg/geo"
	"space_syntax/pkg/syntax"
)

func crossing(t *testing.T, scores []float64) *syntax.Result {
	t.Helper()
	res, err := syntax.Analyze(context.Background(), syntax.Request{
		Polylines: []geo.Polyline{
			{{X: 0, Y: 0}, {X: 100, Y: 0}},
			{{X: 50, Y: -50, Z: 0}, {X: 50, Y: 50, Z: 0}},
		},
		Tolerance: 1e-6,
		Radius:    -1,
		Scores:    scores,
	})
	require.NoError(t, err)
	return res
}

func TestFeatureCollectionLocal(t *testing.T) {
	res := crossing(t, nil)
	fc := FeatureCollection(res, nil)

	require.Len(t, fc.Features, 4)
	for i, f := range fc.Features {
		ls, ok := f.Geometry.(orb.LineString)
		require.True(t, ok, "feature %d geometry is %T", i, f.Geometry)
		require.Len(t, ls, 2)
		assert.Contains(t, ls, orb.Point{50, 0})

		assert.Equal(t, i, f.ID)
		assert.InDelta(t, 50.0, f.Properties["length"], 1e-9)
		assert.Equal(t, 3, f.Properties["metric_node_count"])
		assert.InDelta(t, res.Metric.Integration[i], f.Properties["metric_integration"], 1e-12)
		assert.Contains(t, f.Properties, "nach")
		assert.NotContains(t, f.Properties, "custom_choice")
		assert.NotContains(t, f.Properties, "score")
	}
	assert.Equal(t, -1.0, fc.ExtraMembers["radius"])
	assert.Equal(t, true, fc.ExtraMembers["complete"])
}

func TestFeatureCollectionProjected(t *testing.T) {
	res := crossing(t, []float64{1, 2})
	proj := geo.NewProjection(1.3, 103.8)
	fc := FeatureCollection(res, proj)

	require.Len(t, fc.Features, 4)
	for i, f := range fc.Features {
		ls := f.Geometry.(orb.LineString)
		for k, p := range ls {
			back := proj.Forward(p.Lat(), p.Lon(), 0)
			want := res.Roads[i][k]
			assert.InDelta(t, want.X, back.X, 1e-6)
			assert.InDelta(t, want.Y, back.Y, 1e-6)
		}
		assert.Contains(t, f.Properties, "custom_choice")
		assert.Equal(t, res.Scores[i], f.Properties["score"])
	}
}

func TestWrite(t *testing.T) {
	res := crossing(t, nil)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, res, geo.NewProjection(1.3, 103.8)))

	fc, err := geojson.UnmarshalFeatureCollection(buf.Bytes())
	require.NoError(t, err)
	assert.Len(t, fc.Features, 4)
	assert.Equal(t, "metric-bounded", fc.ExtraMembers["policy"])
	for _, f := range fc.Features {
		assert.Equal(t, 3.0, f.Properties.MustFloat64("angular_node_count"))
	}
}
