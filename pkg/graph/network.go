package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"space_syntax/pkg/geo"
)

// ErrScoresMismatch is returned when custom scores are not aligned with the
// roads they describe.
var ErrScoresMismatch = errors.New("custom scores do not match road count")

// ErrInvalidScores is returned for a negative or non-finite custom score.
var ErrInvalidScores = errors.New("custom scores must be finite and non-negative")

// checkScores returns an error naming the first unusable score.
func checkScores(scores []float64) error {
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
			return fmt.Errorf("%w: score %d is %v", ErrInvalidScores, i, s)
		}
	}
	return nil
}

// weightDecimals is the rounding applied to every edge weight.
const weightDecimals = 6

// BuildOptions configures BuildNetwork.
type BuildOptions struct {
	// Merge concatenates chains of roads meeting at degree-two endpoints.
	Merge bool
	// Scores holds one custom score per input road. Optional.
	Scores []float64
	// CheckParallel drops a second edge between two already connected roads.
	CheckParallel bool
	Logger        *slog.Logger // Optional, uses slog.Default() if nil
}

// Network is a set of roads and the graph connecting them. Vertex i of Graph
// is Roads[i].
type Network struct {
	Roads []geo.Polyline
	Graph *Graph
	// Scores holds the custom score of each road; nil when none were given.
	// A merged road carries the length-weighted mean of its members.
	Scores []float64
	// Members lists, for every road, the input roads it was built from.
	Members [][]int
}

// BuildNetwork turns atomic roads (typically the segments produced by the
// splitter) into a road graph. Roads with fewer than two points are skipped.
//
// Every pair of roads sharing an endpoint is joined by one edge with
//
//	Metric  = mean of the two road lengths
//	Angular = turn angle at the junction scaled to [0,2] (0 straight on, 1 a right angle)
//	Custom  = mean of the two road scores
//
// all rounded to six decimals.
func BuildNetwork(roads []geo.Polyline, opts BuildOptions) (*Network, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Scores != nil && len(opts.Scores) != len(roads) {
		return nil, fmt.Errorf("%w: %d scores for %d roads", ErrScoresMismatch, len(opts.Scores), len(roads))
	}
	if err := checkScores(opts.Scores); err != nil {
		return nil, err
	}

	valid := make([]geo.Polyline, 0, len(roads))
	validIdx := make([]int, 0, len(roads))
	for i, r := range roads {
		if r.Valid() {
			valid = append(valid, r)
			validIdx = append(validIdx, i)
		}
	}

	net := &Network{}
	if opts.Merge {
		var members [][]int
		net.Roads, members = mergeChains(valid)
		net.Members = make([][]int, len(members))
		for i, m := range members {
			net.Members[i] = make([]int, len(m))
			for k, local := range m {
				net.Members[i][k] = validIdx[local]
			}
		}
	} else {
		net.Roads = make([]geo.Polyline, len(valid))
		net.Members = make([][]int, len(valid))
		for i, r := range valid {
			net.Roads[i] = r.Clone()
			net.Members[i] = []int{validIdx[i]}
		}
	}

	if opts.Scores != nil {
		net.Scores = make([]float64, len(net.Roads))
		for i, m := range net.Members {
			net.Scores[i] = weightedScore(roads, opts.Scores, m)
		}
	}

	net.Graph = connectRoads(net.Roads, net.Scores, opts.CheckParallel)

	logger.Debug("network built",
		"input", len(roads),
		"roads", len(net.Roads),
		"edges", net.Graph.NumEdges,
		"merge", opts.Merge,
	)
	return net, nil
}

// weightedScore returns the length-weighted mean score of the given roads.
func weightedScore(roads []geo.Polyline, scores []float64, members []int) float64 {
	if len(members) == 1 {
		return scores[members[0]]
	}
	var sum, total float64
	for _, m := range members {
		l := roads[m].Length()
		sum += scores[m] * l
		total += l
	}
	if total == 0 {
		return scores[members[0]]
	}
	return sum / total
}

// connectRoads adds one edge per pair of roads meeting at a junction.
// Junctions are numbered in lexicographic point order so edge and junction
// ids are stable.
func connectRoads(roads []geo.Polyline, scores []float64, checkParallel bool) *Graph {
	b := NewBuilder(len(roads))
	ends := endpointIndex(roads)

	junctions := make([]geo.Point3, 0, len(ends))
	for p, ids := range ends {
		if len(ids) >= 2 {
			junctions = append(junctions, p)
		}
	}
	sort.Slice(junctions, func(i, j int) bool { return junctions[i].Compare(junctions[j]) < 0 })

	lengths := make([]float64, len(roads))
	for i, r := range roads {
		lengths[i] = r.Length()
	}

	for j, p := range junctions {
		ids := uniqueInts(ends[p])
		for a := 0; a < len(ids); a++ {
			for c := a + 1; c < len(ids); c++ {
				v, u := ids[a], ids[c]
				metric := (lengths[v] + lengths[u]) / 2
				angular := turnAngle(roads[v], roads[u], p)
				var custom float64
				if scores != nil {
					custom = (scores[v] + scores[u]) / 2
				}
				b.AddEdgeAt(uint32(v), uint32(u), uint32(j),
					float32(geo.RoundTo(metric, weightDecimals)),
					float32(geo.RoundTo(angular, weightDecimals)),
					float32(geo.RoundTo(custom, weightDecimals)),
					checkParallel,
				)
			}
		}
	}
	return b.Freeze()
}

// turnAngle returns the deflection between arriving at p along v and leaving
// p along u, scaled so that a right angle is 1.
func turnAngle(v, u geo.Polyline, p geo.Point3) float64 {
	nv, _ := v.NeighborOf(p)
	nu, _ := u.NeighborOf(p)
	in := p.Sub(nv)
	out := nu.Sub(p)
	return 2 / math.Pi * geo.Angle(in, out)
}

func uniqueInts(ids []int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		dup := false
		for _, o := range out {
			if o == id {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, id)
		}
	}
	return out
}
