package syntax

import "math"

// Integration returns nodeCount² / totalDepth, or 0 when totalDepth is 0.
func Integration(nodeCount int, totalDepth float64) float64 {
	if totalDepth == 0 {
		return 0
	}
	n := float64(nodeCount)
	return n * n / totalDepth
}

// MeanDepth returns totalDepth / (nodeCount - 1). A vertex with no depth
// keeps the raw value 0, which covers isolated vertices. The divisor is
// clamped to 1, so nodeCount 1 with a positive depth yields totalDepth
// instead of +Inf.
func MeanDepth(nodeCount int, totalDepth float64) float64 {
	if totalDepth == 0 {
		return 0
	}
	return totalDepth / float64(max(nodeCount-1, 1))
}

// NACH returns normalised angular choice, ln(choice+1) / ln(totalDepth+3).
func NACH(choice, angularTotalDepth float64) float64 {
	return math.Log(choice+1) / math.Log(angularTotalDepth+3)
}

// NAIN returns normalised angular integration, (nodeCount+2)^1.2 / totalDepth,
// or 0 when totalDepth is 0.
func NAIN(nodeCount int, angularTotalDepth float64) float64 {
	if angularTotalDepth == 0 {
		return 0
	}
	return math.Pow(float64(nodeCount+2), 1.2) / angularTotalDepth
}

// NormalizeRadius maps caller radius conventions onto the engine's: -1, any
// other non-positive value and NaN mean "no radius" and become +Inf.
func NormalizeRadius(r float64) float64 {
	if math.IsNaN(r) || r <= 0 {
		return math.Inf(1)
	}
	return r
}

// IsGlobal reports whether a normalised radius leaves the analysis unbounded.
func IsGlobal(r float64) bool { return math.IsInf(r, 1) }
