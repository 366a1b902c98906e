package graph

import (
	"strings"
	"testing"
)

func TestBuildSimpleGraph(t *testing.T) {
	// Triangle: 0 - 1 - 2 - 0
	b := NewBuilder(3)
	b.AddEdge(0, 1, 1, 0.5, 0, true)
	b.AddEdge(1, 2, 2, 0.5, 0, true)
	b.AddEdge(2, 0, 3, 0.5, 0, true)

	g := b.Freeze()

	if g.NumVertices != 3 {
		t.Fatalf("NumVertices = %d, want 3", g.NumVertices)
	}
	if g.NumEdges != 3 {
		t.Fatalf("NumEdges = %d, want 3", g.NumEdges)
	}

	// Every vertex of a triangle has degree 2.
	for v := uint32(0); v < g.NumVertices; v++ {
		if d := g.Degree(v); d != 2 {
			t.Errorf("vertex %d has degree %d, want 2", v, d)
		}
	}

	// Verify total weight.
	var total float32
	for _, w := range g.Weights(Metric) {
		total += w
	}
	if total != 6 {
		t.Errorf("total metric weight = %f, want 6", total)
	}

	if err := g.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestBuildKeepsJunctions(t *testing.T) {
	b := NewBuilder(3)
	b.AddEdgeAt(0, 1, 7, 1, 0, 0, true)
	b.AddEdgeAt(1, 2, 7, 1, 0, 0, true)
	b.AddEdge(0, 2, 1, 0, 0, true)
	g := b.Freeze()

	if got := g.Edge(1).Junction; got != 7 {
		t.Errorf("edge 1 junction = %d, want 7", got)
	}
	if !g.SameJunction(0, 1) {
		t.Error("edges 0 and 1 should share a junction")
	}
	if g.SameJunction(2, 2) {
		t.Error("an unknown junction should never match")
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	sub := FilterToComponent(g, []uint32{1, 2})
	if sub.NumEdges != 1 || sub.Junction[0] != 7 {
		t.Errorf("filtered junctions = %v, want [7]", sub.Junction)
	}
}

func TestBuildEmptyGraph(t *testing.T) {
	g := NewBuilder(0).Freeze()

	if g.NumVertices != 0 {
		t.Errorf("NumVertices = %d, want 0", g.NumVertices)
	}
	if g.NumEdges != 0 {
		t.Errorf("NumEdges = %d, want 0", g.NumEdges)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestBuildSkipsSelfLoopsAndParallelEdges(t *testing.T) {
	b := NewBuilder(2)

	if b.AddEdge(0, 0, 1, 1, 1, true) {
		t.Error("self loop was added")
	}
	if !b.AddEdge(0, 1, 1, 1, 1, true) {
		t.Error("first edge was not added")
	}
	if b.AddEdge(1, 0, 2, 2, 2, true) {
		t.Error("parallel edge was added with checkParallel")
	}
	if !b.AddEdge(1, 0, 2, 2, 2, false) {
		t.Error("parallel edge was rejected without checkParallel")
	}

	g := b.Freeze()
	if g.NumEdges != 2 {
		t.Fatalf("NumEdges = %d, want 2", g.NumEdges)
	}
	if got := g.Edge(0); got.Metric != 1 || got.V != 0 || got.U != 1 {
		t.Errorf("Edge(0) = %+v", got)
	}
}

func TestBuildCSRInvariants(t *testing.T) {
	// Star graph: center 0 with leaves 1, 2, 3; vertex 4 isolated.
	b := NewBuilder(5)
	b.AddEdge(0, 1, 100, 0, 0, true)
	b.AddEdge(2, 0, 200, 0, 0, true)
	b.AddEdge(0, 3, 300, 0, 0, true)

	g := b.Freeze()

	// CSR invariant: FirstOut is monotonically non-decreasing.
	for i := uint32(1); i <= g.NumVertices; i++ {
		if g.FirstOut[i] < g.FirstOut[i-1] {
			t.Errorf("FirstOut[%d]=%d < FirstOut[%d]=%d, not monotonic", i, g.FirstOut[i], i-1, g.FirstOut[i-1])
		}
	}

	// CSR invariant: FirstOut[NumVertices] == 2*NumEdges.
	if g.FirstOut[g.NumVertices] != 2*g.NumEdges {
		t.Errorf("FirstOut[%d]=%d != 2*NumEdges=%d", g.NumVertices, g.FirstOut[g.NumVertices], 2*g.NumEdges)
	}

	// Incident edges are listed in ascending id order.
	inc := g.Incident(0)
	if len(inc) != 3 || inc[0] != 0 || inc[1] != 1 || inc[2] != 2 {
		t.Errorf("Incident(0) = %v, want [0 1 2]", inc)
	}
	if g.Degree(4) != 0 {
		t.Errorf("Degree(4) = %d, want 0", g.Degree(4))
	}
	if g.Other(1, 0) != 2 || g.Other(1, 2) != 0 {
		t.Errorf("Other(1, ...) mismatch")
	}
	if !g.HasEdge(3, 0) || g.HasEdge(1, 2) {
		t.Error("HasEdge mismatch")
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateDetectsAsymmetry(t *testing.T) {
	b := NewBuilder(3)
	b.AddEdge(0, 1, 1, 1, 1, true)
	b.AddEdge(1, 2, 1, 1, 1, true)
	g := b.Freeze()

	// Point vertex 2's only slot at edge 0, which it is not an endpoint of.
	start, _ := g.EdgesFrom(2)
	g.AdjEdge[start] = 0

	err := g.Validate()
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if !strings.Contains(err.Error(), "vertex 2") {
		t.Errorf("error %q does not name vertex 2", err)
	}
}

func TestInvalidVertexPanics(t *testing.T) {
	g := NewBuilder(2).Freeze()

	tests := []struct {
		name string
		fn   func()
	}{
		{"Incident", func() { g.Incident(2) }},
		{"Degree", func() { g.Degree(7) }},
		{"AddEdge", func() { NewBuilder(2).AddEdge(0, 2, 1, 1, 1, false) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if r == nil {
					t.Fatal("expected panic")
				}
				if msg, ok := r.(string); !ok || !strings.Contains(msg, "graph:") {
					t.Errorf("panic value %v lacks a diagnostic", r)
				}
			}()
			tt.fn()
		})
	}
}

func TestParseChannel(t *testing.T) {
	for _, ch := range []Channel{Metric, Angular, Custom} {
		got, err := ParseChannel(ch.String())
		if err != nil || got != ch {
			t.Errorf("ParseChannel(%q) = %v, %v", ch.String(), got, err)
		}
	}
	if _, err := ParseChannel("topological"); err == nil {
		t.Error("expected error for unknown channel")
	}
}
