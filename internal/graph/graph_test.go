package graph

import (
	"reflect"
	"testing"

	"github.com/leapstack-labs/expsql/pkg/core"
)

func TestGraph_AddEdge(t *testing.T) {
	g := New()
	g.AddEdge("a", "c")
	g.AddEdge("a", "b")
	g.AddEdge("a", "b") // duplicate

	if !g.HasNode("a") || !g.HasNode("b") || !g.HasNode("c") {
		t.Error("AddEdge should create missing nodes")
	}
	got := g.Neighbors("a")
	want := []string{"b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected sorted deduped neighbors %v, got %v", want, got)
	}
}

func TestGraph_HasCycle(t *testing.T) {
	tests := []struct {
		name      string
		edges     [][2]string
		wantCycle bool
		wantPath  []string
	}{
		{
			name:  "acyclic chain",
			edges: [][2]string{{"a", "b"}, {"b", "c"}},
		},
		{
			name:  "diamond is acyclic",
			edges: [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}},
		},
		{
			name:      "self loop",
			edges:     [][2]string{{"a", "a"}},
			wantCycle: true,
			wantPath:  []string{"a", "a"},
		},
		{
			name:      "two node cycle",
			edges:     [][2]string{{"a", "b"}, {"b", "a"}},
			wantCycle: true,
			wantPath:  []string{"a", "b", "a"},
		},
		{
			name:      "cycle behind a chain",
			edges:     [][2]string{{"a", "b"}, {"b", "c"}, {"c", "b"}},
			wantCycle: true,
			wantPath:  []string{"b", "c", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			for _, e := range tt.edges {
				g.AddEdge(e[0], e[1])
			}
			cyclic, path := g.HasCycle()
			if cyclic != tt.wantCycle {
				t.Fatalf("HasCycle = %v, want %v", cyclic, tt.wantCycle)
			}
			if tt.wantCycle && !reflect.DeepEqual(path, tt.wantPath) {
				t.Errorf("cycle path = %v, want %v", path, tt.wantPath)
			}
		})
	}
}

func TestFromConfiguration_SkipsUnknownTargets(t *testing.T) {
	cfg := &core.Configuration{
		DataSources: map[string]core.DataSource{
			"a": {Slug: "a", Joins: map[string]core.Join{"b": {}, "ghost": {}}},
			"b": {Slug: "b"},
		},
	}

	g := FromConfiguration(cfg)
	if g.HasNode("ghost") {
		t.Error("unknown join target must not become a node")
	}
	if got := g.Neighbors("a"); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("expected neighbors [b], got %v", got)
	}
	if cyclic, _ := g.HasCycle(); cyclic {
		t.Error("expected no cycle")
	}
}
