package rttiscanner

import (
	"io"
	"slices"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/pkg/errors"
)

// Hierarchy is the inheritance graph of dumped classes. Edges point from a
// class to each of its base classes, keyed by decorated type name.
type Hierarchy struct {
	g graph.Graph[string, string]
}

// NewHierarchy builds the graph from dump results. Base classes without an
// entry of their own still become vertices.
func NewHierarchy(infos []RTTIInfo) (*Hierarchy, error) {
	g := graph.New(graph.StringHash, graph.Directed())

	addVertex := func(name string) error {
		err := g.AddVertex(name, graph.VertexAttribute("label", Undecorate(name)))
		if err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			return errors.Wrapf(err, "failed to add class %s", name)
		}
		return nil
	}

	for _, info := range infos {
		if err := addVertex(info.TypeName); err != nil {
			return nil, err
		}
		for _, base := range info.BaseClasses {
			if base == info.TypeName {
				continue
			}
			if err := addVertex(base); err != nil {
				return nil, err
			}
			if err := g.AddEdge(info.TypeName, base); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return nil, errors.Wrapf(err, "failed to add edge %s -> %s", info.TypeName, base)
			}
		}
	}

	return &Hierarchy{g: g}, nil
}

// Classes returns every class name in the graph, sorted
func (h *Hierarchy) Classes() ([]string, error) {
	adj, err := h.g.AdjacencyMap()
	if err != nil {
		return nil, err
	}
	return sortedKeys(adj), nil
}

// Bases returns the base classes of name, sorted
func (h *Hierarchy) Bases(name string) ([]string, error) {
	adj, err := h.g.AdjacencyMap()
	if err != nil {
		return nil, err
	}
	edges, ok := adj[name]
	if !ok {
		return nil, errors.Wrapf(graph.ErrVertexNotFound, "%s", name)
	}
	return sortedKeys(edges), nil
}

// Derived returns the classes that list name as a base, sorted
func (h *Hierarchy) Derived(name string) ([]string, error) {
	pred, err := h.g.PredecessorMap()
	if err != nil {
		return nil, err
	}
	edges, ok := pred[name]
	if !ok {
		return nil, errors.Wrapf(graph.ErrVertexNotFound, "%s", name)
	}
	return sortedKeys(edges), nil
}

// Roots returns the classes that have no base class, sorted
func (h *Hierarchy) Roots() ([]string, error) {
	adj, err := h.g.AdjacencyMap()
	if err != nil {
		return nil, err
	}
	var roots []string
	for name, edges := range adj {
		if len(edges) == 0 {
			roots = append(roots, name)
		}
	}
	slices.Sort(roots)
	return roots, nil
}

// WriteDOT renders the graph in Graphviz DOT format
func (h *Hierarchy) WriteDOT(w io.Writer) error {
	return draw.DOT(h.g, w, draw.GraphAttribute("rankdir", "BT"))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
