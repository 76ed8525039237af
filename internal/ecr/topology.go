package ecr

import (
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidTopology is returned by NewTopology when the supplied nodes
// or links violate the graph's structural invariants.
type ErrInvalidTopology struct {
	msg string
}

func (e ErrInvalidTopology) Error() string {
	return fmt.Sprintf("invalid topology: %s", e.msg)
}

// Topology owns every Node in the simulation and is the single source
// of truth for adjacency. Nodes never hold references to each other —
// every lookup goes through the Topology by name.
type Topology struct {
	nodes map[string]*Node
	names []string // sorted, cached for deterministic iteration
}

// NewTopology validates and wraps a set of already-linked nodes: every
// link must be mutual, and no name may contain the reserved "_"
// separator used by route/link keys.
func NewTopology(nodes map[string]*Node) (*Topology, error) {
	for name := range nodes {
		if strings.Contains(name, "_") {
			return nil, ErrInvalidTopology{msg: fmt.Sprintf("node name %q must not contain '_'", name)}
		}
	}
	for name, n := range nodes {
		for _, neighbor := range n.Links() {
			other, ok := nodes[neighbor]
			if !ok {
				return nil, ErrInvalidTopology{msg: fmt.Sprintf("node %q links to unknown node %q", name, neighbor)}
			}
			if !other.HasLink(name) {
				return nil, ErrInvalidTopology{msg: fmt.Sprintf("link %q->%q is not mutual", name, neighbor)}
			}
		}
	}

	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Topology{nodes: nodes, names: names}, nil
}

// Node returns the node with the given name, or nil if unknown.
func (t *Topology) Node(name string) *Node {
	return t.nodes[name]
}

// Names returns every node name in deterministic (lexicographic) order.
func (t *Topology) Names() []string {
	return t.names
}

// Nodes returns every node in deterministic (lexicographic-by-name)
// order, so maintenance and injection phases iterate reproducibly.
func (t *Topology) Nodes() []*Node {
	out := make([]*Node, 0, len(t.names))
	for _, name := range t.names {
		out = append(out, t.nodes[name])
	}
	return out
}

// Neighbors returns the direct neighbor names of name, in sorted order.
func (t *Topology) Neighbors(name string) []string {
	n, ok := t.nodes[name]
	if !ok {
		return nil
	}
	return n.Links()
}
