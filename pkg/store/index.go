package store

import (
	"fmt"
	"sort"

	"github.com/emberql/emberql/pkg/graph"
)

// indexNodeProperties assumes s.mu is held for writing; it appends n's
// (key, value) pairs to the property index, one entry per value (list
// properties index every element, following bag semantics: a node with
// the same value twice still only appears once per the
// multimap definition of "one entry per node that carries that value").
func (s *Store) indexNodeProperties(n *graph.Node) {
	for k, v := range n.Properties {
		for _, key := range indexKeysFor(k, v) {
			if s.propertyIndex[key] == nil {
				s.propertyIndex[key] = make(map[graph.NodeID]struct{})
			}
			s.propertyIndex[key][n.ID] = struct{}{}
		}
	}
}

func (s *Store) unindexNodeProperties(n *graph.Node) {
	for k, v := range n.Properties {
		for _, key := range indexKeysFor(k, v) {
			if set, ok := s.propertyIndex[key]; ok {
				delete(set, n.ID)
				if len(set) == 0 {
					delete(s.propertyIndex, key)
				}
			}
		}
	}
}

func (s *Store) indexEdgeLabel(e *graph.Edge) {
	if s.labelIndex[e.Label] == nil {
		s.labelIndex[e.Label] = make(map[graph.EdgeID]struct{})
	}
	s.labelIndex[e.Label][e.ID] = struct{}{}
}

func (s *Store) unindexEdgeLabel(e *graph.Edge) {
	if set, ok := s.labelIndex[e.Label]; ok {
		delete(set, e.ID)
		if len(set) == 0 {
			delete(s.labelIndex, e.Label)
		}
	}
}

// indexKeysFor returns the set of property-index keys a value contributes:
// a scalar contributes one key, a list contributes one key per element
// (so find_nodes_by_property(k, elem) finds nodes whose list property
// contains elem, matching the "bag semantics" multimap described in
// property rules).
func indexKeysFor(k string, v any) []string {
	if list, ok := v.([]any); ok {
		keys := make([]string, 0, len(list))
		for _, item := range list {
			keys = append(keys, indexKey(k, item))
		}
		return keys
	}
	return []string{indexKey(k, v)}
}

// indexKey renders a (property-key, property-value) pair to a comparable
// string suitable for a Go map key, since property values may be any of
// EmberQL's supported scalar types.
func indexKey(k string, v any) string {
	return fmt.Sprintf("%s\x00%T\x00%v", k, v, v)
}

func sortedEdgeIDs(set map[graph.EdgeID]struct{}) []graph.EdgeID {
	out := make([]graph.EdgeID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return sortEdgeIDsSlice(out)
}

func sortNodeIDs(ids []graph.NodeID) []graph.NodeID {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortEdgeIDsSlice(ids []graph.EdgeID) []graph.EdgeID {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
