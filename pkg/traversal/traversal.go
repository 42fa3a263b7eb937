// Package traversal implements BFS-based reachability and shortest-path
// queries over a pkg/store.Store.
package traversal

import (
	"github.com/emberql/emberql/pkg/errs"
	"github.com/emberql/emberql/pkg/graph"
	"github.com/emberql/emberql/pkg/store"
)

// Direction selects which adjacency lists a traversal walks.
type Direction int

const (
	Out Direction = iota
	In
	Both
)

// MaxDepth is the hard cap placed on traverse/find_path depth.
const MaxDepth = 100

// neighbors returns the node ids directly reachable from id in direction
// dir, in the store's stable (ascending edge id) iteration order.
func neighbors(s *store.Store, id graph.NodeID, dir Direction) []graph.NodeID {
	var out []graph.NodeID
	switch dir {
	case Out:
		for _, eid := range s.GetEdgesFrom(id) {
			if e, err := s.GetEdge(eid); err == nil {
				out = append(out, e.To)
			}
		}
	case In:
		for _, eid := range s.GetEdgesTo(id) {
			if e, err := s.GetEdge(eid); err == nil {
				out = append(out, e.From)
			}
		}
	case Both:
		out = append(out, neighbors(s, id, Out)...)
		out = append(out, neighbors(s, id, In)...)
	}
	return out
}

// Traverse performs a BFS frontier expansion from start in the given
// direction, returning every node reachable within depth hops. depth=0
// yields the empty set; each node is visited (and returned) at most once,
// regardless of direction, resolving the "both" direction case
// in favor of set semantics, so traverse(n, both, k) deduplicates rather
// than preserving multiplicity across directions.
func Traverse(s *store.Store, start graph.NodeID, dir Direction, depth int) (map[graph.NodeID]struct{}, error) {
	if depth < 0 || depth > MaxDepth {
		return nil, errs.New(errs.CodeInvalidDepth, "depth %d out of range [0,%d]", depth, MaxDepth)
	}

	result := make(map[graph.NodeID]struct{})
	if depth == 0 {
		return result, nil
	}

	visited := map[graph.NodeID]struct{}{start: {}}
	frontier := []graph.NodeID{start}

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []graph.NodeID
		for _, cur := range frontier {
			for _, nb := range neighbors(s, cur, dir) {
				if _, seen := visited[nb]; seen {
					continue
				}
				visited[nb] = struct{}{}
				result[nb] = struct{}{}
				next = append(next, nb)
			}
		}
		frontier = next
	}

	return result, nil
}

// FindPath returns the shortest path (endpoints inclusive) from `from` to
// `to`, discovered via BFS and pruned at maxDepth hops. The tie-break is
// the order in which BFS first discovers `to`: the first path found in
// BFS order over the store's adjacency iteration order, which is a
// contract (tests rely on it).
func FindPath(s *store.Store, from, to graph.NodeID, maxDepth int) ([]graph.NodeID, error) {
	if maxDepth < 0 || maxDepth > MaxDepth {
		return nil, errs.New(errs.CodeInvalidDepth, "depth %d out of range [0,%d]", maxDepth, MaxDepth)
	}
	if from == to {
		return []graph.NodeID{from}, nil
	}

	visited := map[graph.NodeID]struct{}{from: {}}
	prev := map[graph.NodeID]graph.NodeID{}
	frontier := []graph.NodeID{from}

	for hop := 0; hop < maxDepth && len(frontier) > 0; hop++ {
		var next []graph.NodeID
		for _, cur := range frontier {
			for _, nb := range neighbors(s, cur, Out) {
				if _, seen := visited[nb]; seen {
					continue
				}
				visited[nb] = struct{}{}
				prev[nb] = cur
				if nb == to {
					return reconstruct(prev, from, to), nil
				}
				next = append(next, nb)
			}
		}
		frontier = next
	}

	return nil, errs.ErrPathNotFound
}

func reconstruct(prev map[graph.NodeID]graph.NodeID, from, to graph.NodeID) []graph.NodeID {
	path := []graph.NodeID{to}
	cur := to
	for cur != from {
		cur = prev[cur]
		path = append([]graph.NodeID{cur}, path...)
	}
	return path
}
