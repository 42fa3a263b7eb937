// Package analytics implements the read-only graph kernels described
// §4.4: PageRank, eigenvector centrality, Brandes betweenness, closeness,
// connected components, clustering coefficient, triangle counting,
// Louvain communities, k-core decomposition, density, diameter, and
// degree distribution.
//
// Every kernel takes a *snapshot built once at invocation time and never
// touches the live store again, matching the shape of graph-kernel functions
// (which already operate over a plain []*Node slice rather than a live
// handle) generalized to pull that slice from pkg/store.Store under its
// read lock.
package analytics

import "github.com/emberql/emberql/pkg/store"

// snapshot is the adjacency view every kernel in this package operates
// over: plain id slices and maps, captured once so a long-running
// computation never observes a concurrent mutation.
type snapshot struct {
	nodeIDs []uint64
	// outAdj/inAdj map a node id to the node ids directly reachable by an
	// outgoing/incoming edge, already deduplicated.
	outAdj map[uint64][]uint64
	inAdj  map[uint64][]uint64
}

// newSnapshot reads s once under its own locking (via the public accessor
// methods, each individually locked) and builds the adjacency view every
// kernel below shares.
func newSnapshot(s *store.Store) *snapshot {
	nodes := s.ListNodes()
	snap := &snapshot{
		nodeIDs: make([]uint64, len(nodes)),
		outAdj:  make(map[uint64][]uint64, len(nodes)),
		inAdj:   make(map[uint64][]uint64, len(nodes)),
	}
	for i, n := range nodes {
		snap.nodeIDs[i] = uint64(n.ID)
	}

	for _, n := range nodes {
		id := uint64(n.ID)
		seenOut := map[uint64]struct{}{}
		for _, eid := range s.GetEdgesFrom(n.ID) {
			e, err := s.GetEdge(eid)
			if err != nil {
				continue
			}
			to := uint64(e.To)
			if _, dup := seenOut[to]; dup {
				continue
			}
			seenOut[to] = struct{}{}
			snap.outAdj[id] = append(snap.outAdj[id], to)
		}

		seenIn := map[uint64]struct{}{}
		for _, eid := range s.GetEdgesTo(n.ID) {
			e, err := s.GetEdge(eid)
			if err != nil {
				continue
			}
			from := uint64(e.From)
			if _, dup := seenIn[from]; dup {
				continue
			}
			seenIn[from] = struct{}{}
			snap.inAdj[id] = append(snap.inAdj[id], from)
		}
	}

	return snap
}

// undirectedNeighbors returns the union of in- and out-adjacency for id,
// deduplicated — the view every undirected kernel (clustering, triangle
// count, components, Louvain, k-core) uses.
func (s *snapshot) undirectedNeighbors(id uint64) []uint64 {
	seen := map[uint64]struct{}{}
	var out []uint64
	for _, nb := range s.outAdj[id] {
		if _, ok := seen[nb]; !ok && nb != id {
			seen[nb] = struct{}{}
			out = append(out, nb)
		}
	}
	for _, nb := range s.inAdj[id] {
		if _, ok := seen[nb]; !ok && nb != id {
			seen[nb] = struct{}{}
			out = append(out, nb)
		}
	}
	return out
}

func (s *snapshot) n() int { return len(s.nodeIDs) }
