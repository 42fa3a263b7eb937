// Package store implements EmberQL's graph store: the single-writer,
// many-reader table of nodes and edges plus their adjacency, property, and
// label indexes.
//
// Concurrency model: every mutator takes the store's write lock, so
// mutations are serialized into one total order and each mutation's index
// maintenance is committed atomically with it — a reader taking the read
// lock either sees the complete pre- or post-mutation state, never a
// partial one. This mirrors an in-memory engine design, which
// guards its tables with a single sync.RWMutex rather than a dedicated
// writer goroutine. The lock does not prefer readers: once a writer is
// waiting in Lock, new RLock calls block until that writer has finished.
//
// Example:
//
//	s := store.New()
//	id, err := s.CreateNode(map[string]any{"name": "Alice"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	n, _ := s.GetNode(id)
//	fmt.Println(n.Properties["name"])
package store

import (
	"sync"

	"github.com/emberql/emberql/pkg/errs"
	"github.com/emberql/emberql/pkg/graph"
)

// Stats summarizes the store's current size, mirroring a common
// storage.Stats-shaped accessor used for health/diagnostics reporting.
type Stats struct {
	TotalNodes int
	TotalEdges int
	Labels     int
}

// Store is the in-memory graph store. The zero value is
// not usable; construct with New.
type Store struct {
	mu sync.RWMutex

	nodes map[graph.NodeID]*graph.Node
	edges map[graph.EdgeID]*graph.Edge

	outgoing map[graph.NodeID]map[graph.EdgeID]struct{}
	incoming map[graph.NodeID]map[graph.EdgeID]struct{}

	// propertyIndex maps (key,value) -> set of node ids carrying that
	// value. Values are pre-rendered to a comparable key via indexKey so
	// that slices (list-valued properties) can still be indexed per
	// element without requiring map[any]any.
	propertyIndex map[string]map[graph.NodeID]struct{}
	labelIndex    map[string]map[graph.EdgeID]struct{}

	nextNodeID graph.NodeID
	nextEdgeID graph.EdgeID
}

// New constructs an empty graph store with identity counters starting at 1
// (0 is reserved as "no id" so callers can distinguish a zero Node{} from a
// real lookup result).
func New() *Store {
	return &Store{
		nodes:         make(map[graph.NodeID]*graph.Node),
		edges:         make(map[graph.EdgeID]*graph.Edge),
		outgoing:      make(map[graph.NodeID]map[graph.EdgeID]struct{}),
		incoming:      make(map[graph.NodeID]map[graph.EdgeID]struct{}),
		propertyIndex: make(map[string]map[graph.NodeID]struct{}),
		labelIndex:    make(map[string]map[graph.EdgeID]struct{}),
		nextNodeID:    1,
		nextEdgeID:    1,
	}
}

// CreateNode validates props and, on success, assigns a fresh
// positive identity, initializes empty adjacency lists, and indexes every
// (key, value) pair — all before releasing the write lock, so readers
// never observe a partially-indexed node.
func (s *Store) CreateNode(props map[string]any) (graph.NodeID, error) {
	if err := graph.ValidateProperties(props); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextNodeID
	s.nextNodeID++

	n := &graph.Node{ID: id, Properties: graph.CopyProperties(props)}
	s.nodes[id] = n
	s.outgoing[id] = make(map[graph.EdgeID]struct{})
	s.incoming[id] = make(map[graph.EdgeID]struct{})
	s.indexNodeProperties(n)

	return id, nil
}

// GetNode returns a copy of the node with the given id.
func (s *Store) GetNode(id graph.NodeID) (*graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, errs.ErrNodeNotFound
	}
	return cloneNode(n), nil
}

// UpdateNode replaces a live node's properties wholesale, re-indexing it
// transactionally with the primary mutation.
func (s *Store) UpdateNode(id graph.NodeID, props map[string]any) error {
	if err := graph.ValidateProperties(props); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return errs.ErrNodeNotFound
	}

	s.unindexNodeProperties(n)
	n.Properties = graph.CopyProperties(props)
	s.indexNodeProperties(n)
	return nil
}

// DeleteNode removes the node, every edge incident to it, and all derived
// index entries. It is idempotent: deleting an absent node succeeds.
func (s *Store) DeleteNode(id graph.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil
	}

	for eid := range s.outgoing[id] {
		s.removeEdgeLocked(eid)
	}
	for eid := range s.incoming[id] {
		s.removeEdgeLocked(eid)
	}

	s.unindexNodeProperties(n)
	delete(s.nodes, id)
	delete(s.outgoing, id)
	delete(s.incoming, id)
	return nil
}

// CreateEdge validates label/properties and both endpoints, then appends
// the edge to both the owning node's adjacency lists and the label index.
func (s *Store) CreateEdge(from, to graph.NodeID, label string, props map[string]any) (graph.EdgeID, error) {
	if err := graph.ValidateLabel(label); err != nil {
		return 0, err
	}
	if err := graph.ValidateProperties(props); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[from]; !ok {
		return 0, errs.New(errs.CodeNodeNotFound, "from node %d not found", from)
	}
	if _, ok := s.nodes[to]; !ok {
		return 0, errs.New(errs.CodeNodeNotFound, "to node %d not found", to)
	}

	id := s.nextEdgeID
	s.nextEdgeID++

	e := &graph.Edge{ID: id, From: from, To: to, Label: label, Properties: graph.CopyProperties(props)}
	s.edges[id] = e
	s.outgoing[from][id] = struct{}{}
	s.incoming[to][id] = struct{}{}
	s.indexEdgeLabel(e)

	return id, nil
}

// GetEdge returns a copy of the edge with the given id.
func (s *Store) GetEdge(id graph.EdgeID) (*graph.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.edges[id]
	if !ok {
		return nil, errs.ErrEdgeNotFound
	}
	return cloneEdge(e), nil
}

// DeleteEdge removes the edge and its index entries. Idempotent on an
// absent edge.
func (s *Store) DeleteEdge(id graph.EdgeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeEdgeLocked(id)
	return nil
}

// removeEdgeLocked assumes s.mu is already held for writing.
func (s *Store) removeEdgeLocked(id graph.EdgeID) {
	e, ok := s.edges[id]
	if !ok {
		return
	}
	if set, ok := s.outgoing[e.From]; ok {
		delete(set, id)
	}
	if set, ok := s.incoming[e.To]; ok {
		delete(set, id)
	}
	s.unindexEdgeLabel(e)
	delete(s.edges, id)
}

// GetEdgesFrom returns the ids of edges outgoing from id, in a stable
// iteration order (ascending by edge id) so that BFS-order guarantees
// elsewhere in the system (e.g. find_path tie-breaks) are reproducible.
func (s *Store) GetEdgesFrom(id graph.NodeID) []graph.EdgeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedEdgeIDs(s.outgoing[id])
}

// GetEdgesTo returns the ids of edges incoming to id, in ascending order.
func (s *Store) GetEdgesTo(id graph.NodeID) []graph.EdgeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedEdgeIDs(s.incoming[id])
}

// FindNodesByProperty returns every node whose properties contain the
// exact (k, v) pair, driven entirely by the property index.
func (s *Store) FindNodesByProperty(k string, v any) []graph.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := indexKey(k, v)
	set := s.propertyIndex[key]
	out := make([]graph.NodeID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return sortNodeIDs(out)
}

// FindEdgesByLabel returns every edge carrying the given label.
func (s *Store) FindEdgesByLabel(label string) []graph.EdgeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedEdgeIDs(s.labelIndex[label])
}

// Stats reports the store's current size.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		TotalNodes: len(s.nodes),
		TotalEdges: len(s.edges),
		Labels:     len(s.labelIndex),
	}
}

// ListNodes returns a copy of every live node, ordered by ascending id.
func (s *Store) ListNodes() []*graph.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]graph.NodeID, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	ids = sortNodeIDs(ids)

	out := make([]*graph.Node, len(ids))
	for i, id := range ids {
		out[i] = cloneNode(s.nodes[id])
	}
	return out
}

// ListEdges returns a copy of every live edge, ordered by ascending id.
func (s *Store) ListEdges() []*graph.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]graph.EdgeID, 0, len(s.edges))
	for id := range s.edges {
		ids = append(ids, id)
	}
	ids = sortEdgeIDsSlice(ids)

	out := make([]*graph.Edge, len(ids))
	for i, id := range ids {
		out[i] = cloneEdge(s.edges[id])
	}
	return out
}

func cloneNode(n *graph.Node) *graph.Node {
	return &graph.Node{ID: n.ID, Properties: graph.CopyProperties(n.Properties)}
}

func cloneEdge(e *graph.Edge) *graph.Edge {
	return &graph.Edge{ID: e.ID, From: e.From, To: e.To, Label: e.Label, Properties: graph.CopyProperties(e.Properties)}
}
