package graph

import "sync"

// Store is the in-memory typed knowledge graph shared by the stages and the
// competition engine. All mutations run under a single writer lock; the
// per-stage commit is the only critical section and never spans an external
// call.
//
// Pruned nodes stay in the store flagged Pruned (lineage is never lost) but
// are excluded from Nodes(), edge validation, and merge targets. Edges
// touching a pruned node are dropped in the same critical section, so the
// integrity invariant (every edge endpoint is a live node) holds after every
// operation.
type Store struct {
	mu        sync.RWMutex
	nodes     map[string]*Node
	nodeOrder []string
	edges     map[string]*Edge
	edgeOrder []string
}

func NewStore() *Store {
	return &Store{
		nodes: make(map[string]*Node),
		edges: make(map[string]*Edge),
	}
}

// AddNodes inserts nodes atomically. If any id collides with an existing
// node, nothing is inserted.
func (s *Store) AddNodes(nodes ...Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range nodes {
		if _, ok := s.nodes[n.ID]; ok {
			return &DuplicateNodeError{NodeID: n.ID}
		}
	}
	for _, n := range nodes {
		node := n
		s.nodes[node.ID] = &node
		s.nodeOrder = append(s.nodeOrder, node.ID)
	}
	return nil
}

// AddEdges inserts edges atomically. Every endpoint must reference a live
// (unpruned) node or the whole batch is rejected with DanglingEdgeError.
func (s *Store) AddEdges(edges ...Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range edges {
		if !s.alive(e.Source) {
			return &DanglingEdgeError{EdgeID: e.ID, Missing: e.Source}
		}
		if !s.alive(e.Target) {
			return &DanglingEdgeError{EdgeID: e.ID, Missing: e.Target}
		}
	}
	for _, e := range edges {
		edge := e
		s.edges[edge.ID] = &edge
		s.edgeOrder = append(s.edgeOrder, edge.ID)
	}
	return nil
}

// UpdateNode applies fn to the node under the writer lock.
func (s *Store) UpdateNode(id string, fn func(*Node)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return &DanglingEdgeError{Missing: id}
	}
	fn(n)
	return nil
}

// PruneNodes flags every live node matching pred as pruned and drops all
// edges touching a pruned node in the same transaction. Returns the pruned
// node ids in insertion order.
func (s *Store) PruneNodes(pred func(Node) bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned []string
	for _, id := range s.nodeOrder {
		n := s.nodes[id]
		if n.Metadata.Pruned || !pred(*n) {
			continue
		}
		n.Metadata.Pruned = true
		pruned = append(pruned, id)
	}
	if len(pruned) > 0 {
		s.dropDeadEdges()
	}
	return pruned
}

// MergeNodes redirects every edge of the source nodes onto target, unions the
// sources' Extra metadata into the target, and flags the sources as merged
// and pruned. Fails with MergeConflictError if the target is not a live node;
// nothing is mutated on failure. Edges that would become self-loops are
// dropped.
func (s *Store) MergeNodes(sourceIDs []string, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.nodes[targetID]
	if !ok || target.Metadata.Pruned {
		return &MergeConflictError{TargetID: targetID}
	}

	sources := make(map[string]bool, len(sourceIDs))
	for _, id := range sourceIDs {
		if id == targetID {
			continue
		}
		if n, ok := s.nodes[id]; ok && !n.Metadata.Pruned {
			sources[id] = true
		}
	}

	for _, id := range s.edgeOrder {
		e, ok := s.edges[id]
		if !ok {
			continue
		}
		if sources[e.Source] {
			e.Source = targetID
		}
		if sources[e.Target] {
			e.Target = targetID
		}
	}

	for id := range sources {
		src := s.nodes[id]
		if len(src.Metadata.Extra) > 0 && target.Metadata.Extra == nil {
			target.Metadata.Extra = make(map[string]any)
		}
		for k, v := range src.Metadata.Extra {
			if _, exists := target.Metadata.Extra[k]; !exists {
				target.Metadata.Extra[k] = v
			}
		}
		src.Metadata.Pruned = true
		src.Metadata.MergedInto = targetID
	}

	s.dropDeadEdges()
	return nil
}

// Node returns a copy of the node, pruned or not.
func (s *Store) Node(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Nodes returns copies of all live nodes in insertion order.
func (s *Store) Nodes() []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Node, 0, len(s.nodeOrder))
	for _, id := range s.nodeOrder {
		if n := s.nodes[id]; !n.Metadata.Pruned {
			out = append(out, *n)
		}
	}
	return out
}

// NodesByType returns live nodes of the given type in insertion order.
func (s *Store) NodesByType(t NodeType) []Node {
	var out []Node
	for _, n := range s.Nodes() {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// Edges returns copies of all edges in insertion order.
func (s *Store) Edges() []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Edge, 0, len(s.edgeOrder))
	for _, id := range s.edgeOrder {
		if e, ok := s.edges[id]; ok {
			out = append(out, *e)
		}
	}
	return out
}

// MeanConfidence returns the scalar confidence of a node by id.
func (s *Store) MeanConfidence(id string) (float64, bool) {
	n, ok := s.Node(id)
	if !ok {
		return 0, false
	}
	return n.MeanConfidence(), true
}

// alive reports whether id names a live node. Caller holds the lock.
func (s *Store) alive(id string) bool {
	n, ok := s.nodes[id]
	return ok && !n.Metadata.Pruned
}

// dropDeadEdges removes edges whose endpoints are no longer live, plus
// self-loops produced by merging. Caller holds the writer lock.
func (s *Store) dropDeadEdges() {
	keep := s.edgeOrder[:0]
	for _, id := range s.edgeOrder {
		e := s.edges[id]
		if e.Source == e.Target || !s.alive(e.Source) || !s.alive(e.Target) {
			delete(s.edges, id)
			continue
		}
		keep = append(keep, id)
	}
	s.edgeOrder = keep
}
