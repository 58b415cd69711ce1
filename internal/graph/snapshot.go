package graph

import (
	"sort"
	"sync"
)

// Snapshot is an immutable view of the graph at one version. It is safe to
// share across goroutines; every accessor returns data that will never
// change for the lifetime of the snapshot.
type Snapshot struct {
	version uint64
	nodes   map[NodeID]*Node
	inbound map[PortRef]PortRef
	program PortRef

	once    sync.Once
	order   []NodeID
	levels  [][]NodeID
	wiredIn map[NodeID]map[string]PortRef
}

// Version identifies this snapshot; versions increase by one per applied
// edit batch.
func (s *Snapshot) Version() uint64 { return s.version }

// Len returns the number of node instances.
func (s *Snapshot) Len() int { return len(s.nodes) }

// Node returns the record for an instance.
func (s *Snapshot) Node(id NodeID) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// NodeIDs returns all instance IDs in lexical order.
func (s *Snapshot) NodeIDs() []NodeID {
	ids := make([]NodeID, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Program returns the designated program output, if one is set.
func (s *Snapshot) Program() (PortRef, bool) {
	return s.program, !s.program.Zero()
}

// Inbound returns the output port feeding the given input port.
func (s *Snapshot) Inbound(to PortRef) (PortRef, bool) {
	from, ok := s.inbound[to]
	return from, ok
}

// InboundOf returns the wired inputs of a node, keyed by input port name.
// The returned map is shared; callers must not mutate it.
func (s *Snapshot) InboundOf(id NodeID) map[string]PortRef {
	s.compute()
	return s.wiredIn[id]
}

// Wired reports whether every required input of the node is fed by a
// wire. Nodes with missing required inputs are skipped by the scheduler.
func (s *Snapshot) Wired(id NodeID) bool {
	return len(s.MissingInputs(id)) == 0
}

// MissingInputs returns the required input ports of the node that no wire
// feeds, in declaration order.
func (s *Snapshot) MissingInputs(id NodeID) []string {
	n, ok := s.nodes[id]
	if !ok {
		return nil
	}
	s.compute()
	wired := s.wiredIn[id]

	var missing []string
	for _, p := range n.Inputs {
		if p.Optional {
			continue
		}
		if _, ok := wired[p.Name]; !ok {
			missing = append(missing, p.Name)
		}
	}
	return missing
}

// Edges returns every wire, sorted by destination then source.
func (s *Snapshot) Edges() []Edge {
	edges := make([]Edge, 0, len(s.inbound))
	for to, from := range s.inbound {
		edges = append(edges, Edge{From: from, To: to})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].To != edges[j].To {
			return edges[i].To.String() < edges[j].To.String()
		}
		return edges[i].From.String() < edges[j].From.String()
	})
	return edges
}

// Dependencies returns the distinct upstream nodes the given node consumes
// from, in lexical order.
func (s *Snapshot) Dependencies(id NodeID) []NodeID {
	seen := make(map[NodeID]bool)
	for to, from := range s.inbound {
		if to.Node == id && !seen[from.Node] {
			seen[from.Node] = true
		}
	}
	return sortedKeys(seen)
}

// Dependents returns the distinct downstream nodes consuming the given
// node's outputs, in lexical order.
func (s *Snapshot) Dependents(id NodeID) []NodeID {
	seen := make(map[NodeID]bool)
	for to, from := range s.inbound {
		if from.Node == id && !seen[to.Node] {
			seen[to.Node] = true
		}
	}
	return sortedKeys(seen)
}

// Order returns a deterministic topological order over all nodes.
func (s *Snapshot) Order() []NodeID {
	s.compute()
	return s.order
}

// Levels partitions the topological order into dependency levels: every
// node at level k consumes only from levels before k, so each level can
// execute concurrently once the previous one has finished.
func (s *Snapshot) Levels() [][]NodeID {
	s.compute()
	return s.levels
}

// compute derives the order, levels, and per-node wiring index. The graph
// is acyclic by construction; a cycle here means an edit bypassed
// validation, which is unrecoverable.
func (s *Snapshot) compute() {
	s.once.Do(func() {
		s.wiredIn = make(map[NodeID]map[string]PortRef, len(s.nodes))
		depCount := make(map[NodeID]int, len(s.nodes))
		dependents := make(map[NodeID]map[NodeID]bool)

		for id := range s.nodes {
			depCount[id] = 0
		}
		for to, from := range s.inbound {
			in := s.wiredIn[to.Node]
			if in == nil {
				in = make(map[string]PortRef)
				s.wiredIn[to.Node] = in
			}
			in[to.Port] = from

			down := dependents[from.Node]
			if down == nil {
				down = make(map[NodeID]bool)
				dependents[from.Node] = down
			}
			if !down[to.Node] {
				down[to.Node] = true
				depCount[to.Node]++
			}
		}

		var ready []NodeID
		for id, n := range depCount {
			if n == 0 {
				ready = append(ready, id)
			}
		}

		s.order = make([]NodeID, 0, len(s.nodes))
		for len(ready) > 0 {
			sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
			level := ready
			ready = nil

			s.levels = append(s.levels, level)
			s.order = append(s.order, level...)

			for _, id := range level {
				for down := range dependents[id] {
					depCount[down]--
					if depCount[down] == 0 {
						ready = append(ready, down)
					}
				}
			}
		}

		if len(s.order) != len(s.nodes) {
			panic("graph: cycle in validated snapshot")
		}
	})
}

func sortedKeys(m map[NodeID]bool) []NodeID {
	ids := make([]NodeID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
