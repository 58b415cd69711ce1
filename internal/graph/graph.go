package graph

import (
	"fmt"
	"maps"
	"sync"

	"github.com/zclconf/go-cty/cty"
)

// Graph is the mutable working copy of the compositing graph. All methods
// are safe for concurrent use, though in practice the mutation manager is
// the only writer.
type Graph struct {
	mu      sync.Mutex
	catalog Catalog

	nodes   map[NodeID]*Node
	inbound map[PortRef]PortRef // input port -> producing output port
	program PortRef

	version uint64
	dirty   bool
	last    *Snapshot
}

// New creates an empty working graph whose node types resolve through the
// given catalog.
func New(catalog Catalog) *Graph {
	return &Graph{
		catalog: catalog,
		nodes:   make(map[NodeID]*Node),
		inbound: make(map[PortRef]PortRef),
	}
}

// AddNode validates the spec against the catalog and inserts a new node
// instance. The returned ID is "<type>.<name>".
func (g *Graph) AddNode(spec NodeSpec) (NodeID, error) {
	if !validLabel(spec.Type) || !validLabel(spec.Name) {
		return "", fmt.Errorf("add node %q %q: %w", spec.Type, spec.Name, ErrInvalidSpec)
	}

	inputs, outputs, err := g.catalog.Ports(spec.Type)
	if err != nil {
		return "", fmt.Errorf("add node %q %q: %w: %w", spec.Type, spec.Name, ErrUnknownType, err)
	}

	id := MakeNodeID(spec.Type, spec.Name)

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists {
		return "", fmt.Errorf("add node %q: %w", id, ErrDuplicateNode)
	}

	params := make(map[string]cty.Value, len(spec.Params))
	maps.Copy(params, spec.Params)

	g.nodes[id] = &Node{
		ID:          id,
		Type:        spec.Type,
		Name:        spec.Name,
		Inputs:      inputs,
		Outputs:     outputs,
		Params:      params,
		LowPriority: spec.LowPriority,
		Strict:      spec.Strict,
	}
	g.dirty = true
	return id, nil
}

// RemoveNode deletes a node and every wire touching it. If the node owned
// the program output, the program becomes unset.
func (g *Graph) RemoveNode(id NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("remove node %q: %w", id, ErrNotFound)
	}
	delete(g.nodes, id)

	for to, from := range g.inbound {
		if to.Node == id || from.Node == id {
			delete(g.inbound, to)
		}
	}
	if g.program.Node == id {
		g.program = PortRef{}
	}
	g.dirty = true
	return nil
}

// Connect wires an output port to an input port. The wire must join ports
// of the same type, the input must be free, and the result must stay
// acyclic; the first violated rule decides the returned error.
func (g *Graph) Connect(from, to PortRef) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkWire(from, to); err != nil {
		return fmt.Errorf("connect %s -> %s: %w", from, to, err)
	}
	g.inbound[to] = from
	g.dirty = true
	return nil
}

// checkWire validates a prospective wire. Caller holds g.mu.
func (g *Graph) checkWire(from, to PortRef) error {
	src, ok := g.nodes[from.Node]
	if !ok {
		return fmt.Errorf("source node %q: %w", from.Node, ErrNotFound)
	}
	srcPort, ok := src.Output(from.Port)
	if !ok {
		return fmt.Errorf("source %s: %w", from, ErrUnknownPort)
	}

	dst, ok := g.nodes[to.Node]
	if !ok {
		return fmt.Errorf("destination node %q: %w", to.Node, ErrNotFound)
	}
	dstPort, ok := dst.Input(to.Port)
	if !ok {
		return fmt.Errorf("destination %s: %w", to, ErrUnknownPort)
	}

	if srcPort.Type != dstPort.Type {
		return fmt.Errorf("%s is %s, %s is %s: %w",
			from, srcPort.Type, to, dstPort.Type, ErrTypeMismatch)
	}
	if prev, occupied := g.inbound[to]; occupied {
		return fmt.Errorf("already fed by %s: %w", prev, ErrPortOccupied)
	}
	if from.Node == to.Node || g.reaches(to.Node, from.Node) {
		return ErrWouldCycle
	}
	return nil
}

// reaches reports whether data flowing out of src can already arrive at
// dst. Caller holds g.mu.
func (g *Graph) reaches(src, dst NodeID) bool {
	downstream := make(map[NodeID][]NodeID, len(g.nodes))
	for to, from := range g.inbound {
		downstream[from.Node] = append(downstream[from.Node], to.Node)
	}

	seen := map[NodeID]bool{src: true}
	stack := []NodeID{src}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == dst {
			return true
		}
		for _, next := range downstream[n] {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// Disconnect removes the wire from -> to. The wire must exist exactly as
// named.
func (g *Graph) Disconnect(from, to PortRef) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if current, ok := g.inbound[to]; !ok || current != from {
		return fmt.Errorf("disconnect %s -> %s: %w", from, to, ErrNotFound)
	}
	delete(g.inbound, to)
	g.dirty = true
	return nil
}

// SetParam replaces one parameter on a node. The node's record is swapped
// for a copy, so snapshots holding the old record are unaffected. A
// cty.NilVal removes the key.
func (g *Graph) SetParam(id NodeID, key string, val cty.Value) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	old, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("set param %q on %q: %w", key, id, ErrNotFound)
	}
	if key == "" {
		return fmt.Errorf("set param on %q: empty key: %w", id, ErrInvalidSpec)
	}

	params := make(map[string]cty.Value, len(old.Params)+1)
	maps.Copy(params, old.Params)
	if val == cty.NilVal {
		delete(params, key)
	} else {
		params[key] = val
	}

	next := *old
	next.Params = params
	g.nodes[id] = &next
	g.dirty = true
	return nil
}

// SetProgram designates the output port whose buffer is presented each
// frame. The port must be a video output of an existing node.
func (g *Graph) SetProgram(ref PortRef) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[ref.Node]
	if !ok {
		return fmt.Errorf("set program %s: %w", ref, ErrNotFound)
	}
	port, ok := n.Output(ref.Port)
	if !ok {
		return fmt.Errorf("set program %s: %w", ref, ErrUnknownPort)
	}
	if port.Type != PortVideo {
		return fmt.Errorf("set program %s: %s output: %w", ref, port.Type, ErrTypeMismatch)
	}
	g.program = ref
	g.dirty = true
	return nil
}

// ClearProgram unsets the program output; subsequent frames present
// nothing until a new program is designated.
func (g *Graph) ClearProgram() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.program = PortRef{}
	g.dirty = true
}

// Node returns the current record for an instance.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	return n, ok
}

// Len returns the number of node instances.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// Clone returns an independent working copy sharing all node records.
// The mutation manager applies each edit batch to a clone first, so a
// rejected batch leaves the original untouched.
func (g *Graph) Clone() *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	return &Graph{
		catalog: g.catalog,
		nodes:   maps.Clone(g.nodes),
		inbound: maps.Clone(g.inbound),
		program: g.program,
		version: g.version,
		dirty:   g.dirty,
		last:    g.last,
	}
}

// Snapshot returns an immutable view of the current graph. Repeated calls
// without intervening edits return the identical snapshot; each batch of
// edits yields exactly one new version.
func (g *Graph) Snapshot() *Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.dirty && g.last != nil {
		return g.last
	}

	g.version++
	g.last = &Snapshot{
		version: g.version,
		nodes:   maps.Clone(g.nodes),
		inbound: maps.Clone(g.inbound),
		program: g.program,
	}
	g.dirty = false
	return g.last
}
