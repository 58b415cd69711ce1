package mutate

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/framegridgo/internal/graph"
)

// Op is one edit against the working graph.
type Op interface {
	Apply(g *graph.Graph) error
	String() string
}

// Batch is an ordered group of edits applied all-or-nothing.
type Batch struct {
	// Label names the batch in logs, e.g. the patch file it came from.
	Label string
	Ops   []Op
}

// Add appends operations to the batch.
func (b *Batch) Add(ops ...Op) *Batch {
	b.Ops = append(b.Ops, ops...)
	return b
}

// Empty reports whether the batch carries no operations.
func (b *Batch) Empty() bool { return len(b.Ops) == 0 }

func (b *Batch) apply(g *graph.Graph) error {
	for i, op := range b.Ops {
		if err := op.Apply(g); err != nil {
			return fmt.Errorf("op %d (%s): %w", i, op, err)
		}
	}
	return nil
}

// AddNode inserts a node built from the spec.
type AddNode struct {
	Spec graph.NodeSpec
}

func (o AddNode) Apply(g *graph.Graph) error {
	_, err := g.AddNode(o.Spec)
	return err
}

func (o AddNode) String() string {
	return fmt.Sprintf("add_node %s", graph.MakeNodeID(o.Spec.Type, o.Spec.Name))
}

// RemoveNode deletes a node and every wire touching it.
type RemoveNode struct {
	ID graph.NodeID
}

func (o RemoveNode) Apply(g *graph.Graph) error { return g.RemoveNode(o.ID) }

func (o RemoveNode) String() string { return fmt.Sprintf("remove_node %s", o.ID) }

// Connect wires an output port to an input port.
type Connect struct {
	From graph.PortRef
	To   graph.PortRef
}

func (o Connect) Apply(g *graph.Graph) error { return g.Connect(o.From, o.To) }

func (o Connect) String() string { return fmt.Sprintf("connect %s -> %s", o.From, o.To) }

// Disconnect removes exactly the named wire.
type Disconnect struct {
	From graph.PortRef
	To   graph.PortRef
}

func (o Disconnect) Apply(g *graph.Graph) error { return g.Disconnect(o.From, o.To) }

func (o Disconnect) String() string { return fmt.Sprintf("disconnect %s -> %s", o.From, o.To) }

// SetParam updates one node parameter; a NilVal deletes the key.
type SetParam struct {
	ID    graph.NodeID
	Key   string
	Value cty.Value
}

func (o SetParam) Apply(g *graph.Graph) error { return g.SetParam(o.ID, o.Key, o.Value) }

func (o SetParam) String() string { return fmt.Sprintf("set_param %s %s", o.ID, o.Key) }

// SetProgram names the output port whose frames get presented.
type SetProgram struct {
	Ref graph.PortRef
}

func (o SetProgram) Apply(g *graph.Graph) error { return g.SetProgram(o.Ref) }

func (o SetProgram) String() string { return fmt.Sprintf("set_program %s", o.Ref) }

// ClearProgram leaves the engine with nothing to present.
type ClearProgram struct{}

func (o ClearProgram) Apply(g *graph.Graph) error {
	g.ClearProgram()
	return nil
}

func (o ClearProgram) String() string { return "clear_program" }
