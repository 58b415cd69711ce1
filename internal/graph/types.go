package graph

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/framegridgo/internal/frame"
)

// NodeID uniquely identifies a node instance as "<type>.<name>".
type NodeID string

// MakeNodeID builds the canonical instance ID for a node type and name.
func MakeNodeID(nodeType, name string) NodeID {
	return NodeID(nodeType + "." + name)
}

// PortType classifies what flows through a port.
type PortType uint8

const (
	// PortVideo carries pixel buffers of a fixed class per wire.
	PortVideo PortType = iota
	// PortScalar carries one float64 control sample per tick.
	PortScalar
	// PortEvent carries a list of discrete triggers per tick.
	PortEvent
)

func (p PortType) String() string {
	switch p {
	case PortVideo:
		return "video"
	case PortScalar:
		return "scalar"
	case PortEvent:
		return "event"
	default:
		return fmt.Sprintf("port(%d)", uint8(p))
	}
}

// Class returns the buffer class for signal ports. Video ports have no
// fixed class; their geometry is decided by the producing node.
func (p PortType) Class() (frame.Class, bool) {
	switch p {
	case PortScalar:
		return frame.ScalarClass(), true
	case PortEvent:
		return frame.EventClass(), true
	default:
		return frame.Class{}, false
	}
}

// PortSpec declares one port on a node type.
type PortSpec struct {
	Name string
	Type PortType

	// Optional marks an input the node can run without. Required inputs
	// left unwired keep the node from executing at all.
	Optional bool
}

// PortRef addresses one port on one node instance, e.g. "mix.program:a".
type PortRef struct {
	Node NodeID
	Port string
}

func (r PortRef) String() string {
	return string(r.Node) + ":" + r.Port
}

// Zero reports whether the ref is the unset value.
func (r PortRef) Zero() bool {
	return r.Node == "" && r.Port == ""
}

// ParsePortRef parses the "<type>.<name>:<port>" form produced by
// PortRef.String and used in patch files.
func ParsePortRef(s string) (PortRef, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return PortRef{}, fmt.Errorf("parse port ref %q: %w", s, ErrInvalidSpec)
	}
	node, port := s[:i], s[i+1:]
	if !strings.Contains(node, ".") {
		return PortRef{}, fmt.Errorf("parse port ref %q: missing node type: %w", s, ErrInvalidSpec)
	}
	return PortRef{Node: NodeID(node), Port: port}, nil
}

// Edge is one wire from an output port to an input port.
type Edge struct {
	From PortRef
	To   PortRef
}

func (e Edge) String() string {
	return e.From.String() + " -> " + e.To.String()
}

// NodeSpec is the request to add a node instance.
type NodeSpec struct {
	// Type names a registered node type; the Catalog resolves its ports.
	Type string
	// Name distinguishes instances of the same type.
	Name string
	// Params are the node's construction parameters, HCL-typed.
	Params map[string]cty.Value

	// LowPriority marks the node skippable when a frame budget is tight.
	LowPriority bool
	// Strict aborts the whole pass when this node fails, instead of
	// letting downstream consumers fall back to its last good output.
	Strict bool
}

// Node is the immutable record of one instance in the graph. Records are
// shared between the working graph and all snapshots that contain them;
// edits replace the record rather than mutating it.
type Node struct {
	ID   NodeID
	Type string
	Name string

	Inputs  []PortSpec
	Outputs []PortSpec

	Params map[string]cty.Value

	LowPriority bool
	Strict      bool
}

// Input returns the named input port spec.
func (n *Node) Input(name string) (PortSpec, bool) {
	for _, p := range n.Inputs {
		if p.Name == name {
			return p, true
		}
	}
	return PortSpec{}, false
}

// Output returns the named output port spec.
func (n *Node) Output(name string) (PortSpec, bool) {
	for _, p := range n.Outputs {
		if p.Name == name {
			return p, true
		}
	}
	return PortSpec{}, false
}

// Param returns the cty value for a key, or cty.NilVal when absent.
func (n *Node) Param(key string) cty.Value {
	v, ok := n.Params[key]
	if !ok {
		return cty.NilVal
	}
	return v
}

// Catalog resolves node type names to their declared ports. The node
// registry implements it; the graph stays ignorant of node behaviour.
type Catalog interface {
	Ports(nodeType string) (inputs, outputs []PortSpec, err error)
}

func validLabel(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}
