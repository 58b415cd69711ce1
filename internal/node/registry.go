package node

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/vk/framegridgo/internal/graph"
)

// Module is the interface every node module implements to plug its
// definitions into an application instance.
type Module interface {
	Register(r *Registry)
}

// Registry maps node type names to their definitions. It is populated at
// startup and read-only afterwards, so lookups need no locking.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds a definition. Definitions are wired in code at startup;
// a malformed or duplicate one is a programming error and panics.
func (r *Registry) Register(def *Definition) {
	if def == nil || def.Type == "" {
		panic("node: register of unnamed definition")
	}
	if def.New == nil {
		panic(fmt.Sprintf("node: definition %q has no constructor", def.Type))
	}
	if _, exists := r.defs[def.Type]; exists {
		panic(fmt.Sprintf("node: definition %q already registered", def.Type))
	}
	checkPorts(def.Type, "input", def.Inputs)
	checkPorts(def.Type, "output", def.Outputs)

	slog.Debug("Registering node type.", "type", def.Type)
	r.defs[def.Type] = def
}

func checkPorts(nodeType, side string, ports []graph.PortSpec) {
	seen := make(map[string]bool, len(ports))
	for _, p := range ports {
		if p.Name == "" {
			panic(fmt.Sprintf("node: definition %q has unnamed %s port", nodeType, side))
		}
		if seen[p.Name] {
			panic(fmt.Sprintf("node: definition %q repeats %s port %q", nodeType, side, p.Name))
		}
		seen[p.Name] = true
	}
}

// Lookup returns the definition for a type name.
func (r *Registry) Lookup(nodeType string) (*Definition, bool) {
	def, ok := r.defs[nodeType]
	return def, ok
}

// Types returns all registered type names in lexical order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.defs))
	for t := range r.defs {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Ports implements graph.Catalog, letting the graph validate wires
// against registered definitions.
func (r *Registry) Ports(nodeType string) (inputs, outputs []graph.PortSpec, err error) {
	def, ok := r.defs[nodeType]
	if !ok {
		return nil, nil, fmt.Errorf("node type %q not registered", nodeType)
	}
	return def.Inputs, def.Outputs, nil
}
