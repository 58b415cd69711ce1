package patch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/framegridgo/internal/ctxlog"
	"github.com/vk/framegridgo/internal/graph"
)

// Node is one declared node instance.
type Node struct {
	Type        string
	Name        string
	Params      map[string]cty.Value
	LowPriority bool
	Strict      bool
}

// ID returns the node's graph identity.
func (n *Node) ID() graph.NodeID { return graph.MakeNodeID(n.Type, n.Name) }

func (n *Node) spec() graph.NodeSpec {
	return graph.NodeSpec{
		Type:        n.Type,
		Name:        n.Name,
		Params:      n.Params,
		LowPriority: n.LowPriority,
		Strict:      n.Strict,
	}
}

// Wire is one connection between two ports.
type Wire struct {
	From graph.PortRef
	To   graph.PortRef
}

// Patch is a complete graph description assembled from one or more HCL
// files.
type Patch struct {
	Nodes []*Node
	Wires []Wire

	// Program is the output to present. HasProgram is false when the
	// patch deliberately leaves the engine dark.
	Program    graph.PortRef
	HasProgram bool
}

// Node finds a declared node by ID.
func (p *Patch) Node(id graph.NodeID) (*Node, bool) {
	for _, n := range p.Nodes {
		if n.ID() == id {
			return n, true
		}
	}
	return nil, false
}

// Loader parses patch files and validates node types against the
// catalog up front, so a typo fails at load instead of at the frame
// boundary.
type Loader struct {
	catalog graph.Catalog
}

// NewLoader creates a patch loader over the given catalog.
func NewLoader(catalog graph.Catalog) *Loader {
	return &Loader{catalog: catalog}
}

// Load parses every .hcl file under the given paths into one merged
// patch. Files may split nodes and wires freely; the program may be set
// once across all of them.
func (l *Loader) Load(ctx context.Context, paths ...string) (*Patch, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Patch loader started.", "path_count", len(paths))

	files, err := findPatchFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no patch files under %v", paths)
	}
	logger.Debug("Discovered patch files.", "count", len(files))

	parser := hclparse.NewParser()
	p := &Patch{}
	declared := make(map[graph.NodeID]string)
	var programRaw, programSrc string

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse patch file %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode patch file %s: %w", file, diags)
		}

		for _, nb := range root.Nodes {
			n, err := l.translateNode(nb)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			if prev, dup := declared[n.ID()]; dup {
				return nil, fmt.Errorf("%s: node %s already declared in %s", file, n.ID(), prev)
			}
			declared[n.ID()] = file
			p.Nodes = append(p.Nodes, n)
		}

		for _, wb := range root.Wires {
			w, err := translateWire(wb)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			p.Wires = append(p.Wires, w)
		}

		if root.Program != nil {
			if programSrc != "" {
				return nil, fmt.Errorf("%s: program already set in %s", file, programSrc)
			}
			programRaw, programSrc = *root.Program, file
		}
	}

	if programSrc != "" {
		ref, err := p.resolveProgram(l.catalog, programRaw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", programSrc, err)
		}
		p.Program = ref
		p.HasProgram = true
	}

	logger.Debug("Patch loading complete.",
		"nodes", len(p.Nodes), "wires", len(p.Wires), "program", p.HasProgram)
	return p, nil
}

func (l *Loader) translateNode(nb *nodeBlock) (*Node, error) {
	if _, _, err := l.catalog.Ports(nb.Type); err != nil {
		return nil, fmt.Errorf("node %q %q: %w", nb.Type, nb.Name, err)
	}
	params, err := decodeParams(nb.Params)
	if err != nil {
		return nil, fmt.Errorf("node %q %q: %w", nb.Type, nb.Name, err)
	}
	return &Node{
		Type:        nb.Type,
		Name:        nb.Name,
		Params:      params,
		LowPriority: nb.LowPriority,
		Strict:      nb.Strict,
	}, nil
}

// decodeParams evaluates a params body with no eval context: patch
// parameters are literals, not expressions over other nodes.
func decodeParams(pb *paramsBlock) (map[string]cty.Value, error) {
	if pb == nil {
		return nil, nil
	}
	attrs, diags := pb.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("params: %w", diags)
	}
	params := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("param %q: %w", name, diags)
		}
		params[name] = val
	}
	return params, nil
}

func translateWire(wb *wireBlock) (Wire, error) {
	from, err := graph.ParsePortRef(wb.From)
	if err != nil {
		return Wire{}, fmt.Errorf("wire from: %w", err)
	}
	to, err := graph.ParsePortRef(wb.To)
	if err != nil {
		return Wire{}, fmt.Errorf("wire to: %w", err)
	}
	return Wire{From: from, To: to}, nil
}

// resolveProgram accepts "type.name:port", or bare "type.name" which
// picks the node's first declared video output.
func (p *Patch) resolveProgram(catalog graph.Catalog, raw string) (graph.PortRef, error) {
	if strings.Contains(raw, ":") {
		ref, err := graph.ParsePortRef(raw)
		if err != nil {
			return graph.PortRef{}, fmt.Errorf("program %q: %w", raw, err)
		}
		return ref, nil
	}

	id := graph.NodeID(raw)
	n, ok := p.Node(id)
	if !ok {
		return graph.PortRef{}, fmt.Errorf("program %q: node not declared in patch", raw)
	}
	_, outputs, err := catalog.Ports(n.Type)
	if err != nil {
		return graph.PortRef{}, fmt.Errorf("program %q: %w", raw, err)
	}
	for _, spec := range outputs {
		if spec.Type == graph.PortVideo {
			return graph.PortRef{Node: id, Port: spec.Name}, nil
		}
	}
	return graph.PortRef{}, fmt.Errorf("program %q: node type %q has no video output", raw, n.Type)
}

// findPatchFiles walks the given paths and returns every .hcl file once,
// in a stable order.
func findPatchFiles(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, dup := seen[p]; !dup {
			files = append(files, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if !info.IsDir() {
			if filepath.Ext(path) == ".hcl" {
				add(path)
			}
			continue
		}
		err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
