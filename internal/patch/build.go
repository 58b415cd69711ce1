package patch

import (
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/framegridgo/internal/graph"
	"github.com/vk/framegridgo/internal/mutate"
)

// Build turns a patch into one batch that reconstructs it on an empty
// graph: nodes, then wires, then the program.
func Build(p *Patch, label string) mutate.Batch {
	b := mutate.Batch{Label: label}
	for _, n := range p.Nodes {
		b.Add(mutate.AddNode{Spec: n.spec()})
	}
	for _, w := range p.Wires {
		b.Add(mutate.Connect{From: w.From, To: w.To})
	}
	if p.HasProgram {
		b.Add(mutate.SetProgram{Ref: p.Program})
	}
	return b
}

// Diff computes the minimal batch that morphs the snapshot into the
// patch. Nodes whose low_priority or strict flags changed are rebuilt
// (remove then add), since those are construction attributes; their
// wires and the program follow along.
func Diff(snap *graph.Snapshot, p *Patch, label string) mutate.Batch {
	b := mutate.Batch{Label: label}

	removed := make(map[graph.NodeID]bool)
	rebuilt := make(map[graph.NodeID]bool)

	// Removals first: they take their wires with them.
	for _, id := range snap.NodeIDs() {
		pn, ok := p.Node(id)
		if !ok {
			removed[id] = true
			b.Add(mutate.RemoveNode{ID: id})
			continue
		}
		rec, _ := snap.Node(id)
		if rec.LowPriority != pn.LowPriority || rec.Strict != pn.Strict {
			rebuilt[id] = true
			b.Add(mutate.RemoveNode{ID: id})
		}
	}

	// Wires that vanish between surviving nodes.
	patchWires := make(map[graph.Edge]bool, len(p.Wires))
	for _, w := range p.Wires {
		patchWires[graph.Edge{From: w.From, To: w.To}] = true
	}
	snapWires := make(map[graph.Edge]bool)
	for _, e := range snap.Edges() {
		snapWires[e] = true
		if removed[e.From.Node] || removed[e.To.Node] ||
			rebuilt[e.From.Node] || rebuilt[e.To.Node] {
			continue
		}
		if !patchWires[e] {
			b.Add(mutate.Disconnect{From: e.From, To: e.To})
		}
	}

	// New and rebuilt nodes.
	for _, n := range p.Nodes {
		id := n.ID()
		if _, ok := snap.Node(id); ok && !rebuilt[id] {
			continue
		}
		b.Add(mutate.AddNode{Spec: n.spec()})
	}

	// New wires, plus re-wires into rebuilt nodes.
	for _, w := range p.Wires {
		e := graph.Edge{From: w.From, To: w.To}
		if snapWires[e] && !rebuilt[e.From.Node] && !rebuilt[e.To.Node] {
			continue
		}
		b.Add(mutate.Connect{From: w.From, To: w.To})
	}

	// Param deltas on surviving nodes; fresh and rebuilt nodes carry
	// their params on the AddNode spec.
	for _, n := range p.Nodes {
		id := n.ID()
		if rebuilt[id] {
			continue
		}
		rec, ok := snap.Node(id)
		if !ok {
			continue
		}
		for _, key := range sortedKeys(n.Params) {
			val := n.Params[key]
			if old, has := rec.Params[key]; !has || !old.RawEquals(val) {
				b.Add(mutate.SetParam{ID: id, Key: key, Value: val})
			}
		}
		for _, key := range sortedKeys(rec.Params) {
			if _, has := n.Params[key]; !has {
				b.Add(mutate.SetParam{ID: id, Key: key, Value: cty.NilVal})
			}
		}
	}

	// Program last. Rebuilding the program node cleared it in passing.
	cur, has := snap.Program()
	switch {
	case p.HasProgram && (!has || cur != p.Program || rebuilt[p.Program.Node]):
		b.Add(mutate.SetProgram{Ref: p.Program})
	case !p.HasProgram && has:
		b.Add(mutate.ClearProgram{})
	}

	return b
}

func sortedKeys(m map[string]cty.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
