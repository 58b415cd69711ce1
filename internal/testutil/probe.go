package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/vk/framegridgo/internal/frame"
	"github.com/vk/framegridgo/internal/graph"
	"github.com/vk/framegridgo/internal/node"
)

// ProbeModule registers a "probe" node type for system tests: it paints
// a small solid gray frame and counts how often each instance ran, so a
// test can observe scheduling decisions from inside the graph.
//
// Params: level (default 0) sets the painted byte; sleep_ms (default 0)
// simulates per-tick cost.
type ProbeModule struct {
	mu    sync.Mutex
	execs map[string]int
}

// Register implements node.Module.
func (m *ProbeModule) Register(r *node.Registry) {
	r.Register(&node.Definition{
		Type:    "probe",
		Outputs: []graph.PortSpec{{Name: "out", Type: graph.PortVideo}},
		New: func(ctx context.Context, id graph.NodeID, p node.Params) (node.Instance, error) {
			level, err := p.IntOr("level", 0)
			if err != nil {
				return nil, err
			}
			sleepMS, err := p.IntOr("sleep_ms", 0)
			if err != nil {
				return nil, err
			}
			return &probeNode{
				module: m,
				class:  frame.VideoClass(frame.FormatGray8, 4, 4),
				level:  byte(level),
				sleep:  time.Duration(sleepMS) * time.Millisecond,
			}, nil
		},
	})
}

// Executions returns how many ticks the named instance has run.
func (m *ProbeModule) Executions(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.execs[name]
}

func (m *ProbeModule) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.execs == nil {
		m.execs = make(map[string]int)
	}
	m.execs[name]++
}

type probeNode struct {
	module *ProbeModule
	class  frame.Class
	level  byte
	sleep  time.Duration
}

func (n *probeNode) Execute(ctx context.Context, ec *node.ExecContext) (node.Outputs, error) {
	if n.sleep > 0 {
		select {
		case <-time.After(n.sleep):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	n.module.record(ec.Node.Name)

	l, err := ec.Pool.Acquire(ctx, n.class)
	if err != nil {
		return nil, err
	}
	data, err := l.Writable()
	if err != nil {
		l.Release()
		return nil, err
	}
	for i := range data {
		data[i] = n.level
	}
	l.Publish()
	return node.Outputs{"out": l}, nil
}
