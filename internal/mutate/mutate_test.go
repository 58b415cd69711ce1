package mutate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/framegridgo/internal/ctxlog"
	"github.com/vk/framegridgo/internal/graph"
)

type testCatalog struct{}

func (testCatalog) Ports(nodeType string) (in, out []graph.PortSpec, err error) {
	switch nodeType {
	case "emit":
		return nil, []graph.PortSpec{{Name: "out", Type: graph.PortVideo}}, nil
	case "relay":
		return []graph.PortSpec{{Name: "in", Type: graph.PortVideo}},
			[]graph.PortSpec{{Name: "out", Type: graph.PortVideo}}, nil
	}
	return nil, nil, fmt.Errorf("no such type %q", nodeType)
}

func testCtx() context.Context {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ctxlog.WithLogger(context.Background(), logger)
}

func mustResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	default:
		t.Fatal("no result delivered")
		return Result{}
	}
}

func TestApplyPending_FoldsBatchesIntoOneVersion(t *testing.T) {
	m := New(testCatalog{})
	base := m.Snapshot().Version()

	_, ch1 := m.SubmitBatch(Batch{Ops: []Op{
		AddNode{Spec: graph.NodeSpec{Type: "emit", Name: "src"}},
	}})
	_, ch2 := m.SubmitBatch(Batch{Ops: []Op{
		AddNode{Spec: graph.NodeSpec{Type: "relay", Name: "main"}},
		Connect{
			From: graph.PortRef{Node: "emit.src", Port: "out"},
			To:   graph.PortRef{Node: "relay.main", Port: "in"},
		},
		SetProgram{Ref: graph.PortRef{Node: "relay.main", Port: "out"}},
	}})
	require.Equal(t, 2, m.Pending())

	applied, rejected := m.ApplyPending(testCtx())
	assert.Equal(t, 2, applied)
	assert.Zero(t, rejected)
	assert.Zero(t, m.Pending())

	snap := m.Snapshot()
	assert.Equal(t, base+1, snap.Version(), "one boundary, one version")
	assert.Equal(t, 2, snap.Len())
	_, ok := snap.Program()
	assert.True(t, ok)

	res1 := mustResult(t, ch1)
	res2 := mustResult(t, ch2)
	require.NoError(t, res1.Err)
	require.NoError(t, res2.Err)
	assert.Equal(t, snap.Version(), res1.Version)
	assert.Equal(t, snap.Version(), res2.Version)
}

func TestApplyPending_RejectsBatchAsUnit(t *testing.T) {
	m := New(testCatalog{})

	_, bad := m.SubmitBatch(Batch{Label: "bad", Ops: []Op{
		AddNode{Spec: graph.NodeSpec{Type: "emit", Name: "src"}},
		Connect{
			From: graph.PortRef{Node: "emit.src", Port: "nope"},
			To:   graph.PortRef{Node: "emit.src", Port: "in"},
		},
	}})
	_, good := m.SubmitBatch(Batch{Label: "good", Ops: []Op{
		AddNode{Spec: graph.NodeSpec{Type: "emit", Name: "other"}},
	}})

	applied, rejected := m.ApplyPending(testCtx())
	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, rejected)

	res := mustResult(t, bad)
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, graph.ErrUnknownPort)
	assert.Zero(t, res.Version)

	// The rejected batch left no trace, the good one landed.
	snap := m.Snapshot()
	_, ok := snap.Node("emit.src")
	assert.False(t, ok, "rejected batch must not partially apply")
	_, ok = snap.Node("emit.other")
	assert.True(t, ok)
	require.NoError(t, mustResult(t, good).Err)
}

func TestApplyPending_WouldCycleKeepsGraph(t *testing.T) {
	m := New(testCatalog{})
	m.SubmitBatch(Batch{Ops: []Op{
		AddNode{Spec: graph.NodeSpec{Type: "relay", Name: "a"}},
		AddNode{Spec: graph.NodeSpec{Type: "relay", Name: "b"}},
		Connect{
			From: graph.PortRef{Node: "relay.a", Port: "out"},
			To:   graph.PortRef{Node: "relay.b", Port: "in"},
		},
	}})
	m.ApplyPending(testCtx())
	before := m.Snapshot()

	_, ch := m.SubmitBatch(Batch{Ops: []Op{
		Connect{
			From: graph.PortRef{Node: "relay.b", Port: "out"},
			To:   graph.PortRef{Node: "relay.a", Port: "in"},
		},
	}})
	applied, rejected := m.ApplyPending(testCtx())
	assert.Zero(t, applied)
	assert.Equal(t, 1, rejected)

	res := mustResult(t, ch)
	assert.ErrorIs(t, res.Err, graph.ErrWouldCycle)
	assert.Same(t, before, m.Snapshot(), "rejected boundary produces no new snapshot")
}

func TestApplyPending_EmptyQueueIsANoop(t *testing.T) {
	m := New(testCatalog{})
	before := m.Snapshot()

	applied, rejected := m.ApplyPending(testCtx())
	assert.Zero(t, applied)
	assert.Zero(t, rejected)
	assert.Same(t, before, m.Snapshot())
}

func TestSubmitBatch_NeverBlocksOnUnreadResults(t *testing.T) {
	m := New(testCatalog{})

	// Nobody reads these channels; delivery must still not block the
	// boundary.
	m.SubmitBatch(Batch{Ops: []Op{AddNode{Spec: graph.NodeSpec{Type: "emit", Name: "one"}}}})
	m.SubmitBatch(Batch{Ops: []Op{AddNode{Spec: graph.NodeSpec{Type: "emit", Name: "two"}}}})

	applied, _ := m.ApplyPending(testCtx())
	assert.Equal(t, 2, applied)
	assert.Equal(t, 2, m.Snapshot().Len())
}

func TestBorrow_SnapshotIsolation(t *testing.T) {
	m := New(testCatalog{})
	m.SubmitBatch(Batch{Ops: []Op{AddNode{Spec: graph.NodeSpec{Type: "emit", Name: "src"}}}})
	m.ApplyPending(testCtx())

	snap, release := m.Borrow()
	defer release()

	m.SubmitBatch(Batch{Ops: []Op{RemoveNode{ID: "emit.src"}}})
	m.ApplyPending(testCtx())

	// The borrowed snapshot still sees the node; the current one does not.
	_, ok := snap.Node("emit.src")
	assert.True(t, ok)
	_, ok = m.Snapshot().Node("emit.src")
	assert.False(t, ok)
}

func TestCollectRetired_WaitsForOutstandingBorrows(t *testing.T) {
	m := New(testCatalog{})
	m.SubmitBatch(Batch{Ops: []Op{AddNode{Spec: graph.NodeSpec{Type: "emit", Name: "src"}}}})
	m.ApplyPending(testCtx())

	_, release := m.Borrow()

	m.SubmitBatch(Batch{Ops: []Op{RemoveNode{ID: "emit.src"}}})
	m.ApplyPending(testCtx())

	assert.Empty(t, m.CollectRetired(), "a borrow of the old snapshot is still out")

	release()
	assert.Equal(t, []graph.NodeID{"emit.src"}, m.CollectRetired())
	assert.Empty(t, m.CollectRetired(), "retirees drain exactly once")
}

func TestBorrow_ReleaseIsIdempotent(t *testing.T) {
	m := New(testCatalog{})
	m.SubmitBatch(Batch{Ops: []Op{AddNode{Spec: graph.NodeSpec{Type: "emit", Name: "src"}}}})
	m.ApplyPending(testCtx())

	_, releaseA := m.Borrow()
	snapB, releaseB := m.Borrow()
	releaseA()
	releaseA()

	m.SubmitBatch(Batch{Ops: []Op{RemoveNode{ID: "emit.src"}}})
	m.ApplyPending(testCtx())

	// The double release must not have freed B's borrow.
	require.NotNil(t, snapB)
	assert.Empty(t, m.CollectRetired())

	releaseB()
	assert.Equal(t, []graph.NodeID{"emit.src"}, m.CollectRetired())
}

func TestSetParam_FlowsIntoNextSnapshot(t *testing.T) {
	m := New(testCatalog{})
	m.SubmitBatch(Batch{Ops: []Op{AddNode{Spec: graph.NodeSpec{Type: "emit", Name: "src"}}}})
	m.ApplyPending(testCtx())

	m.SubmitBatch(Batch{Ops: []Op{SetParam{ID: "emit.src", Key: "rate", Value: cty.NumberIntVal(60)}}})
	m.ApplyPending(testCtx())

	rec, ok := m.Snapshot().Node("emit.src")
	require.True(t, ok)
	assert.True(t, cty.NumberIntVal(60).RawEquals(rec.Param("rate")))
}

func TestOpStrings(t *testing.T) {
	testCases := []struct {
		op   Op
		want string
	}{
		{AddNode{Spec: graph.NodeSpec{Type: "emit", Name: "src"}}, "add_node emit.src"},
		{RemoveNode{ID: "emit.src"}, "remove_node emit.src"},
		{Connect{From: graph.PortRef{Node: "a.b", Port: "out"}, To: graph.PortRef{Node: "c.d", Port: "in"}}, "connect a.b:out -> c.d:in"},
		{Disconnect{From: graph.PortRef{Node: "a.b", Port: "out"}, To: graph.PortRef{Node: "c.d", Port: "in"}}, "disconnect a.b:out -> c.d:in"},
		{SetParam{ID: "a.b", Key: "mix"}, "set_param a.b mix"},
		{SetProgram{Ref: graph.PortRef{Node: "a.b", Port: "out"}}, "set_program a.b:out"},
		{ClearProgram{}, "clear_program"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, tc.op.String())
	}
}

func TestApplyPending_UnknownTypeRejected(t *testing.T) {
	m := New(testCatalog{})
	_, ch := m.SubmitBatch(Batch{Ops: []Op{
		AddNode{Spec: graph.NodeSpec{Type: "warp", Name: "x"}},
	}})
	m.ApplyPending(testCtx())

	res := mustResult(t, ch)
	assert.True(t, errors.Is(res.Err, graph.ErrUnknownType))
}
