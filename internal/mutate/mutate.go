package mutate

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/vk/framegridgo/internal/ctxlog"
	"github.com/vk/framegridgo/internal/graph"
)

// EditID identifies one submitted batch.
type EditID = uuid.UUID

// Result is the fate of one batch, delivered on its channel at the
// boundary that decided it.
type Result struct {
	ID EditID
	// Version is the snapshot version the batch landed in, 0 when
	// rejected.
	Version uint64
	// Err is the validation failure that rejected the batch.
	Err error
}

type submission struct {
	id    EditID
	batch Batch
	ch    chan Result
}

// retiree is a removed node waiting until no borrowed snapshot that
// still contains it is outstanding.
type retiree struct {
	id graph.NodeID
	// barrier is the first snapshot version without the node.
	barrier uint64
}

// Manager is the single writer of the working graph. SubmitBatch and
// Borrow are safe from any goroutine; ApplyPending and CollectRetired
// belong to the engine loop alone.
type Manager struct {
	working *graph.Graph

	mu       sync.Mutex
	current  *graph.Snapshot
	queue    []*submission
	borrows  map[uint64]int
	retirees []retiree
}

// New creates a manager over an empty working graph whose node types
// resolve through the catalog. The baseline snapshot is empty: nothing
// presents until a first batch lands.
func New(catalog graph.Catalog) *Manager {
	g := graph.New(catalog)
	return &Manager{
		working: g,
		current: g.Snapshot(),
		borrows: make(map[uint64]int),
	}
}

// SubmitBatch queues a batch for the next frame boundary and returns
// immediately. The result channel is buffered; reading it is optional.
func (m *Manager) SubmitBatch(batch Batch) (EditID, <-chan Result) {
	sub := &submission{id: uuid.New(), batch: batch, ch: make(chan Result, 1)}
	m.mu.Lock()
	m.queue = append(m.queue, sub)
	m.mu.Unlock()
	return sub.id, sub.ch
}

// Pending reports how many batches wait for the next boundary.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// ApplyPending folds every queued batch into the working graph. Each
// batch is validated against a trial clone and rejected as a unit on
// its first failing operation; everything accepted at this boundary
// becomes exactly one new snapshot version. The engine calls this only
// between passes.
func (m *Manager) ApplyPending(ctx context.Context) (applied, rejected int) {
	logger := ctxlog.FromContext(ctx)

	m.mu.Lock()
	pending := m.queue
	m.queue = nil
	old := m.current
	m.mu.Unlock()

	if len(pending) == 0 {
		return 0, 0
	}

	accepted := make([]*submission, 0, len(pending))
	for _, sub := range pending {
		trial := m.working.Clone()
		if err := sub.batch.apply(trial); err != nil {
			rejected++
			logger.Warn("Edit batch rejected.",
				"editID", sub.id, "label", sub.batch.Label, "error", err)
			sub.ch <- Result{ID: sub.id, Err: err}
			continue
		}
		m.working = trial
		accepted = append(accepted, sub)
		applied++
	}

	if applied == 0 {
		return applied, rejected
	}

	next := m.working.Snapshot()
	for _, sub := range accepted {
		sub.ch <- Result{ID: sub.id, Version: next.Version()}
	}

	removed := removedNodes(old, next)

	m.mu.Lock()
	m.current = next
	for _, id := range removed {
		m.retirees = append(m.retirees, retiree{id: id, barrier: next.Version()})
	}
	m.mu.Unlock()

	logger.Info("Edit boundary applied.",
		"version", next.Version(), "applied", applied, "rejected", rejected,
		"nodes", next.Len(), "removed", len(removed))
	return applied, rejected
}

// Borrow hands out the current snapshot and a release func. The
// snapshot stays consistent for as long as the borrow is held; release
// is idempotent.
func (m *Manager) Borrow() (*graph.Snapshot, func()) {
	m.mu.Lock()
	snap := m.current
	v := snap.Version()
	m.borrows[v]++
	m.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.borrows[v]--; m.borrows[v] <= 0 {
				delete(m.borrows, v)
			}
		})
	}
	return snap, release
}

// Snapshot returns the current snapshot without borrow accounting, for
// read-only callers like editors and status endpoints.
func (m *Manager) Snapshot() *graph.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// CollectRetired drains the nodes whose records left the graph and are
// no longer visible to any outstanding borrow. The engine feeds them to
// the scheduler for instance teardown.
func (m *Manager) CollectRetired() []graph.NodeID {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldest := uint64(math.MaxUint64)
	for v := range m.borrows {
		if v < oldest {
			oldest = v
		}
	}

	var safe []graph.NodeID
	keep := m.retirees[:0]
	for _, r := range m.retirees {
		if r.barrier <= oldest {
			safe = append(safe, r.id)
		} else {
			keep = append(keep, r)
		}
	}
	m.retirees = keep

	sort.Slice(safe, func(i, j int) bool { return safe[i] < safe[j] })
	return safe
}

func removedNodes(old, next *graph.Snapshot) []graph.NodeID {
	var removed []graph.NodeID
	for _, id := range old.NodeIDs() {
		if _, ok := next.Node(id); !ok {
			removed = append(removed, id)
		}
	}
	return removed
}
