package sched

import (
	"time"

	"github.com/vk/framegridgo/internal/graph"
)

// defaultSeedCost is the assumed cost of a node that has never run.
const defaultSeedCost = 2 * time.Millisecond

// costModel tracks a moving estimate of each node's execution time. It is
// touched only from the pass goroutine, so it needs no locking.
type costModel struct {
	byNode map[graph.NodeID]time.Duration
	seed   time.Duration
}

func newCostModel(seed time.Duration) *costModel {
	if seed <= 0 {
		seed = defaultSeedCost
	}
	return &costModel{byNode: make(map[graph.NodeID]time.Duration), seed: seed}
}

// observe folds one measured execution into the node's estimate with an
// exponential moving average, weight 1/5. The first observation replaces
// the seed outright.
func (c *costModel) observe(id graph.NodeID, d time.Duration) {
	cur, ok := c.byNode[id]
	if !ok {
		c.byNode[id] = d
		return
	}
	c.byNode[id] = cur + (d-cur)/5
}

// cost returns the node's current estimate.
func (c *costModel) cost(id graph.NodeID) time.Duration {
	if d, ok := c.byNode[id]; ok {
		return d
	}
	return c.seed
}

// forget drops a retired node's history.
func (c *costModel) forget(id graph.NodeID) {
	delete(c.byNode, id)
}

// estimate projects the wall time of the remaining levels on the given
// worker count, both as planned (full) and with low-priority nodes shed
// (essential). The program producer counts as essential regardless of its
// flag, matching what dispatch will actually run. A level's cost is its
// work divided across workers, floored by its single most expensive node.
func (c *costModel) estimate(snap *graph.Snapshot, levels [][]graph.NodeID, workers int) (full, essential time.Duration) {
	if workers < 1 {
		workers = 1
	}
	var progNode graph.NodeID
	if ref, ok := snap.Program(); ok {
		progNode = ref.Node
	}
	for _, level := range levels {
		var sumFull, sumEss, maxFull, maxEss time.Duration
		for _, id := range level {
			d := c.cost(id)
			sumFull += d
			if d > maxFull {
				maxFull = d
			}
			if rec, ok := snap.Node(id); ok && rec.LowPriority && id != progNode {
				continue
			}
			sumEss += d
			if d > maxEss {
				maxEss = d
			}
		}
		full += levelCost(sumFull, maxFull, workers)
		essential += levelCost(sumEss, maxEss, workers)
	}
	return full, essential
}

func levelCost(sum, max time.Duration, workers int) time.Duration {
	spread := (sum + time.Duration(workers) - 1) / time.Duration(workers)
	if spread < max {
		return max
	}
	return spread
}
