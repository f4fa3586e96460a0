// Package workload drives an engine.Engine with a synthetic stream of I/O
// requests: a mutex-guarded ticking goroutine wrapped around calls into the
// core. It exists for virtqctl simulate and for tests that want realistic
// traffic without a real block device underneath.
package workload

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/virtq/bwf2q/internal/engine"
	"github.com/virtq/bwf2q/internal/entity"
	"github.com/virtq/bwf2q/pkg/log"
	"github.com/virtq/bwf2q/pkg/metrics"
)

// Request is one unit of synthetic I/O queued against a leaf.
type Request struct {
	ID     string
	LeafID string
	Bytes  uint64
}

// Generator submits requests to named leaves and drains them through the
// engine, maintaining per-leaf FIFO backlogs the way a real block layer
// would maintain per-queue request lists.
type Generator struct {
	eng    *engine.Engine
	leaves map[string]*entity.Entity
	logger zerolog.Logger

	mu      sync.Mutex
	backlog map[string][]Request
	stopCh  chan struct{}
}

// NewGenerator wraps eng and the leaves attached to it (as returned by
// config.Build) for request submission and dispatch.
func NewGenerator(eng *engine.Engine, leaves map[string]*entity.Entity) *Generator {
	return &Generator{
		eng:     eng,
		leaves:  leaves,
		logger:  log.WithComponent("workload"),
		backlog: make(map[string][]Request),
		stopCh:  make(chan struct{}),
	}
}

// Submit enqueues a request of bytes against leafID, activating the leaf
// in the engine if it was previously idle.
func (g *Generator) Submit(leafID string, bytes uint64) (Request, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	leaf, ok := g.leaves[leafID]
	if !ok {
		return Request{}, fmt.Errorf("unknown leaf: %s", leafID)
	}

	req := Request{ID: uuid.New().String(), LeafID: leafID, Bytes: bytes}
	wasEmpty := len(g.backlog[leafID]) == 0
	g.backlog[leafID] = append(g.backlog[leafID], req)

	if wasEmpty && !leaf.OnST {
		g.eng.AddBusy(leaf, false)
	}

	g.logger.Debug().
		Str("request_id", req.ID).
		Str("leaf", leafID).
		Uint64("bytes", bytes).
		Msg("request submitted")
	return req, nil
}

// DispatchNext selects the next leaf via the engine, serves its oldest
// queued request, and deactivates the leaf if its backlog has drained.
// Returns the zero Request and false if no leaf is currently busy.
func (g *Generator) DispatchNext() (Request, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	timer := metrics.NewTimer()
	leaf := g.eng.GetNextQueue()
	timer.ObserveDuration(metrics.DispatchLatency)
	if leaf == nil {
		return Request{}, false
	}

	queue := g.backlog[leaf.ID]
	if len(queue) == 0 {
		// Selected leaf has nothing left queued locally; treat it as
		// served-out immediately so the engine stays consistent. DelBusy
		// reads leaf's still-cached in-service state to do this correctly,
		// so nothing else should touch that cache first.
		g.eng.DelBusy(leaf, false)
		return Request{}, false
	}

	req := queue[0]
	queue = queue[1:]
	g.backlog[leaf.ID] = queue

	g.eng.Served(leaf, req.Bytes)
	metrics.DispatchedBytesTotal.Add(float64(req.Bytes))

	if len(queue) == 0 {
		delete(g.backlog, leaf.ID)
		g.eng.DelBusy(leaf, false)
	} else {
		// Still has requests queued: requeue onto the active tree with a
		// fresh budget slot so other busy leaves get a turn in between.
		g.eng.ActivateEntity(leaf, false)
	}

	g.logger.Debug().
		Str("request_id", req.ID).
		Str("leaf", leaf.ID).
		Uint64("bytes", req.Bytes).
		Msg("request dispatched")
	return req, true
}

// Start runs a dispatch loop on interval until Stop is called, draining
// one request per tick.
func (g *Generator) Start(interval time.Duration) {
	go g.run(interval)
}

func (g *Generator) run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.DispatchNext()
		case <-g.stopCh:
			return
		}
	}
}

// Stop ends the dispatch loop started by Start.
func (g *Generator) Stop() {
	close(g.stopCh)
}

// BacklogLen reports how many requests are queued for leafID, mainly for
// tests and the simulate command's summary output.
func (g *Generator) BacklogLen(leafID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.backlog[leafID])
}
