package metrics

import (
	"time"

	"github.com/virtq/bwf2q/internal/engine"
)

// Collector bridges an engine.Engine to Prometheus two ways: it implements
// engine.Observer directly, so the event counters update inline with every
// AddBusy/DelBusy/ChargeTime call, and it separately ticks on an interval to
// poll the engine's gauges (busy queues, virtual time, entity census), which
// have no natural "event" to hook.
type Collector struct {
	eng    *engine.Engine
	stopCh chan struct{}
}

// NewCollector creates a collector over eng. Callers are expected to also
// call eng.SetObserver(collector) so the event counters are wired.
func NewCollector(eng *engine.Engine) *Collector {
	return &Collector{
		eng:    eng,
		stopCh: make(chan struct{}),
	}
}

// Start begins polling the engine's gauge metrics every interval, in
// addition to the inline counter updates from the Observer methods.
func (c *Collector) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the polling goroutine. The Observer hooks keep working until
// the caller stops sending engine calls.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	snap := c.eng.Snapshot()

	BusyQueuesTotal.Set(float64(snap.BusyQueues))
	RootVirtualTime.Set(float64(snap.RootVirtualTime))
	DistinctWeightsTotal.Set(float64(snap.DistinctWeights))

	for kind, byTree := range snap.EntitiesByKind {
		for tree, count := range byTree {
			EntitiesByKind.WithLabelValues(kind, tree).Set(float64(count))
		}
	}
}

// OnActivate implements engine.Observer.
func (c *Collector) OnActivate(entityID string) {
	ActivationsTotal.Inc()
}

// OnDeactivate implements engine.Observer.
func (c *Collector) OnDeactivate(entityID string) {
	DeactivationsTotal.Inc()
}

// OnForcedIdleClassPick implements engine.Observer.
func (c *Collector) OnForcedIdleClassPick() {
	ForcedIdleClassPicksTotal.Inc()
}

// OnBackshiftCorrection implements engine.Observer.
func (c *Collector) OnBackshiftCorrection() {
	BackshiftCorrectionsTotal.Inc()
}

// OnChargeTimeInflation implements engine.Observer.
func (c *Collector) OnChargeTimeInflation() {
	ChargeTimeInflationsTotal.Inc()
}

// OnWeightBoundsViolation implements engine.Observer.
func (c *Collector) OnWeightBoundsViolation() {
	WeightBoundsViolationsTotal.Inc()
}
