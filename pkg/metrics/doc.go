/*
Package metrics exposes the scheduling engine's internal state as Prometheus
metrics: event counters wired through engine.Observer (activations,
deactivations, forced idle-class picks, backshift corrections, charge-time
inflations, weight-bounds violations) and gauges polled on an interval from
engine.Engine.Snapshot (busy queues, root virtual time, entity census,
distinct weight count).

	eng := engine.New(params)
	collector := metrics.NewCollector(eng)
	eng.SetObserver(collector)
	collector.Start(15 * time.Second)
	http.Handle("/metrics", metrics.Handler())

health.go and its HealthHandler/ReadyHandler/LivenessHandler cover process
liveness and readiness independently of the Prometheus surface.
*/
package metrics
