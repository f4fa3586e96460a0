package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/virtq/bwf2q/internal/engine"
	"github.com/virtq/bwf2q/pkg/config"
	"github.com/virtq/bwf2q/pkg/log"
	"github.com/virtq/bwf2q/pkg/metrics"
	"github.com/virtq/bwf2q/pkg/workload"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a hierarchy continuously, exposing metrics and health endpoints",
	Long: `Serve loads a hierarchy, runs the workload generator's dispatch
loop against it, and exposes Prometheus metrics plus health/ready/live
endpoints until interrupted. Serve submits no requests to the generator,
so the dispatch loop finds no backlog to serve.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("file", "f", "", "YAML hierarchy file to serve (required)")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the metrics/health HTTP server")
	serveCmd.Flags().Duration("dispatch-interval", 10*time.Millisecond, "Interval between dispatch ticks")
	serveCmd.Flags().Duration("collect-interval", 5*time.Second, "Interval between metrics gauge polls")
	_ = serveCmd.MarkFlagRequired("file")
}

func runServe(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	dispatchInterval, _ := cmd.Flags().GetDuration("dispatch-interval")
	collectInterval, _ := cmd.Flags().GetDuration("collect-interval")

	logger := log.WithComponent("serve")

	res, err := config.Load(filename)
	if err != nil {
		return fmt.Errorf("failed to load hierarchy: %w", err)
	}

	eng, leaves, err := config.Build(res, engine.Params{
		Clock:  func() uint64 { return uint64(time.Now().UnixNano()) },
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build hierarchy: %w", err)
	}

	collector := metrics.NewCollector(eng)
	eng.SetObserver(collector)
	collector.Start(collectInterval)

	metrics.RegisterComponent("engine", true, "ready")
	metrics.RegisterComponent("api", true, "ready")

	gen := workload.NewGenerator(eng, leaves)
	gen.Start(dispatchInterval)

	http.Handle("/metrics", metrics.Handler())
	http.Handle("/health", metrics.HealthHandler())
	http.Handle("/ready", metrics.ReadyHandler())
	http.Handle("/live", metrics.LivenessHandler())

	errCh := make(chan error, 1)
	go func() {
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			errCh <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	fmt.Printf("✓ Hierarchy serving: %s\n", res.Metadata.Name)
	fmt.Printf("✓ Metrics endpoint:  http://%s/metrics\n", metricsAddr)
	fmt.Printf("✓ Health endpoints:  http://%s/{health,ready,live}\n", metricsAddr)
	fmt.Println("Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
	}

	gen.Stop()
	collector.Stop()
	fmt.Println("✓ Shutdown complete")
	return nil
}
