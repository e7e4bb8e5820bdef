package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/lan-simulator/internal/logging"
	"github.com/signalsfoundry/lan-simulator/timectrl"
)

var (
	// Global flags
	logLevel      string
	logFormat     string
	metricsAddr   string
	traceEndpoint string
	paceMode      string
	accelFactor   float64

	// Shared state set during PersistentPreRunE
	log logging.Logger
)

// rootCmd is the base command for lansim.
var rootCmd = &cobra.Command{
	Use:   "lansim",
	Short: "Simulate and replay ICMP reachability over switched LAN topologies",
	Long: `lansim models small switched LANs and simulates ICMP reachability
events against them. A run produces one JSON result record per event;
the replay commands play a finished batch back as narrated packet
traffic, either network-wide or from a single device's point of view.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Flags win over their environment fallbacks.
		if logLevel == "" {
			logLevel = os.Getenv("LANSIM_LOG_LEVEL")
		}
		if logFormat == "" {
			logFormat = os.Getenv("LANSIM_LOG_FORMAT")
		}
		if metricsAddr == "" {
			metricsAddr = os.Getenv("LANSIM_METRICS_ADDR")
		}
		if traceEndpoint == "" {
			traceEndpoint = os.Getenv("LANSIM_TRACE_ENDPOINT")
		}

		log = logging.New(logging.Config{Level: logLevel, Format: logFormat})
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newPacer builds the pacing controller for a command. Replay commands
// default to real time, run defaults to off; --pace overrides either,
// and setting --accel alone selects accelerated mode.
func newPacer(cmd *cobra.Command, fallback timectrl.Mode) *timectrl.Controller {
	mode := fallback
	switch {
	case paceMode != "":
		mode = timectrl.ModeFromString(paceMode)
	case cmd.Flags().Changed("accel"):
		mode = timectrl.Accelerated
	}

	ctl := timectrl.NewController(mode)
	ctl.SetFactor(accelFactor)
	return ctl
}

// serveMetrics exposes the Prometheus handler on addr and returns the
// server so callers can shut it down. A nil return means metrics are
// disabled.
func serveMetrics(addr string, handler http.Handler, log logging.Logger) *http.Server {
	if addr == "" || handler == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

func shutdownMetrics(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (env LANSIM_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (env LANSIM_LOG_FORMAT)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics, empty disables it (env LANSIM_METRICS_ADDR)")
	rootCmd.PersistentFlags().StringVar(&traceEndpoint, "trace-endpoint", "", "OTLP gRPC endpoint for trace export, empty disables it (env LANSIM_TRACE_ENDPOINT)")
	rootCmd.PersistentFlags().StringVar(&paceMode, "pace", "", "pacing mode: off, realtime, accelerated (default depends on the command)")
	rootCmd.PersistentFlags().Float64Var(&accelFactor, "accel", 10, "speed-up factor for accelerated pacing; setting it implies --pace accelerated")
}
