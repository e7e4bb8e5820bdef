package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/lan-simulator/core"
	"github.com/signalsfoundry/lan-simulator/internal/logging"
	"github.com/signalsfoundry/lan-simulator/internal/observability"
	"github.com/signalsfoundry/lan-simulator/internal/store"
	"github.com/signalsfoundry/lan-simulator/model"
	"github.com/signalsfoundry/lan-simulator/results"
	"github.com/signalsfoundry/lan-simulator/timectrl"
)

const tracerName = "github.com/signalsfoundry/lan-simulator/cmd/lansim"

var (
	runTopologyPath string
	runEventsPath   string
	runOutPath      string
	runArchivePath  string
	runLossProb     float64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate a scenario and emit its result batch",
	Long: `Run loads a topology, validates it, simulates every ping event in
order, and writes the result batch as a {"logs":[...]} JSON document to
stdout or --out. Per-event failures are recorded in the batch and never
fail the command; only load and validation errors do.`,
	Args: cobra.NoArgs,
	RunE: runScenario,
}

func init() {
	runCmd.Flags().StringVar(&runTopologyPath, "topology", "", "scenario file with nodes, connections and events (JSON or YAML)")
	runCmd.Flags().StringVar(&runEventsPath, "events", "", "extra event file appended to the scenario's own events")
	runCmd.Flags().StringVar(&runOutPath, "out", "", "write the result batch here instead of stdout")
	runCmd.Flags().StringVar(&runArchivePath, "archive", "", "SQLite file to archive the finished run into")
	runCmd.Flags().Float64Var(&runLossProb, "loss", 0, "override the per-packet loss probability")
	_ = runCmd.MarkFlagRequired("topology")
	rootCmd.AddCommand(runCmd)
}

func runScenario(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	kb := core.NewKnowledgeBase()
	scenario, err := core.LoadScenarioFile(kb, runTopologyPath)
	if err != nil {
		return err
	}

	events := scenario.Events
	if runEventsPath != "" {
		extra, err := core.LoadScenarioFile(kb, runEventsPath)
		if err != nil {
			return err
		}
		events = append(events, extra.Events...)
	}

	resLog := results.NewLog()
	ctx = logging.ContextWithRunID(ctx, resLog.RunID())
	ctx, runLog := logging.WithRunLogger(ctx, log)

	runLog.Info(ctx, "scenario loaded",
		logging.String("topology", runTopologyPath),
		logging.Int("devices", len(scenario.DeviceIDs)),
		logging.Int("connections", scenario.Connections),
		logging.Int("events", len(events)),
	)

	engine := core.NewSimulationEngine(kb)
	engine.PingService.Pacer = newPacer(cmd, timectrl.Off)
	if cmd.Flags().Changed("loss") {
		engine.PingService.Packets.LossProbability = runLossProb
	}

	collector, err := observability.NewSimulationCollector(nil)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	metricsSrv := serveMetrics(metricsAddr, collector.Handler(), runLog)
	defer shutdownMetrics(metricsSrv)

	engine.RegisterResultListener(resLog.Append)
	engine.RegisterResultListener(collector.ObserveResult)
	engine.RegisterSkipListener(func(ev model.Event) {
		collector.ObserveSkip(ev)
		runLog.Warn(ctx, "skipping unhandled event",
			logging.String("event_id", ev.ID),
			logging.String("type", ev.Type),
		)
	})
	engine.PingService.ARP.Observe(func(deviceID, targetIP string, outcome core.ARPOutcome) {
		collector.IncARPLookup(string(outcome))
	})

	traceCfg := observability.TracingConfigFromEnv()
	if traceEndpoint != "" {
		traceCfg.Enabled = true
		traceCfg.Exporter = "otlp"
		traceCfg.Endpoint = traceEndpoint
	}
	shutdownTracing, err := observability.InitTracing(ctx, traceCfg, runLog)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.WithoutCancel(ctx), shutdownTracing, runLog)

	scenarioName := scenarioLabel(runTopologyPath)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "simulation.run", trace.WithAttributes(
		attribute.String("run_id", resLog.RunID()),
		attribute.String("scenario", scenarioName),
		attribute.Int("events.total", len(events)),
	))
	engine.RegisterResultListener(func(res model.PingResult) {
		span.AddEvent("ping.result", trace.WithAttributes(
			attribute.String("event_id", res.EventID),
			attribute.String("status", string(res.Status)),
		))
	})

	collector.RunStarted()
	engine.Run(ctx, events)
	collector.RunFinished()
	span.End()

	summary := resLog.Summary()
	runLog.Info(ctx, "simulation finished",
		logging.Int("events", summary.Events),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Float64("loss_pct", summary.LossPercentage()),
	)

	batch := resLog.Batch()
	batch.Scenario = scenarioName

	out := cmd.OutOrStdout()
	if runOutPath != "" {
		f, err := os.Create(runOutPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := batch.Encode(out); err != nil {
		return err
	}

	if runArchivePath != "" {
		// Archival still happens after an interrupt; the partial batch
		// is worth keeping.
		return archiveRun(context.WithoutCancel(ctx), runArchivePath, batch, runLog)
	}
	return nil
}

func archiveRun(ctx context.Context, path string, batch *results.Batch, log logging.Logger) error {
	st, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer st.Close()

	storeMetrics, err := observability.NewStoreCollector(nil)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	started := time.Now()
	if err := st.SaveRun(ctx, batch); err != nil {
		return fmt.Errorf("archive run: %w", err)
	}
	storeMetrics.ObserveSave(time.Since(started))
	storeMetrics.SetArchiveSize(st.Size())

	log.Info(ctx, "run archived",
		logging.String("path", path),
		logging.String("run_id", batch.RunID),
	)
	return nil
}

// scenarioLabel derives the human-facing scenario name from the
// topology file path.
func scenarioLabel(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
