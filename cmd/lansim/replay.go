package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/lan-simulator/core"
	"github.com/signalsfoundry/lan-simulator/internal/logging"
	"github.com/signalsfoundry/lan-simulator/internal/observability"
	"github.com/signalsfoundry/lan-simulator/internal/store"
	"github.com/signalsfoundry/lan-simulator/monitor"
	"github.com/signalsfoundry/lan-simulator/results"
	"github.com/signalsfoundry/lan-simulator/timectrl"
)

var (
	replayTopologyPath string
	replayResultsPath  string
	replayArchivePath  string
	replayRunID        string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Narrate a finished run as network-wide packet traffic",
	Long: `Replay loads a result batch from a file or the archive and plays it
back as a narrated capture: ARP exchanges, per-sequence echo packets,
timeouts, and the closing statistics of every event. Pacing defaults to
real time so the playback reads like live traffic.`,
	Args: cobra.NoArgs,
	RunE: replayRun,
}

func init() {
	replayCmd.Flags().StringVar(&replayTopologyPath, "topology", "", "scenario file the batch was simulated against")
	replayCmd.Flags().StringVar(&replayResultsPath, "results", "", "result batch file produced by lansim run")
	replayCmd.Flags().StringVar(&replayArchivePath, "archive", "", "SQLite archive to read the run from")
	replayCmd.Flags().StringVar(&replayRunID, "run-id", "", "archived run to replay (default: the newest)")
	_ = replayCmd.MarkFlagRequired("topology")
	rootCmd.AddCommand(replayCmd)
}

func replayRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	batch, err := loadBatch(ctx, replayResultsPath, replayArchivePath, replayRunID)
	if err != nil {
		return err
	}

	kb := core.NewKnowledgeBase()
	if _, err := core.LoadScenarioFile(kb, replayTopologyPath); err != nil {
		return err
	}

	mon := monitor.NewNetworkMonitor(kb, cmd.OutOrStdout(), newPacer(cmd, timectrl.RealTime))
	if err := mon.Replay(ctx, batch.Logs); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// loadBatch reads a result batch from either a plain results file or
// the SQLite archive. Exactly one source must be given; an empty run id
// selects the newest archived run.
func loadBatch(ctx context.Context, resultsPath, archivePath, runID string) (*results.Batch, error) {
	switch {
	case resultsPath == "" && archivePath == "":
		return nil, fmt.Errorf("either --results or --archive is required")
	case resultsPath != "" && archivePath != "":
		return nil, fmt.Errorf("--results and --archive are mutually exclusive")
	}

	if resultsPath != "" {
		data, err := os.ReadFile(resultsPath)
		if err != nil {
			return nil, fmt.Errorf("read results: %w", err)
		}
		return results.DecodeBatch(data)
	}

	st, err := store.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer st.Close()

	storeMetrics, err := observability.NewStoreCollector(nil)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	if runID == "" {
		runs, err := st.ListRuns(ctx, 1)
		if err != nil {
			return nil, err
		}
		if len(runs) == 0 {
			return nil, fmt.Errorf("archive %q holds no runs", archivePath)
		}
		runID = runs[0].RunID
	}

	rec, err := st.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	storeMetrics.IncRunsLoaded()

	log.Info(ctx, "loaded archived run",
		logging.String("run_id", rec.RunID),
		logging.String("scenario", rec.Scenario),
		logging.Int("events", rec.Events),
	)
	return rec.Batch, nil
}
