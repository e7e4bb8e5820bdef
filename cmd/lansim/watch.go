package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/lan-simulator/core"
	"github.com/signalsfoundry/lan-simulator/monitor"
	"github.com/signalsfoundry/lan-simulator/timectrl"
)

var (
	watchTopologyPath string
	watchResultsPath  string
	watchArchivePath  string
	watchRunID        string
	watchIfaceName    string
)

var watchCmd = &cobra.Command{
	Use:   "watch DEVICE",
	Short: "Replay a finished run from one device's point of view",
	Long: `Watch plays a result batch back as the traffic a single device would
capture: a switch sees every forwarded packet, a host only the packets
it sent or received. Packets the device would never observe are
omitted from the narration.`,
	Args: cobra.ExactArgs(1),
	RunE: watchDevice,
}

func init() {
	watchCmd.Flags().StringVar(&watchTopologyPath, "topology", "", "scenario file the batch was simulated against")
	watchCmd.Flags().StringVar(&watchResultsPath, "results", "", "result batch file produced by lansim run")
	watchCmd.Flags().StringVar(&watchArchivePath, "archive", "", "SQLite archive to read the run from")
	watchCmd.Flags().StringVar(&watchRunID, "run-id", "", "archived run to replay (default: the newest)")
	watchCmd.Flags().StringVar(&watchIfaceName, "iface", "", "interface name shown in the capture header")
	_ = watchCmd.MarkFlagRequired("topology")
	rootCmd.AddCommand(watchCmd)
}

func watchDevice(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	batch, err := loadBatch(ctx, watchResultsPath, watchArchivePath, watchRunID)
	if err != nil {
		return err
	}

	kb := core.NewKnowledgeBase()
	if _, err := core.LoadScenarioFile(kb, watchTopologyPath); err != nil {
		return err
	}

	dev := kb.GetDevice(args[0])
	if dev == nil {
		return fmt.Errorf("device %q not in topology", args[0])
	}
	if watchIfaceName != "" && dev.Interface(watchIfaceName) == nil {
		return fmt.Errorf("device %q has no interface %q", dev.ID, watchIfaceName)
	}

	mon := monitor.NewPerspectiveMonitor(kb, dev.ID, watchIfaceName, cmd.OutOrStdout(), newPacer(cmd, timectrl.RealTime))
	if err := mon.Replay(ctx, batch.Logs); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
