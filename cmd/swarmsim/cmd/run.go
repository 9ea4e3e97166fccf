package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lao-tseu-is-alive/go-drone-swarm/pkg/flock"
	"github.com/lao-tseu-is-alive/go-drone-swarm/pkg/swarm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const askTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the swarm for a number of ticks",
	Long: `Run the swarm for a fixed number of ticks, rebuilding the partitions
periodically, then print a summary of the surviving drones.`,
	RunE: runSwarm,
}

func init() {
	runCmd.Flags().Int("ticks", 600, "number of simulation steps")
	runCmd.Flags().Duration("dt", 16*time.Millisecond, "simulated time per step")
	runCmd.Flags().Int("partition-every", 60, "rebuild the partitions every N ticks (0 disables)")
	runCmd.Flags().Int("report-every", 120, "print a status line every N ticks (0 disables)")

	for _, name := range []string{"ticks", "dt", "partition-every", "report-every"} {
		_ = viper.BindPFlag(name, runCmd.Flags().Lookup(name))
	}
}

func runSwarm(_ *cobra.Command, _ []string) error {
	ticks := viper.GetInt("ticks")
	dt := viper.GetDuration("dt")
	partitionEvery := viper.GetInt("partition-every")
	reportEvery := viper.GetInt("report-every")
	if ticks < 0 || dt <= 0 {
		return fmt.Errorf("%w: ticks must be >= 0 and dt > 0", swarm.ErrInvalidInput)
	}

	cfg, err := loadSwarmConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	ctrl, err := swarm.NewController(cfg, swarm.WithLogger(logger))
	if err != nil {
		return err
	}
	ctrl.Subscribe(func(e flock.Event) {
		switch e.Current {
		case flock.ZoneDestroyed:
			_, _ = errorColor.Printf("tick %d: drone %d destroyed (was %s)\n", e.Tick, e.AgentID, e.Previous)
		case flock.ZoneWarning:
			_, _ = warnColor.Printf("tick %d: drone %d entered the warning ring\n", e.Tick, e.AgentID)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snapshots := make(chan *swarm.Snapshot, 1)
	system, pid, err := startSwarm(ctx, ctrl, logger, snapshots)
	if err != nil {
		return err
	}
	defer func() { _ = system.Stop(context.Background()) }()

	_, _ = infoColor.Printf("swarm %s: %d drones, %d ticks of %s\n", ctrl.RunID(), cfg.NumAgents, ticks, dt)

	// frames pushed after each tick feed the peak; status lines ask the actor directly
	peakWarning := 0
	for i := 1; i <= ticks; i++ {
		if ctx.Err() != nil {
			_, _ = warnColor.Println("interrupted, stopping swarm...")
			break
		}
		if err := swarm.SendTick(ctx, pid, dt); err != nil {
			return fmt.Errorf("tick %d: %w", i, err)
		}
		select {
		case snap := <-snapshots:
			peakWarning = max(peakWarning, snap.Warning)
		default:
		}
		if partitionEvery > 0 && i%partitionEvery == 0 {
			a, b, err := swarm.RequestPartition(ctx, pid, askTimeout)
			if err != nil {
				return fmt.Errorf("partition at tick %d: %w", i, err)
			}
			_, _ = infoColor.Printf("tick %d: partitions rebuilt, A=%d B=%d\n", i, a, b)
		}
		if reportEvery > 0 && i%reportEvery == 0 {
			status, err := swarm.RequestSnapshot(ctx, pid, askTimeout)
			if err != nil {
				return fmt.Errorf("status at tick %d: %w", i, err)
			}
			printStatus(status)
		}
	}

	status, err := swarm.RequestSnapshot(context.Background(), pid, askTimeout)
	if err != nil {
		return err
	}
	_, _ = successColor.Printf("done after %d ticks: %d active, %d warning (peak %d), %d destroyed\n",
		status.Tick, status.Active, status.Warning, max(peakWarning, status.Warning), status.Destroyed)
	return nil
}

func printStatus(status swarm.Status) {
	_, _ = infoColor.Printf("tick %d: %d active, %d warning, %d destroyed\n",
		status.Tick, status.Active, status.Warning, status.Destroyed)
}
