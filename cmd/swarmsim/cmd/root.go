package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/lao-tseu-is-alive/go-drone-swarm/pkg/swarm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tochemey/goakt/v3/actor"
	golog "github.com/tochemey/goakt/v3/log"
)

const envPrefix = "SWARMSIM"

var (
	cfgFile    string
	schemaFile string
	logLevel   string
	noColor    bool
)

var (
	infoColor    = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "swarmsim",
	Short: "Drone swarm simulator",
	Long: `swarmsim flies a swarm of drones around a base, destroys the ones
that stray too far and routes messages between them, either through
two partition trees or over an explicit routing graph.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "swarm configuration file (JSON, defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&schemaFile, "schema", "", "JSON schema for the configuration (embedded schema when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	for _, name := range []string{"config", "schema", "log-level", "no-color"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(routeCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// initConfig lets SWARMSIM_* environment variables override unset flags
func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	cfgFile = viper.GetString("config")
	schemaFile = viper.GetString("schema")
	logLevel = viper.GetString("log-level")
	noColor = viper.GetBool("no-color")
	color.NoColor = color.NoColor || noColor
}

func parseLevel(level string) golog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return golog.DebugLevel
	case "error":
		return golog.ErrorLevel
	default:
		return golog.InfoLevel
	}
}

func loadSwarmConfig() (*swarm.Config, error) {
	if cfgFile == "" {
		return swarm.DefaultConfig(), nil
	}
	cfg, err := swarm.LoadConfig(cfgFile, schemaFile)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// startSwarm starts an actor system hosting ctrl behind a SwarmActor.
func startSwarm(ctx context.Context, ctrl *swarm.Controller, logger golog.Logger, snapshots chan<- *swarm.Snapshot) (actor.ActorSystem, *actor.PID, error) {
	system, err := actor.NewActorSystem("DroneSwarm",
		actor.WithLogger(logger),
		actor.WithActorInitMaxRetries(3))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create actor system: %w", err)
	}
	if err := system.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start actor system: %w", err)
	}
	pid, err := system.Spawn(ctx, "swarm-"+ctrl.RunID(), swarm.NewSwarmActor(ctrl, snapshots))
	if err != nil {
		_ = system.Stop(ctx)
		return nil, nil, fmt.Errorf("failed to spawn swarm: %w", err)
	}
	return system, pid, nil
}

func newLogger() golog.Logger {
	return golog.New(parseLevel(logLevel), os.Stdout)
}
