package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lao-tseu-is-alive/go-drone-swarm/pkg/routing"
	"github.com/lao-tseu-is-alive/go-drone-swarm/pkg/swarm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Route a message through the swarm",
	Long: `Route a message after the swarm flew for a while.

With --target the message travels down partition A's tree and falls back
to partition B's. With --from and --to it follows the shortest path of the
routing graph, loaded from --topology or linking drones closer than the
neighbor radius.`,
	RunE: routeMessage,
}

func init() {
	routeCmd.Flags().Int("target", -1, "destination drone for a partition route")
	routeCmd.Flags().Int("from", -1, "source vertex for a graph route")
	routeCmd.Flags().Int("to", -1, "destination vertex for a graph route")
	routeCmd.Flags().String("topology", "", "routing graph file (YAML)")
	routeCmd.Flags().Int("warmup", 0, "ticks to simulate before routing")

	for _, name := range []string{"target", "from", "to", "topology", "warmup"} {
		_ = viper.BindPFlag("route."+name, routeCmd.Flags().Lookup(name))
	}
}

func routeMessage(_ *cobra.Command, _ []string) error {
	target := viper.GetInt("route.target")
	from, to := viper.GetInt("route.from"), viper.GetInt("route.to")
	if target < 0 && (from < 0 || to < 0) {
		return fmt.Errorf("%w: set --target, or both --from and --to", swarm.ErrInvalidInput)
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

	if target < 0 {
		if path := viper.GetString("route.topology"); path != "" {
			topo, err := routing.LoadTopology(path)
			if err != nil {
				return err
			}
			if err := topo.Apply(ctrl.Graph()); err != nil {
				return fmt.Errorf("applying %s: %w", path, err)
			}
		} else {
			edges := ctrl.LinkNeighbors(cfg.NeighborRadius)
			_, _ = infoColor.Printf("routing graph: %d drones, %d links\n", ctrl.Graph().Len(), edges)
		}
		if isolated := isolatedVertices(ctrl.Graph()); len(isolated) > 0 {
			_, _ = warnColor.Printf("unreachable drones: %v\n", isolated)
		}
	}

	ctx := context.Background()
	system, pid, err := startSwarm(ctx, ctrl, logger, nil)
	if err != nil {
		return err
	}
	defer func() { _ = system.Stop(ctx) }()

	for i := 0; i < viper.GetInt("route.warmup"); i++ {
		if err := swarm.SendTick(ctx, pid, 16*time.Millisecond); err != nil {
			return err
		}
	}

	if target >= 0 {
		if _, _, err := swarm.RequestPartition(ctx, pid, askTimeout); err != nil {
			return err
		}
		path, err := swarm.RequestRoute(ctx, pid, target, askTimeout)
		return reportRoute(fmt.Sprintf("drone %d", target), path, err)
	}

	path, err := swarm.RequestGraphRoute(ctx, pid, from, to, askTimeout)
	return reportRoute(fmt.Sprintf("%d -> %d", from, to), path, err)
}

// isolatedVertices lists the vertices without any link, in registration order.
func isolatedVertices(g *routing.Graph) []int {
	var isolated []int
	for _, id := range g.Vertices() {
		if len(g.Neighbors(id)) == 0 {
			isolated = append(isolated, id)
		}
	}
	return isolated
}

func reportRoute(label string, path []int, err error) error {
	switch {
	case err == nil:
		_, _ = successColor.Printf("route to %s: %v (%d hops)\n", label, path, len(path))
		return nil
	case errors.Is(err, swarm.ErrAlreadyDestroyed):
		_, _ = warnColor.Printf("route to %s reaches a destroyed drone: %v\n", label, path)
		return err
	default:
		_, _ = errorColor.Printf("no route to %s\n", label)
		return err
	}
}
