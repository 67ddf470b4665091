package console

import (
	"fmt"
	"os"
)

type handlerFunc func(c *Console, args []string)

var commands = map[string]handlerFunc{
	"help":    cmdHelp,
	"status":  cmdStatus,
	"dragon":  cmdDragon,
	"recipes": cmdRecipes,
	"quit":    cmdQuit,
	"stop":    cmdQuit,
}

var commandHelp = map[string]string{
	"help":    "list available commands",
	"status":  "show tick rate, WAL, and streaming counters",
	"dragon":  "show the external-event reactor's current state",
	"recipes": "list registered crafting recipes in topological order",
	"quit":    "shut down the server",
	"stop":    "alias for quit",
}

func cmdHelp(c *Console, _ []string) {
	fmt.Fprintln(os.Stdout, "commands: help status dragon recipes quit")
}

func cmdStatus(c *Console, _ []string) {
	snap := c.srv.Metrics.Snapshot()
	fmt.Fprintf(os.Stdout,
		"tick=%d tps=%.2f wal_appends=%d wal_backpressure=%d chunks(gen=%d load=%d evict=%d)\n",
		c.srv.Orchestrator.CurrentTick(), c.srv.Orchestrator.TPS(),
		snap.WALAppends, snap.WALBackpressure,
		snap.ChunksGenerated, snap.ChunksLoaded, snap.ChunksEvicted)
}

func cmdDragon(c *Console, _ []string) {
	s := c.srv.Reactor.State()
	fmt.Fprintf(os.Stdout, "state=%s aggression=%d changes=%d worst_latency_ns=%d\n",
		s.State(), s.Aggression(), s.ChangeCount(), s.WorstLatencyNs())
}

func cmdRecipes(c *Console, _ []string) {
	order := c.srv.Recipes.TopologicalOrder()
	if len(order) == 0 {
		fmt.Fprintln(os.Stdout, "no recipes registered")
		return
	}
	for _, id := range order {
		fmt.Fprintf(os.Stdout, "recipe %d\n", id)
	}
}

func cmdQuit(c *Console, _ []string) {
	fmt.Fprintln(os.Stdout, "shutting down...")
	if c.cancel != nil {
		c.cancel()
	}
}
