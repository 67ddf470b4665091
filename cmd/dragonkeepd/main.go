// Command dragonkeepd is the thin entry point wiring a dragonkeep.Server
// to a TOML configuration file and a console REPL: read config, construct
// the server, start the console, block until shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dragonkeep/server"
	"github.com/dragonkeep/server/console"
	"github.com/dragonkeep/server/world"
	"github.com/dragonkeep/server/world/gen"
)

func main() {
	log := slog.Default()

	uc, err := dragonkeep.LoadUserConfig("dragonkeepd.toml")
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}

	conf := uc.Config(log)
	conf.World.Gen = gen.New(uc.World.Seed)
	if uc.World.SaveData {
		provider, err := world.OpenLevelDBProvider(uc.World.Folder)
		if err != nil {
			log.Error("open world provider", "err", err)
			os.Exit(1)
		}
		conf.World.Provider = provider
	} else {
		conf.World.Provider = world.NewMemProvider()
	}

	srv, err := dragonkeep.New(conf)
	if err != nil {
		log.Error("create server", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cons := console.New(srv, log)
	shutdownCtx := cons.Run(ctx)

	go srv.Run(shutdownCtx)

	<-shutdownCtx.Done()
	if err := srv.Close(); err != nil {
		log.Error("shutdown", "err", err)
		os.Exit(1)
	}
}
