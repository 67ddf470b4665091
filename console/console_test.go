package console

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dragonkeep/server"
	"github.com/dragonkeep/server/core/wal"
	"github.com/dragonkeep/server/world"
	"github.com/dragonkeep/server/world/gen"
)

func newTestServer(t *testing.T) *dragonkeep.Server {
	t.Helper()
	conf := dragonkeep.Config{
		WAL: wal.Config{Path: filepath.Join(t.TempDir(), "test.wal")},
	}
	conf.World.Gen = gen.New(1)
	conf.World.Provider = world.NewMemProvider()

	srv, err := dragonkeep.New(conf)
	if err != nil {
		t.Fatalf("dragonkeep.New: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

func TestScannerExecutesKnownCommands(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv, nil).WithReader(strings.NewReader("status\ndragon\nrecipes\n"))

	ctx, cancel := context.WithCancel(context.Background())
	shutdown := c.Run(ctx)

	deadline := time.After(100 * time.Millisecond)
	select {
	case <-shutdown.Done():
		t.Fatalf("unexpected shutdown before quit was issued")
	case <-deadline:
	}
	cancel()
}

func TestQuitCancelsShutdownContext(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv, nil).WithReader(strings.NewReader("quit\n"))

	shutdown := c.Run(context.Background())
	select {
	case <-shutdown.Done():
	case <-time.After(300 * time.Millisecond):
		t.Fatalf("expected quit command to cancel the shutdown context")
	}
}
