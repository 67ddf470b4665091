// Package console provides the operator REPL: tick/WAL/reactor/world
// status reporting and a handful of admin commands, read from stdin.
//
// A scripted (piped) reader is handled with bufio.Scanner; an interactive
// terminal is handled with go-prompt's completion loop.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	prompt "github.com/c-bata/go-prompt"

	"github.com/dragonkeep/server"
)

const (
	defaultPromptPrefix = "dragonkeep> "
	maxHistoryEntries   = 128
)

// Console reads admin commands from an io.Reader (defaulting to
// os.Stdin) and executes them against a running Server.
type Console struct {
	srv     *dragonkeep.Server
	log     *slog.Logger
	reader  io.Reader
	history []string
	cancel  context.CancelFunc
}

// New returns a Console bound to srv, logging to log (slog.Default() if
// nil) and reading from os.Stdin. Run installs its own cancel function so
// the "quit"/"stop" commands can request an orderly shutdown instead of
// exiting the process mid-command.
func New(srv *dragonkeep.Server, log *slog.Logger) *Console {
	if log == nil {
		log = slog.Default()
	}
	return &Console{srv: srv, log: log, reader: os.Stdin}
}

// WithReader overrides the input source, for tests that should not read
// from a real terminal.
func (c *Console) WithReader(r io.Reader) *Console {
	if r != nil {
		c.reader = r
	}
	return c
}

// Run consumes commands until ctx is cancelled or the reader hits EOF. A
// "quit"/"stop" command cancels derivedCtx, which Run derives from ctx, so
// callers selecting on ctx.Done() observe console-initiated shutdown the
// same way they observe an external signal.
func (c *Console) Run(ctx context.Context) context.Context {
	derived, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	if c.reader != os.Stdin {
		go c.runScanner(derived)
	} else {
		go c.runInteractive(derived)
	}
	return derived
}

func (c *Console) runScanner(ctx context.Context) {
	scanner := bufio.NewScanner(c.reader)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				c.log.Error("console input error", "err", err)
			}
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.execute(line)
	}
}

func (c *Console) runInteractive(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := prompt.Input(defaultPromptPrefix, c.complete,
			prompt.OptionTitle("dragonkeep console"),
			prompt.OptionHistory(c.history),
			prompt.OptionPrefix(defaultPromptPrefix),
			prompt.OptionCompletionOnDown(),
			prompt.OptionMaxSuggestion(12),
		)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		c.execute(line)
	}
}

func (c *Console) execute(line string) {
	c.history = append(c.history, line)
	if len(c.history) > maxHistoryEntries {
		c.history = c.history[len(c.history)-maxHistoryEntries:]
	}

	fields := strings.Fields(line)
	cmdName, args := fields[0], fields[1:]
	handler, ok := commands[strings.ToLower(cmdName)]
	if !ok {
		fmt.Fprintf(os.Stdout, "unknown command %q (try \"help\")\n", cmdName)
		return
	}
	handler(c, args)
}

func (c *Console) complete(doc prompt.Document) []prompt.Suggest {
	word := doc.GetWordBeforeCursor()
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	suggestions := make([]prompt.Suggest, 0, len(names))
	for _, name := range names {
		suggestions = append(suggestions, prompt.Suggest{Text: name, Description: commandHelp[name]})
	}
	return prompt.FilterHasPrefix(suggestions, word, true)
}
