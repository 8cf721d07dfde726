package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/sounder/cli/tui"
	"github.com/justapithecus/sounder/log"
	"github.com/justapithecus/sounder/monitor"
	"github.com/justapithecus/sounder/types"
)

// WatchCommand returns the watch command: a live view of an indexing
// run, interactive by default, with a line-per-update plain mode for
// scripting.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Watch an indexing run live",
		ArgsUsage: "<collection-id>",
		Flags: append(MonitorFlags(),
			&cli.BoolFlag{
				Name:  "plain",
				Usage: "Stream JSON state lines instead of the interactive view",
			},
		),
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
	collectionID := c.Args().First()
	if collectionID == "" {
		return cli.Exit("usage: sounder watch <collection-id>", 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	plain := c.Bool("plain")

	// Buffered with a drop-oldest fallback so a stalled consumer never
	// blocks the connection callbacks.
	updates := make(chan monitor.State, 16)
	onUpdate := func(s monitor.State) {
		select {
		case updates <- s:
		default:
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- s:
			default:
			}
		}
	}

	// The TUI owns the terminal, so its monitor logs nowhere.
	logger := log.Nop()
	if plain {
		logger = log.NewLogger(cfg.ClientID)
	}

	m, err := buildMonitor(c.Context, cfg, logger, onUpdate)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.StartMonitoring(c.Context, collectionID); err != nil {
		return fmt.Errorf("start monitoring: %w", err)
	}

	// Quitting the watch detaches without clearing the persisted
	// record. The run keeps going server side and a later watch or
	// status command picks it back up.
	if plain {
		return watchPlain(c, updates)
	}
	return tui.RunWatch(collectionID, m, updates)
}

// watchPlain streams one JSON line per state update until the run
// reaches a terminal status or the process is interrupted.
func watchPlain(c *cli.Context, updates <-chan monitor.State) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-updates:
			if err := enc.Encode(plainLine(s)); err != nil {
				return err
			}
			if s.Progress != nil && s.Progress.Status.IsTerminal() {
				return nil
			}
		}
	}
}

// watchLine is the JSON shape of one plain-mode update.
type watchLine struct {
	CollectionID    string                  `json:"collectionId"`
	ConnectionState types.ConnectionState   `json:"connectionState"`
	Progress        *types.ProgressSnapshot `json:"progress,omitempty"`
	Error           string                  `json:"error,omitempty"`
	LastUpdated     string                  `json:"lastUpdated,omitempty"`
}

func plainLine(s monitor.State) watchLine {
	line := watchLine{
		CollectionID:    s.CollectionID,
		ConnectionState: s.ConnectionState,
		Progress:        s.Progress,
	}
	if s.Err != nil {
		line.Error = s.Err.Error()
	}
	if !s.LastUpdated.IsZero() {
		line.LastUpdated = s.LastUpdated.UTC().Format(time.RFC3339)
	}
	return line
}
