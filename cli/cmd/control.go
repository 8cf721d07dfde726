package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/sounder/monitor"
)

// Connection wait budget for one-shot control commands.
const controlTimeout = 15 * time.Second

// PauseCommand returns the pause command.
func PauseCommand() *cli.Command {
	return controlCommand("pause", "Pause an indexing run",
		func(m *monitor.Monitor) error { return m.PauseIndexing() })
}

// ResumeCommand returns the resume command.
func ResumeCommand() *cli.Command {
	return controlCommand("resume", "Resume a paused indexing run",
		func(m *monitor.Monitor) error { return m.ResumeIndexing() })
}

// CancelCommand returns the cancel command.
func CancelCommand() *cli.Command {
	return controlCommand("cancel", "Cancel an indexing run",
		func(m *monitor.Monitor) error { return m.CancelIndexing() })
}

// controlCommand builds a one-shot command that connects, sends a
// single control message, and detaches.
func controlCommand(name, usage string, send func(*monitor.Monitor) error) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<collection-id>",
		Flags:     MonitorFlags(),
		Action: func(c *cli.Context) error {
			collectionID := c.Args().First()
			if collectionID == "" {
				return cli.Exit(fmt.Sprintf("usage: sounder %s <collection-id>", name), 1)
			}

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			m, err := buildMonitor(c.Context, cfg, nil, nil)
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.StartMonitoring(c.Context, collectionID); err != nil {
				return fmt.Errorf("start monitoring: %w", err)
			}
			if err := waitConnected(m, controlTimeout); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if err := send(m); err != nil {
				return err
			}

			// Leave a short window for a failed operation_response to
			// land before detaching.
			time.Sleep(500 * time.Millisecond)
			if stateErr := m.State().Err; stateErr != nil {
				return cli.Exit(fmt.Sprintf("%s rejected: %v", name, stateErr), 1)
			}
			fmt.Printf("%s sent for %s\n", name, collectionID)
			return nil
		},
	}
}

func waitConnected(m *monitor.Monitor, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if m.State().IsConnected {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("not connected after %s", timeout)
}
