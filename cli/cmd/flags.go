// Package cmd provides CLI commands for the sounder binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags across commands.
var (
	// ConfigFlag points at a sounder.yaml configuration file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"C"},
		Usage:   "Path to sounder.yaml config file",
		EnvVars: []string{"SOUNDER_CONFIG"},
	}

	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// EndpointFlag overrides the WebSocket endpoint from the config.
	EndpointFlag = &cli.StringFlag{
		Name:    "endpoint",
		Aliases: []string{"e"},
		Usage:   "Backend WebSocket endpoint (e.g. ws://localhost:8080/ws)",
		EnvVars: []string{"SOUNDER_ENDPOINT"},
	}

	// StoreDirFlag overrides the persistence directory from the config.
	StoreDirFlag = &cli.StringFlag{
		Name:  "store-dir",
		Usage: "Directory for the persisted monitor record",
	}

	// ClientIDFlag overrides the client identifier from the config.
	ClientIDFlag = &cli.StringFlag{
		Name:  "client-id",
		Usage: "Client identifier sent to the backend (default: random)",
	}
)

// MonitorFlags returns the shared flags for commands that connect to
// the backend.
func MonitorFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		EndpointFlag,
		StoreDirFlag,
		ClientIDFlag,
	}
}

// ReadOnlyFlags returns the shared flags for local, read-only commands.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		FormatFlag,
		StoreDirFlag,
	}
}
