// Package command provides CLI command definitions for docmesh-cli.
package command

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/docmesh-go/internal/cli/connection"
	"github.com/yndnr/docmesh-go/internal/cli/output"
	"github.com/yndnr/docmesh-go/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "docmesh-cli",
		Usage:   "DocMesh command-line management tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			DeviceCommand(),
			CollectionCommand(),
			SyncCommand(),
			BackupCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "DocMesh server address (e.g., localhost:8000)",
			EnvVars: []string{"DOCMESH_SERVER"},
			Value:   "localhost:8000",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Request timeout",
			Value: 30 * time.Second,
		},
	}
}

// clientFor builds an HTTP client from global flags.
func clientFor(c *cli.Context) *connection.Client {
	return connection.New(c.String("server"), c.Duration("timeout"))
}

// formatterFor builds an output formatter from global flags.
func formatterFor(c *cli.Context) output.Formatter {
	return output.NewFormatter(output.Format(c.String("output")))
}

// tableMode reports whether the table format is active; commands use
// this to decide between hand-built tables and raw payloads.
func tableMode(c *cli.Context) bool {
	return output.Format(c.String("output")) == output.FormatTable
}
