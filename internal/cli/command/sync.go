package command

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/docmesh-go/internal/cli/connection"
	"github.com/yndnr/docmesh-go/internal/cli/output"
)

type syncRunRow struct {
	SyncID          string `json:"sync_id"`
	CollectionID    string `json:"collection_id"`
	TargetDeviceID  string `json:"target_device_id"`
	Direction       string `json:"direction"`
	Status          string `json:"status"`
	DocumentsSynced int    `json:"documents_synced"`
	ConflictsCount  int    `json:"conflicts_count"`
	StartedAt       int64  `json:"started_at"`
	CompletedAt     int64  `json:"completed_at"`
	ErrorMessage    string `json:"error_message"`
}

// SyncCommand returns the sync subcommand group.
func SyncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run and inspect knowledge-base synchronization",
		Subcommands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Start a sync run against a peer",
				ArgsUsage: "COLLECTION_ID TARGET_DEVICE_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "direction",
						Aliases: []string{"d"},
						Usage:   "push, pull or bidirectional",
						Value:   "bidirectional",
					},
					&cli.StringFlag{
						Name:  "resolution",
						Usage: "Conflict policy: keep_local, keep_remote, keep_latest",
					},
					&cli.DurationFlag{
						Name:  "since",
						Usage: "Only sync documents modified within this window, e.g. 24h",
					},
				},
				Action: syncRun,
			},
			{
				Name:      "status",
				Usage:     "Show one sync run",
				ArgsUsage: "SYNC_ID",
				Action:    syncStatus,
			},
			{
				Name:  "history",
				Usage: "List past sync runs, most recent first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "collection",
						Usage: "Filter by collection ID",
					},
					&cli.StringFlag{
						Name:  "device",
						Usage: "Filter by source or target device ID",
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by status",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum runs to return",
					},
				},
				Action: syncHistory,
			},
		},
	}
}

func syncRun(c *cli.Context) error {
	collectionID, targetID := c.Args().Get(0), c.Args().Get(1)
	if collectionID == "" || targetID == "" {
		return fmt.Errorf("collection ID and target device ID required")
	}

	body := map[string]any{
		"collection_id":    collectionID,
		"target_device_id": targetID,
		"direction":        c.String("direction"),
	}
	if policy := c.String("resolution"); policy != "" {
		body["conflict_resolution"] = policy
	}
	if since := c.Duration("since"); since > 0 {
		body["filter"] = map[string]int64{
			"modified_after": time.Now().Add(-since).UnixMilli(),
		}
	}

	resp, err := clientFor(c).Post(c.Context, "/sync", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var run syncRunRow
	if err := connection.ParseResponse(resp, &run); err != nil {
		return err
	}
	fmt.Printf("sync run %s started (%s)\n", run.SyncID, run.Status)
	return nil
}

func syncStatus(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("sync ID required")
	}

	resp, err := clientFor(c).Get(c.Context, "/sync/runs/"+id)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result map[string]any
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	return formatterFor(c).Format(os.Stdout, result)
}

func syncHistory(c *cli.Context) error {
	path := "/sync/history"
	sep := "?"
	for key, val := range map[string]string{
		"collection_id": c.String("collection"),
		"device_id":     c.String("device"),
		"status":        c.String("status"),
	} {
		if val != "" {
			path += sep + key + "=" + val
			sep = "&"
		}
	}
	if limit := c.Int("limit"); limit > 0 {
		path += sep + fmt.Sprintf("limit=%d", limit)
	}

	resp, err := clientFor(c).Get(c.Context, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Runs  []syncRunRow `json:"runs"`
		Count int          `json:"count"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	if !tableMode(c) {
		return formatterFor(c).Format(os.Stdout, result.Runs)
	}

	table := &output.Table{
		Headers: []string{"SYNC ID", "COLLECTION", "TARGET", "DIRECTION", "STATUS", "DOCS", "CONFLICTS", "STARTED", "COMPLETED"},
	}
	for _, run := range result.Runs {
		table.AddRow(
			run.SyncID,
			run.CollectionID,
			output.TruncateID(run.TargetDeviceID),
			run.Direction,
			run.Status,
			fmt.Sprintf("%d", run.DocumentsSynced),
			fmt.Sprintf("%d", run.ConflictsCount),
			output.Millis(run.StartedAt),
			output.Millis(run.CompletedAt),
		)
	}
	if err := table.Render(os.Stdout); err != nil {
		return err
	}
	fmt.Printf("\nTotal: %d runs\n", result.Count)
	return nil
}
