package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/docmesh-go/internal/cli/connection"
	"github.com/yndnr/docmesh-go/internal/cli/output"
)

type backupRow struct {
	ID            string `json:"id"`
	CollectionID  string `json:"collection_id"`
	DocumentCount int    `json:"document_count"`
	CreatedAt     int64  `json:"created_at"`
	Size          int64  `json:"size"`
}

// BackupCommand returns the backup subcommand group.
func BackupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Manage collection backups",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Take a backup of a collection",
				ArgsUsage: "COLLECTION_ID",
				Action:    backupCreate,
			},
			{
				Name:      "list",
				Usage:     "List backups of a collection",
				ArgsUsage: "COLLECTION_ID",
				Action:    backupList,
			},
			{
				Name:      "restore",
				Usage:     "Restore a collection from its most recent backup",
				ArgsUsage: "COLLECTION_ID",
				Action:    backupRestore,
			},
		},
	}
}

func backupCreate(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("collection ID required")
	}

	resp, err := clientFor(c).Post(c.Context, "/collections/"+id+"/backups", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var info backupRow
	if err := connection.ParseResponse(resp, &info); err != nil {
		return err
	}
	fmt.Printf("backup %s created (%d documents)\n", info.ID, info.DocumentCount)
	return nil
}

func backupList(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("collection ID required")
	}

	resp, err := clientFor(c).Get(c.Context, "/collections/"+id+"/backups")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Backups []backupRow `json:"backups"`
		Count   int         `json:"count"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	if !tableMode(c) {
		return formatterFor(c).Format(os.Stdout, result.Backups)
	}

	table := &output.Table{
		Headers: []string{"BACKUP ID", "DOCUMENTS", "CREATED", "SIZE"},
	}
	for _, b := range result.Backups {
		table.AddRow(
			b.ID,
			fmt.Sprintf("%d", b.DocumentCount),
			output.Millis(b.CreatedAt),
			fmt.Sprintf("%d", b.Size),
		)
	}
	if err := table.Render(os.Stdout); err != nil {
		return err
	}
	fmt.Printf("\nTotal: %d backups\n", result.Count)
	return nil
}

func backupRestore(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("collection ID required")
	}

	resp, err := clientFor(c).Post(c.Context, "/collections/"+id+"/restore", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if err := connection.ParseResponse(resp, nil); err != nil {
		return err
	}
	fmt.Printf("collection %s restored\n", id)
	return nil
}
