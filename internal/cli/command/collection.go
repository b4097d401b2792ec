package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/docmesh-go/internal/cli/connection"
	"github.com/yndnr/docmesh-go/internal/cli/output"
)

type collectionRow struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Visibility    string `json:"visibility"`
	DocumentCount int    `json:"document_count"`
}

// CollectionCommand returns the collection subcommand group.
func CollectionCommand() *cli.Command {
	return &cli.Command{
		Name:    "collection",
		Aliases: []string{"coll"},
		Usage:   "Manage knowledge-base collections",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List collections",
				Action: collectionList,
			},
			{
				Name:      "get",
				Usage:     "Show one collection",
				ArgsUsage: "COLLECTION_ID",
				Action:    collectionGet,
			},
			{
				Name:      "create",
				Usage:     "Create a collection",
				ArgsUsage: "COLLECTION_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "Display name",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "description",
						Usage: "Description",
					},
					&cli.StringFlag{
						Name:  "visibility",
						Usage: "private or public",
						Value: "private",
					},
				},
				Action: collectionCreate,
			},
			{
				Name:      "rename",
				Usage:     "Rename a collection",
				ArgsUsage: "COLLECTION_ID NEW_NAME",
				Action:    collectionRename,
			},
			{
				Name:      "delete",
				Usage:     "Delete a collection (a backup is taken first)",
				ArgsUsage: "COLLECTION_ID",
				Action:    collectionDelete,
			},
		},
	}
}

func collectionList(c *cli.Context) error {
	resp, err := clientFor(c).Get(c.Context, "/collections")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Collections []collectionRow `json:"collections"`
		Count       int             `json:"count"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	if !tableMode(c) {
		return formatterFor(c).Format(os.Stdout, result.Collections)
	}

	table := &output.Table{
		Headers: []string{"ID", "NAME", "VISIBILITY", "DOCUMENTS", "DESCRIPTION"},
	}
	for _, coll := range result.Collections {
		table.AddRow(
			coll.ID,
			coll.Name,
			coll.Visibility,
			fmt.Sprintf("%d", coll.DocumentCount),
			output.Dash(coll.Description),
		)
	}
	if err := table.Render(os.Stdout); err != nil {
		return err
	}
	fmt.Printf("\nTotal: %d collections\n", result.Count)
	return nil
}

func collectionGet(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("collection ID required")
	}

	resp, err := clientFor(c).Get(c.Context, "/collections/"+id)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result map[string]any
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	return formatterFor(c).Format(os.Stdout, result)
}

func collectionCreate(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("collection ID required")
	}

	body := map[string]string{
		"id":          id,
		"name":        c.String("name"),
		"description": c.String("description"),
		"visibility":  c.String("visibility"),
	}
	resp, err := clientFor(c).Post(c.Context, "/collections", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result map[string]any
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	fmt.Printf("collection %s created\n", id)
	return nil
}

func collectionRename(c *cli.Context) error {
	id, name := c.Args().Get(0), c.Args().Get(1)
	if id == "" || name == "" {
		return fmt.Errorf("collection ID and new name required")
	}

	resp, err := clientFor(c).Post(c.Context, "/collections/"+id+"/rename", map[string]string{"name": name})
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if err := connection.ParseResponse(resp, nil); err != nil {
		return err
	}
	fmt.Printf("collection %s renamed to %q\n", id, name)
	return nil
}

func collectionDelete(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("collection ID required")
	}

	resp, err := clientFor(c).Delete(c.Context, "/collections/"+id)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if err := connection.ParseResponse(resp, nil); err != nil {
		return err
	}
	fmt.Printf("collection %s deleted\n", id)
	return nil
}
