package command

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/docmesh-go/internal/cli/connection"
	"github.com/yndnr/docmesh-go/internal/cli/output"
)

// deviceRow mirrors the device fields shown in listings.
type deviceRow struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Kind         string    `json:"type"`
	Platform     string    `json:"platform"`
	IPAddress    string    `json:"ip_address"`
	Port         int       `json:"port"`
	Status       string    `json:"status"`
	Capabilities []string  `json:"capabilities"`
	LastSeen     time.Time `json:"last_seen"`
}

// DeviceCommand returns the device subcommand group.
func DeviceCommand() *cli.Command {
	return &cli.Command{
		Name:    "device",
		Aliases: []string{"dev"},
		Usage:   "Inspect discovered devices",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List known devices",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "online",
						Usage: "Only show online devices",
					},
				},
				Action: deviceList,
			},
			{
				Name:      "get",
				Usage:     "Show one device",
				ArgsUsage: "DEVICE_ID",
				Action:    deviceGet,
			},
			{
				Name:      "remove",
				Usage:     "Evict a device from the directory",
				ArgsUsage: "DEVICE_ID",
				Action:    deviceRemove,
			},
		},
	}
}

func deviceList(c *cli.Context) error {
	client := clientFor(c)

	path := "/devices"
	if c.Bool("online") {
		path += "?status=online"
	}
	resp, err := client.Get(c.Context, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Devices []deviceRow `json:"devices"`
		Count   int         `json:"count"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	if !tableMode(c) {
		return formatterFor(c).Format(os.Stdout, result.Devices)
	}

	table := &output.Table{
		Headers: []string{"ID", "NAME", "TYPE", "ADDRESS", "STATUS", "CAPABILITIES", "LAST SEEN"},
	}
	for _, d := range result.Devices {
		table.AddRow(
			output.TruncateID(d.ID),
			d.Name,
			d.Kind,
			fmt.Sprintf("%s:%d", d.IPAddress, d.Port),
			d.Status,
			output.Dash(strings.Join(d.Capabilities, ",")),
			d.LastSeen.Format("2006-01-02 15:04:05"),
		)
	}
	if err := table.Render(os.Stdout); err != nil {
		return err
	}
	fmt.Printf("\nTotal: %d devices\n", result.Count)
	return nil
}

func deviceGet(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("device ID required")
	}

	resp, err := clientFor(c).Get(c.Context, "/devices/"+id)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result map[string]any
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	return formatterFor(c).Format(os.Stdout, result)
}

func deviceRemove(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("device ID required")
	}

	resp, err := clientFor(c).Delete(c.Context, "/devices/"+id)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if err := connection.ParseResponse(resp, nil); err != nil {
		return err
	}
	fmt.Printf("device %s removed\n", id)
	return nil
}
