package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/interrupt"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/perception"
)

var hierarchyCommand = &cli.Command{
	Name:  "hierarchy",
	Usage: "Print the parsed UI tree of the current screen",
	Description: `Print the elements of the current screen in JSON or CSV format,
followed by any interruption the screen shows.

Examples:
  stepwise hierarchy
  stepwise hierarchy --compact
  stepwise hierarchy --raw > screen.xml`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "compact",
			Usage: "Output in CSV format",
		},
		&cli.BoolFlag{
			Name:  "raw",
			Usage: "Output the page source as returned by the device",
		},
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Include elements that are not displayed",
		},
	},
	Action: runHierarchy,
}

func runHierarchy(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := initLogging(c, cfg)
	ctx := c.Context

	dev, closeDevice, err := openDevice(ctx, c, cfg, log)
	if err != nil {
		return err
	}
	defer closeDevice()

	snap, err := perception.New(dev, cfg.Appium.RequestTimeout, log).Capture(ctx)
	if err != nil {
		return fmt.Errorf("capture screen: %w", err)
	}
	w := c.App.Writer

	if c.Bool("raw") {
		fmt.Fprintln(w, snap.Tree.Raw)
		return nil
	}

	elems := snap.Tree.Visible()
	if c.Bool("all") {
		elems = snap.Tree.Elements
	}

	if c.Bool("compact") {
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"index", "class", "text", "content_desc", "resource_id", "clickable", "selected", "bounds"})
		for _, e := range elems {
			_ = cw.Write([]string{
				strconv.Itoa(e.Index), e.Class, e.Text, e.ContentDesc, e.ResourceID,
				strconv.FormatBool(e.Clickable), strconv.FormatBool(e.Selected), formatBounds(e.Bounds),
			})
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return err
		}
	} else {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(elems); err != nil {
			return err
		}
	}

	if d := interrupt.Detect(snap, nil); d.Found() {
		fmt.Fprintf(c.App.ErrWriter, "%s⚠%s interruption: %s (%s)\n",
			color(colorYellow), color(colorReset), d.Kind, d.Reason)
	}
	return nil
}

func formatBounds(b core.Bounds) string {
	return fmt.Sprintf("[%d,%d][%d,%d]", b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}
