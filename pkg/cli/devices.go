package cli

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/config"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/device"
)

var devicesCommand = &cli.Command{
	Name:  "devices",
	Usage: "List Android devices visible to adb",
	Description: `List the devices adb reports, with model and SDK level for the ones
that are ready. When appium.app_package is configured, also show whether
the app under test is installed.

Examples:
  stepwise devices
  stepwise devices --json`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output in JSON format",
		},
	},
	Action: runDevices,
}

type deviceRow struct {
	device.Info
	AppInstalled *bool `json:"app_installed,omitempty"`
}

func runDevices(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	ctx := c.Context
	w := c.App.Writer

	infos, err := device.ListDevices(ctx)
	if err != nil {
		return err
	}

	rows := make([]deviceRow, 0, len(infos))
	for _, info := range infos {
		row := deviceRow{Info: info}
		if info.Ready() {
			if d, err := device.New(ctx, info.Serial); err == nil {
				props := d.Info(ctx)
				row.SDK, row.Brand = props.SDK, props.Brand
				if props.Model != "" {
					row.Model = props.Model
				}
				row.IsEmulator = props.IsEmulator
				if pkg := cfg.Appium.AppPackage; pkg != "" {
					installed := d.IsInstalled(ctx, pkg)
					row.AppInstalled = &installed
				}
			}
		}
		rows = append(rows, row)
	}

	if c.Bool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintf(w, "  %sNo devices found%s\n", color(colorGray), color(colorReset))
		return nil
	}
	for _, r := range rows {
		mark, markColor := "✓", color(colorGreen)
		if !r.Ready() {
			mark, markColor = "✗", color(colorRed)
		}
		kind := "device"
		if r.IsEmulator {
			kind = "emulator"
		}
		fmt.Fprintf(w, "  %s%s%s %-20s %-10s %s", markColor, mark, color(colorReset), r.Serial, r.State, kind)
		if r.Model != "" {
			fmt.Fprintf(w, "  %s", r.Model)
		}
		if r.SDK != "" {
			fmt.Fprintf(w, " (SDK %s)", r.SDK)
		}
		if r.AppInstalled != nil {
			state := "not installed"
			if *r.AppInstalled {
				state = "installed"
			}
			fmt.Fprintf(w, "  %s%s %s%s", color(colorGray), cfg.Appium.AppPackage, state, color(colorReset))
		}
		fmt.Fprintln(w)
	}
	return nil
}
