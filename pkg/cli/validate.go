package cli

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/validator"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Check scenario files without connecting to a device",
	ArgsUsage: "<scenario-file-or-folder>...",
	Description: `Parse every scenario file, check each step and compile expect_script
expressions. All errors are reported at once.

Examples:
  stepwise validate scenarios/
  stepwise validate like.yaml --scenario like`,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "scenario",
			Aliases: []string{"s"},
			Usage:   "Only check scenarios whose id matches (glob, repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "skip-scenario",
			Usage: "Skip scenarios whose id matches (glob, repeatable)",
		},
	},
	Action: runValidate,
}

func runValidate(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one scenario file or folder is required")
	}
	w := c.App.Writer

	res := validator.New(c.StringSlice("scenario"), c.StringSlice("skip-scenario")).Validate(c.Args().Slice()...)
	for _, f := range res.Files {
		fmt.Fprintf(w, "  %s%s%s\n", color(colorGray), f, color(colorReset))
	}
	if !res.IsValid() {
		printValidationErrors(w, res.Errors)
		return cli.Exit("", 1)
	}
	fmt.Fprintf(w, "  %s✓%s %d scenarios, %d steps\n",
		color(colorGreen), color(colorReset), len(res.Plan.Scenarios), res.Plan.StepCount())
	return nil
}

func printValidationErrors(w io.Writer, errs []error) {
	fmt.Fprintf(w, "\n  %s%d validation error(s):%s\n", color(colorRed), len(errs), color(colorReset))
	for _, err := range errs {
		fmt.Fprintf(w, "    %s✗%s %v\n", color(colorRed), color(colorReset), err)
	}
}
