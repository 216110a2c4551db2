package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/perception"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/scenario"
)

var locateCommand = &cli.Command{
	Name:      "locate",
	Usage:     "Resolve a target description on the current screen",
	ArgsUsage: "<target description>",
	Description: `Resolve a target the way a step would: the UI tree first, then the
detection service and the language model on the screenshot.

With --act the target is also acted on as an ad-hoc step and judged
against a generic expected state for the action.

Examples:
  stepwise locate "Like button"
  stepwise locate --act "Like button"
  stepwise locate --act --action type --text "Nice video" "Add comment"`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "act",
			Usage: "Run an ad-hoc step on the target",
		},
		&cli.StringFlag{
			Name:  "action",
			Usage: "Action for --act (tap, type, ...)",
			Value: string(scenario.ActionTap),
		},
		&cli.StringFlag{
			Name:  "text",
			Usage: "Text for a type action",
		},
		&cli.StringFlag{
			Name:  "expect",
			Usage: "Expected state for --act (default depends on the action)",
		},
	},
	Action: runLocate,
}

func runLocate(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("a target description is required")
	}
	query := c.Args().First()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := initLogging(c, cfg)
	ctx := c.Context
	w := c.App.Writer

	dev, closeDevice, err := openDevice(ctx, c, cfg, log)
	if err != nil {
		return err
	}
	defer closeDevice()

	st, err := newStack(ctx, cfg, dev, "", log)
	if err != nil {
		return err
	}

	if c.Bool("act") {
		return runAdHocStep(c, st, query)
	}

	snap, err := perception.New(dev, cfg.Appium.RequestTimeout, log).Capture(ctx)
	if err != nil {
		return fmt.Errorf("capture screen: %w", err)
	}
	target, ok := st.locator.Resolve(snap.Tree, query)
	if !ok {
		target, ok = st.vision.Resolve(ctx, snap, query, cfg.Vision.ConfidenceThreshold)
	}
	if !ok {
		fmt.Fprintf(w, "%s✗%s %s: %q\n", color(colorRed), color(colorReset), core.ReasonUnresolvedTarget, query)
		return cli.Exit("", 1)
	}
	printTarget(c, target)
	return nil
}

func printTarget(c *cli.Context, t *core.ResolvedTarget) {
	w := c.App.Writer
	fmt.Fprintf(w, "%s✓%s %s\n", color(colorGreen), color(colorReset), t)
	if t.Box != nil {
		fmt.Fprintf(w, "  box:     %s\n", formatBounds(*t.Box))
	}
	if e := t.Element; e != nil {
		fmt.Fprintf(w, "  element: %s %q %s\n", e.Class, e.Label(), e.ResourceID)
	}
	if t.Class != "" {
		fmt.Fprintf(w, "  class:   %s\n", t.Class)
	}
}

// runAdHocStep acts on query as a single step with a default expectation.
func runAdHocStep(c *cli.Context, st *stack, query string) error {
	kind, dir, ok := scenario.NormalizeAction(c.String("action"))
	if !ok {
		return fmt.Errorf("unknown action %q", c.String("action"))
	}
	expect := c.String("expect")
	if expect == "" {
		expect = scenario.DefaultExpectation(kind)
	}
	step := &scenario.Step{
		ID:            "adhoc",
		Description:   fmt.Sprintf("%s %s", kind, query),
		Action:        kind,
		Target:        query,
		Direction:     dir,
		Text:          c.String("text"),
		ExpectedState: expect,
	}
	if kind == scenario.ActionKey {
		step.Key = query
	}

	out, err := st.steps.RunStep(c.Context, step, 0)
	if err != nil {
		return err
	}
	for _, a := range out.Actions {
		if a.Target != nil && !a.Recovery {
			printTarget(c, a.Target)
			break
		}
	}
	progress{w: c.App.Writer}.stepComplete(0, out)
	if !out.Status.IsSuccess() {
		return cli.Exit("", 1)
	}
	return nil
}
