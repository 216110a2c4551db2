// Package cli provides the command-line interface for stepwise.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to stepwise.yaml (default: ./stepwise.yaml, then ~/.stepwise/)",
		EnvVars: []string{"STEPWISE_CONFIG"},
	},
	&cli.StringFlag{
		Name:  "appium-url",
		Usage: "Appium server URL (overrides appium.url)",
	},
	&cli.StringFlag{
		Name:  "vision-url",
		Usage: "Detection service URL (overrides vision.url)",
	},
	&cli.StringFlag{
		Name:  "llm-provider",
		Usage: "Language model provider: openai, anthropic, gemini (overrides llm.provider)",
	},
	&cli.StringFlag{
		Name:    "driver",
		Aliases: []string{"d"},
		Usage:   "Device driver to use (appium, mock)",
		Value:   "appium",
		EnvVars: []string{"STEPWISE_DRIVER"},
	},
	&cli.BoolFlag{
		Name:  "no-vision",
		Usage: "Disable the detection service",
	},
	&cli.BoolFlag{
		Name:  "no-llm",
		Usage: "Disable the language model",
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"STEPWISE_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the CLI application writing to out.
func NewApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:    "stepwise",
		Usage:   "Vision-assisted step runner for mobile apps",
		Version: Version,
		Description: `Stepwise executes natural-language test scenarios on an Android device.
Each step is resolved against the UI tree first, then against the screenshot
with a detection service and a multimodal language model, and is judged
against its expected state before the next step runs.

Examples:
  stepwise run scenarios.yaml
  stepwise --appium-url http://10.0.0.5:4723 run like.yaml comment.yaml
  stepwise validate scenarios/
  stepwise locate "Like button"
  stepwise locate --act "Like button"
  stepwise devices
  stepwise health`,
		Flags:     GlobalFlags,
		Writer:    out,
		ErrWriter: out,
		// Exit codes are applied by Execute so the app stays usable in tests.
		ExitErrHandler: func(*cli.Context, error) {},
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			hierarchyCommand,
			locateCommand,
			healthCommand,
			validateCommand,
			devicesCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	app := NewApp(os.Stdout)
	err := app.Run(os.Args)
	if err == nil {
		return
	}
	code := 1
	var exit cli.ExitCoder
	if errors.As(err, &exit) {
		code = exit.ExitCode()
	}
	if msg := err.Error(); msg != "" {
		fmt.Fprintf(os.Stderr, "Error: %v\n", msg)
	}
	os.Exit(code)
}
