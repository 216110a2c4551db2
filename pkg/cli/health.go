package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/vision"
)

var healthCommand = &cli.Command{
	Name:  "health",
	Usage: "Check that the detection service is reachable",
	Description: `Probe GET /health of the detection service and report the
language model configuration.

Examples:
  stepwise health
  stepwise --vision-url http://10.0.0.5:8765 health`,
	Action: runHealth,
}

func runHealth(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := initLogging(c, cfg)
	w := c.App.Writer

	healthy := true
	if !cfg.Vision.Enabled {
		fmt.Fprintf(w, "  %s-%s vision: disabled\n", color(colorCyan), color(colorReset))
	} else {
		ctx, cancel := context.WithTimeout(c.Context, cfg.Vision.Timeout)
		defer cancel()
		if err := vision.NewClient(cfg.Vision, log).Health(ctx); err != nil {
			healthy = false
			fmt.Fprintf(w, "  %s✗%s vision: %s: %v\n", color(colorRed), color(colorReset), cfg.Vision.URL, err)
		} else {
			fmt.Fprintf(w, "  %s✓%s vision: %s\n", color(colorGreen), color(colorReset), cfg.Vision.URL)
		}
	}

	if cfg.LLM.Enabled {
		fmt.Fprintf(w, "  %s✓%s llm: %s %s\n", color(colorGreen), color(colorReset), cfg.LLM.Provider, cfg.LLM.Model)
	} else {
		fmt.Fprintf(w, "  %s-%s llm: disabled\n", color(colorCyan), color(colorReset))
	}

	if !healthy {
		return cli.Exit("", 1)
	}
	return nil
}
