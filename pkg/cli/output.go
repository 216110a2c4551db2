package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/report"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/scenario"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow step threshold in milliseconds (10 seconds)
const slowThresholdMs = 10000

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

func printSetupStep(c *cli.Context, msg string) {
	fmt.Fprintf(c.App.Writer, "  %s⏳%s %s\n", color(colorCyan), color(colorReset), msg)
}

func printSetupSuccess(c *cli.Context, msg string) {
	fmt.Fprintf(c.App.Writer, "  %s✓%s %s\n", color(colorGreen), color(colorReset), msg)
}

// progress prints live scenario and step results.
type progress struct {
	w io.Writer
}

func (p progress) scenarioStart(idx, total int, sc *scenario.Scenario) {
	fmt.Fprintf(p.w, "\n  %s[%d/%d]%s %s%s%s (%s)\n",
		color(colorCyan), idx+1, total, color(colorReset),
		color(colorBold), sc.Title, color(colorReset), sc.ID)
	fmt.Fprintln(p.w, "  "+strings.Repeat("─", 60))
}

func (p progress) stepComplete(_ int, out *core.StepOutcome) {
	durationMs := out.Duration.Milliseconds()
	durStr := formatDuration(durationMs)
	desc := out.Description
	if desc == "" {
		desc = out.StepID
	}
	attempts := ""
	if out.Attempts > 1 {
		attempts = fmt.Sprintf(" %s[%d attempts]%s", color(colorGray), out.Attempts, color(colorReset))
	}

	if out.Status.IsSuccess() {
		symbol := "✓"
		symbolColor := color(colorGreen)
		durColor := ""
		if durationMs >= slowThresholdMs {
			durColor = color(colorYellow)
			symbol = "⚠"
			symbolColor = color(colorYellow)
		}
		fmt.Fprintf(p.w, "    %s%s%s %s %s(%s)%s%s\n",
			symbolColor, symbol, color(colorReset), desc, durColor, durStr, color(colorReset), attempts)
		return
	}
	fmt.Fprintf(p.w, "    %s✗%s %s (%s)%s\n", color(colorRed), color(colorReset), desc, durStr, attempts)
	if reason := out.Verdict.Reason; reason != "" {
		fmt.Fprintf(p.w, "      %s╰─%s %s\n", color(colorGray), color(colorReset), reason)
	}
}

func (p progress) scenarioEnd(_ int, res *core.ScenarioResult) {
	for _, st := range res.Steps {
		if st.Status == core.StatusSkipped {
			fmt.Fprintf(p.w, "    %s-%s %s %s(skipped)%s\n",
				color(colorCyan), color(colorReset), st.Description, color(colorGray), color(colorReset))
		}
	}
	mark, markColor := "✓", color(colorGreen)
	if !res.Status.IsSuccess() {
		mark, markColor = "✗", color(colorRed)
	}
	fmt.Fprintf(p.w, "  %s%s %s%s %s%s%s\n",
		markColor, mark, color(colorReset), res.Title,
		color(colorGray), formatDuration(res.Duration.Milliseconds()), color(colorReset))
}

// printSummary prints the step totals and the per-scenario table.
func printSummary(w io.Writer, result *core.RunResult) {
	totalSteps, passedSteps, failedSteps, skippedSteps := 0, 0, 0, 0
	for _, sc := range result.Scenarios {
		totalSteps += sc.TotalSteps
		passedSteps += sc.PassedSteps
		failedSteps += sc.FailedSteps
		skippedSteps += sc.SkippedSteps
	}

	fmt.Fprintln(w)
	if passedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps passing%s (%s)\n", color(colorGreen), passedSteps, color(colorReset),
			formatDuration(result.Duration.Milliseconds()))
	}
	if failedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps failing%s\n", color(colorRed), failedSteps, color(colorReset))
	}
	if skippedSteps > 0 {
		fmt.Fprintf(w, "  %s%d steps skipped%s\n", color(colorCyan), skippedSteps, color(colorReset))
	}
	fmt.Fprintln(w)

	tableWidth := 92
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
	fmt.Fprintf(w, "  %-42s %6s %7s %6s %6s %6s %10s\n", "Scenario", "Status", "Steps", "Pass", "Fail", "Skip", "Duration")
	fmt.Fprintln(w, strings.Repeat("─", tableWidth))

	for _, sc := range result.Scenarios {
		status, statusColor := "✓ PASS", color(colorGreen)
		switch sc.Status {
		case core.StatusFailed, core.StatusErrored:
			status, statusColor = "✗ FAIL", color(colorRed)
		case core.StatusSkipped:
			status, statusColor = "- SKIP", color(colorCyan)
		}

		name := sc.Title
		if name == "" {
			name = sc.ID
		}
		if len(name) > 42 {
			name = name[:39] + "..."
		}

		fmt.Fprintf(w, "  %-42s %s%6s%s %7d %6d %6d %6d %10s\n",
			name, statusColor, status, color(colorReset),
			sc.TotalSteps, sc.PassedSteps, sc.FailedSteps, sc.SkippedSteps,
			formatDuration(sc.Duration.Milliseconds()))
	}

	fmt.Fprintln(w, strings.Repeat("─", tableWidth))
	statusStr := fmt.Sprintf("%d/%d", result.PassedScenarios, result.TotalScenarios)
	statusColor := color(colorGreen)
	if result.FailedScenarios > 0 {
		statusColor = color(colorRed)
	}
	fmt.Fprintf(w, "  %s%-42s%s %s%6s%s %7d %6d %6d %6d %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, statusStr, color(colorReset),
		totalSteps, passedSteps, failedSteps, skippedSteps,
		formatDuration(result.Duration.Milliseconds()))
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
}

// printFailures lists the failed steps of the report with their error type
// and suggestion.
func printFailures(w io.Writer, rep *report.Report) {
	first := true
	for _, sc := range rep.Scenarios {
		for _, st := range sc.Steps {
			if st.Status != report.StatusFailed || st.Error == nil {
				continue
			}
			if first {
				fmt.Fprintf(w, "\n  %sFailures%s\n", color(colorBold), color(colorReset))
				first = false
			}
			fmt.Fprintf(w, "  %s✗%s %s › %s %s[%s]%s\n", color(colorRed), color(colorReset),
				sc.ID, st.ID, color(colorGray), st.Error.Type, color(colorReset))
			fmt.Fprintf(w, "      %s\n", st.Error.Message)
			if st.Error.Suggestion != "" {
				fmt.Fprintf(w, "      %s%s%s\n", color(colorCyan), st.Error.Suggestion, color(colorReset))
			}
			for _, a := range st.Artifacts {
				fmt.Fprintf(w, "      %s%s%s\n", color(colorGray), a.Path, color(colorReset))
			}
		}
	}
}

// formatDuration formats milliseconds to a human-readable string.
// Shows milliseconds for values < 1s, seconds otherwise.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
