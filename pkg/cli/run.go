package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/config"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/executor"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/logger"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/report"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/scenario"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/validator"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run scenario files on a device",
	ArgsUsage: "<scenario-file-or-folder>...",
	Description: `Run one or more scenario files on the connected device.

Scenario files list a business goal and scenarios of steps:

  business_goal: Increase engagement on the feed
  scenarios:
    - scenario_id: like
      scenario_title: Like a video
      steps:
        - step_id: like
          action_type: tap
          target: Like button
          expected_state: like count incremented

The report is written to <output.dir>/<run-id>/report.json.

Examples:
  stepwise run scenarios.yaml
  stepwise run scenarios/ --max-attempts 5
  stepwise run scenarios/ --scenario 'like*'
  stepwise run like.yaml -e COMMENT="Nice video"`,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Variables available to ${...} expressions (KEY=VALUE)",
		},
		&cli.StringSliceFlag{
			Name:    "scenario",
			Aliases: []string{"s"},
			Usage:   "Only run scenarios whose id matches (glob, repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "skip-scenario",
			Usage: "Skip scenarios whose id matches (glob, repeatable)",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports (overrides output.dir)",
		},
		&cli.IntFlag{
			Name:  "max-attempts",
			Usage: "Attempts per step (overrides runner.max_attempts)",
		},
		&cli.BoolFlag{
			Name:  "continue-on-failure",
			Usage: "Keep running a scenario after a failed step",
		},
		&cli.BoolFlag{
			Name:  "no-reset",
			Usage: "Do not relaunch the app between scenarios",
		},
		&cli.BoolFlag{
			Name:  "precheck",
			Usage: "Skip steps whose expected state already holds",
		},
	},
	Action: runScenarios,
}

func applyRunFlags(c *cli.Context, cfg *config.Config) {
	if v := c.String("output"); v != "" {
		cfg.Output.Dir = v
	}
	if v := c.Int("max-attempts"); v > 0 {
		cfg.Runner.MaxAttempts = v
	}
	if c.Bool("continue-on-failure") {
		cfg.Runner.ContinueOnFailure = true
	}
	if c.Bool("no-reset") {
		cfg.Runner.ResetBetweenScenarios = false
	}
	if c.Bool("precheck") {
		cfg.Runner.PreCheck = true
	}
}

func runScenarios(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one scenario file or folder is required")
	}
	w := c.App.Writer

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	applyRunFlags(c, cfg)
	for k, v := range parseEnvVars(c.StringSlice("env")) {
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}

	plan, files, err := loadPlan(w, c.Args().Slice(), c.StringSlice("scenario"), c.StringSlice("skip-scenario"))
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	runDir := filepath.Join(cfg.Output.Dir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if cfg.Logger.File == "" {
		cfg.Logger.File = filepath.Join(runDir, "stepwise.log")
	}
	log := initLogging(c, cfg)
	defer logger.Sync()

	log.Info("run requested", zap.String("run_id", runID), zap.Strings("files", files),
		zap.Int("scenarios", len(plan.Scenarios)), zap.Int("steps", plan.StepCount()))

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(w, "\n  %sstepwise %s%s · run %s\n", color(colorBold), Version, color(colorReset), runID)
	if plan.BusinessGoal != "" {
		fmt.Fprintf(w, "  %s%s%s\n", color(colorGray), plan.BusinessGoal, color(colorReset))
	}
	fmt.Fprintln(w)

	dev, closeDevice, err := openDevice(ctx, c, cfg, log)
	if err != nil {
		return err
	}
	defer closeDevice()

	st, err := newStack(ctx, cfg, dev, plan.BusinessGoal, log)
	if err != nil {
		return err
	}
	visionName, llmName := st.describe(cfg)

	rec, err := report.NewRecorder(runDir, plan, report.BuilderConfig{
		RunID:         runID,
		SourceFiles:   files,
		Device:        deviceInfo(ctx, c, cfg, dev),
		RunnerVersion: Version,
		DriverName:    c.String("driver"),
		Vision:        visionName,
		LLM:           llmName,
		MaxAttempts:   cfg.Runner.MaxAttempts,
	}, log)
	if err != nil {
		return err
	}

	out := progress{w: w}
	runner := executor.New(st.steps, dev, executor.RunnerConfig{
		RunID:                 runID,
		MaxAttempts:           cfg.Runner.MaxAttempts,
		ResetBetweenScenarios: cfg.Runner.ResetBetweenScenarios,
		ContinueOnFailure:     cfg.Runner.ContinueOnFailure,
		OnScenarioStart: func(idx, total int, sc *scenario.Scenario) {
			rec.ScenarioStarted(idx, total, sc)
			out.scenarioStart(idx, total, sc)
		},
		OnStepStart: rec.StepStarted,
		OnStepComplete: func(idx int, o *core.StepOutcome) {
			rec.StepCompleted(idx, o)
			out.stepComplete(idx, o)
		},
		OnScenarioEnd: func(idx int, res *core.ScenarioResult) {
			rec.ScenarioEnded(idx, res)
			out.scenarioEnd(idx, res)
		},
	}, log)

	rec.Start()
	result, err := runner.Run(ctx, plan)
	if err != nil {
		return err
	}
	if err := rec.Finish(result); err != nil {
		log.Warn("report generation failed", zap.Error(err))
		fmt.Fprintf(w, "  %s⚠%s Warning: failed to generate HTML report: %v\n", color(colorYellow), color(colorReset), err)
	}
	log.Info("run completed", zap.Int("passed", result.PassedScenarios), zap.Int("failed", result.FailedScenarios))

	printSummary(w, result)
	if rep := rec.Writer().Snapshot(); rep != nil {
		printFailures(w, rep)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Reports:")
	fmt.Fprintf(w, "    JSON:   %s\n", filepath.Join(runDir, report.FileName))
	fmt.Fprintf(w, "    HTML:   %s\n", filepath.Join(runDir, "report.html"))
	fmt.Fprintf(w, "    Log:    %s\n", cfg.Logger.File)
	fmt.Fprintln(w)

	if ctx.Err() != nil {
		return cli.Exit("run interrupted", 130)
	}
	if !result.Success() {
		return cli.Exit("", 1)
	}
	return nil
}

// loadPlan validates every scenario file under paths and joins the selected
// scenarios into one plan. All validation errors are printed before failing.
func loadPlan(w io.Writer, paths, include, exclude []string) (*scenario.Plan, []string, error) {
	res := validator.New(include, exclude).Validate(paths...)
	if !res.IsValid() {
		printValidationErrors(w, res.Errors)
		return nil, nil, fmt.Errorf("%d validation error(s)", len(res.Errors))
	}
	return res.Plan, res.Files, nil
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, env := range envs {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}
