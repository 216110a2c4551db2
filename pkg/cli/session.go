package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/action"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/config"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/driver/appium"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/driver/mock"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/evaluator"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/executor"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/llm"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/locator"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/logger"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/perception"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/recovery"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/report"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/vision"
)

// loadConfig reads the configuration and applies the global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if v := c.String("appium-url"); v != "" {
		cfg.Appium.URL = v
	}
	if v := c.String("vision-url"); v != "" {
		cfg.Vision.URL = v
		cfg.Vision.Enabled = true
	}
	if v := c.String("llm-provider"); v != "" {
		cfg.LLM.Provider = v
	}
	if c.Bool("no-vision") {
		cfg.Vision.Enabled = false
	}
	if c.Bool("no-llm") {
		cfg.LLM.Enabled = false
	}
	if c.Bool("verbose") {
		cfg.Logger.Level = "debug"
	}
	if cfg.LLM.Enabled && cfg.LLM.APIKey == "" {
		fmt.Fprintf(c.App.ErrWriter, "  %s⚠%s llm.api_key is not set, language model disabled\n",
			color(colorYellow), color(colorReset))
		cfg.LLM.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogging starts the global logger. Console output is only shown with
// --verbose; the rotating file, when configured, always receives entries.
func initLogging(c *cli.Context, cfg *config.Config) *zap.Logger {
	var console zapcore.WriteSyncer = zapcore.AddSync(io.Discard)
	if c.Bool("verbose") {
		console = zapcore.Lock(os.Stderr)
	}
	logger.Init(cfg.Logger, console)
	return logger.L()
}

// openDevice connects the driver selected by --driver. The returned close
// function ends the session.
func openDevice(ctx context.Context, c *cli.Context, cfg *config.Config, log *zap.Logger) (core.Device, func(), error) {
	switch name := c.String("driver"); name {
	case "mock":
		dev := mock.New(mock.Config{}, mock.FeedScreen(1204))
		dev.OnAction(mock.LikeCounter(1204))
		return dev, func() {}, nil
	case "appium", "":
		printSetupStep(c, fmt.Sprintf("Connecting to Appium at %s...", cfg.Appium.URL))
		drv, err := appium.Connect(ctx, cfg.Appium, log)
		if err != nil {
			return nil, nil, fmt.Errorf("appium session: %w", err)
		}
		printSetupSuccess(c, "Appium session created")
		closeFn := func() {
			cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := drv.Close(cctx); err != nil {
				log.Warn("closing appium session", zap.Error(err))
			}
		}
		return drv, closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown driver %q (supported: appium, mock)", name)
	}
}

// stack is the set of collaborators a command drives.
type stack struct {
	steps    *executor.StepRunner
	locator  *locator.Resolver
	vision   *vision.Resolver
	detector vision.Detector
	model    *llm.Client
}

// newStack wires the step runner for dev from cfg. Disabled services are
// left out of the vision resolver and the judge chain.
func newStack(ctx context.Context, cfg *config.Config, dev core.Device, goal string, log *zap.Logger) (*stack, error) {
	s := &stack{locator: locator.New(cfg.Runner.SimilarityThreshold)}

	var detector vision.Detector
	if cfg.Vision.Enabled {
		detector = vision.NewClient(cfg.Vision, log)
		s.detector = detector
	}

	var (
		locModel   vision.Locator
		judgeModel evaluator.ModelJudge
	)
	if cfg.LLM.Enabled {
		model, err := llm.NewProvider(ctx, cfg.LLM, log)
		if err != nil {
			return nil, err
		}
		s.model = model
		locModel, judgeModel = model, model
	}

	s.vision = vision.NewResolver(detector, locModel, vision.Options{
		DetectorTimeout: cfg.Vision.Timeout,
		LocatorTimeout:  cfg.LLM.Timeout,
	}, log)

	c := executor.Collaborators{
		Perception: perception.New(dev, cfg.Appium.RequestTimeout, log),
		Locator:    s.locator,
		Actions:    action.New(dev, action.Options{ActionTimeout: cfg.Runner.ActionTimeout}, log),
		Evaluator: evaluator.New(
			evaluator.DefaultJudges(detector, cfg.Vision.ConfidenceThreshold, judgeModel, log),
			evaluator.Options{BusinessGoal: goal}, log),
		Recovery: recovery.New(dev, s.locator, recovery.Options{ActionTimeout: cfg.Runner.ActionTimeout}, log),
	}
	if detector != nil || locModel != nil {
		c.Vision = s.vision
	}

	s.steps = executor.NewStepRunner(c, executor.StepConfig{
		RetryDelay:       cfg.Runner.RetryDelay,
		SettleDelay:      cfg.Runner.SettleDelay,
		FuzzyPoints:      cfg.Runner.FuzzyPoints,
		VisionThreshold:  cfg.Vision.ConfidenceThreshold,
		PreCheck:         cfg.Runner.PreCheck,
		CaptureOnFailure: cfg.Output.CaptureOnFailure,
	}, log)
	return s, nil
}

// describe names the services of s for the run report.
func (s *stack) describe(cfg *config.Config) (visionName, llmName string) {
	if s.detector != nil {
		visionName = cfg.Vision.URL
	}
	if s.model != nil {
		llmName = s.model.Name()
		if cfg.LLM.Model != "" {
			llmName += "/" + cfg.LLM.Model
		}
	}
	return visionName, llmName
}

// deviceInfo describes the session for the run report.
func deviceInfo(ctx context.Context, c *cli.Context, cfg *config.Config, dev core.Device) report.Device {
	d := report.Device{
		Name:       cfg.Appium.DeviceName,
		Platform:   cfg.Appium.Platform,
		AppPackage: cfg.Appium.AppPackage,
		ServerURL:  cfg.Appium.URL,
	}
	if c.String("driver") == "mock" {
		d.Name, d.ServerURL = "mock", ""
	}
	if w, h, err := dev.ScreenSize(ctx); err == nil {
		d.Width, d.Height = w, h
	}
	return d
}
