// Package config handles layered configuration for the step runner.
//
// Values come from, in increasing precedence: built-in defaults, a YAML
// config file (stepwise.yaml), and STEPWISE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides (STEPWISE_APPIUM_URL, ...).
const EnvPrefix = "STEPWISE"

// Config is the root configuration.
type Config struct {
	Appium AppiumConfig `mapstructure:"appium" yaml:"appium"`
	Vision VisionConfig `mapstructure:"vision" yaml:"vision"`
	LLM    LLMConfig    `mapstructure:"llm" yaml:"llm"`
	Runner RunnerConfig `mapstructure:"runner" yaml:"runner"`
	Logger LoggerConfig `mapstructure:"logger" yaml:"logger"`
	Output OutputConfig `mapstructure:"output" yaml:"output"`
}

// AppiumConfig describes the device-automation session.
type AppiumConfig struct {
	URL               string        `mapstructure:"url" yaml:"url"`
	Platform          string        `mapstructure:"platform" yaml:"platform"`
	AutomationName    string        `mapstructure:"automation_name" yaml:"automation_name"`
	DeviceName        string        `mapstructure:"device_name" yaml:"device_name"`
	AppPackage        string        `mapstructure:"app_package" yaml:"app_package"`
	AppActivity       string        `mapstructure:"app_activity" yaml:"app_activity"`
	NoReset           bool          `mapstructure:"no_reset" yaml:"no_reset"`
	NewCommandTimeout int           `mapstructure:"new_command_timeout" yaml:"new_command_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// VisionConfig describes the detection service.
type VisionConfig struct {
	Enabled             bool          `mapstructure:"enabled" yaml:"enabled"`
	URL                 string        `mapstructure:"url" yaml:"url"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	Timeout             time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries          int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// LLMConfig describes the multimodal language model.
type LLMConfig struct {
	Enabled           bool          `mapstructure:"enabled" yaml:"enabled"`
	Provider          string        `mapstructure:"provider" yaml:"provider"` // openai, anthropic, gemini
	Model             string        `mapstructure:"model" yaml:"model"`
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature       float64       `mapstructure:"temperature" yaml:"temperature"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	ImageMaxPixels    int           `mapstructure:"image_max_pixels" yaml:"image_max_pixels"`
	ImageMinPixels    int           `mapstructure:"image_min_pixels" yaml:"image_min_pixels"`
}

// RunnerConfig tunes the step state machine.
type RunnerConfig struct {
	MaxAttempts           int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryDelay            time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	ActionTimeout         time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	SettleDelay           time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	FuzzyPoints           int           `mapstructure:"fuzzy_points" yaml:"fuzzy_points"`
	SimilarityThreshold   float64       `mapstructure:"similarity_threshold" yaml:"similarity_threshold"`
	PreCheck              bool          `mapstructure:"precheck" yaml:"precheck"`
	ResetBetweenScenarios bool          `mapstructure:"reset_between_scenarios" yaml:"reset_between_scenarios"`
	ContinueOnFailure     bool          `mapstructure:"continue_on_failure" yaml:"continue_on_failure"`
}

// LoggerConfig configures the zap logger.
type LoggerConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"` // console or json
	File       string `mapstructure:"file" yaml:"file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
	AddSource  bool   `mapstructure:"add_source" yaml:"add_source"`
}

// OutputConfig controls where run reports are written.
type OutputConfig struct {
	Dir              string `mapstructure:"dir" yaml:"dir"`
	CaptureOnFailure bool   `mapstructure:"capture_on_failure" yaml:"capture_on_failure"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	// -- Appium --
	v.SetDefault("appium.url", "http://127.0.0.1:4723")
	v.SetDefault("appium.platform", "Android")
	v.SetDefault("appium.automation_name", "UiAutomator2")
	v.SetDefault("appium.device_name", "Android Emulator")
	v.SetDefault("appium.app_package", "")
	v.SetDefault("appium.app_activity", "")
	v.SetDefault("appium.no_reset", true)
	v.SetDefault("appium.new_command_timeout", 300)
	v.SetDefault("appium.request_timeout", "60s")

	// -- Vision --
	v.SetDefault("vision.enabled", true)
	v.SetDefault("vision.url", "http://127.0.0.1:8765")
	v.SetDefault("vision.confidence_threshold", 0.90)
	v.SetDefault("vision.timeout", "5s")
	v.SetDefault("vision.max_retries", 1)

	// -- LLM --
	v.SetDefault("llm.enabled", true)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "qwen2.5-vl-7b-instruct")
	v.SetDefault("llm.base_url", "https://dashscope-intl.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.max_tokens", 512)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.requests_per_minute", 30)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.image_max_pixels", 1280*28*28)
	v.SetDefault("llm.image_min_pixels", 256*28*28)

	// -- Runner --
	v.SetDefault("runner.max_attempts", 3)
	v.SetDefault("runner.retry_delay", "1500ms")
	v.SetDefault("runner.action_timeout", "3s")
	v.SetDefault("runner.settle_delay", "800ms")
	v.SetDefault("runner.fuzzy_points", 5)
	v.SetDefault("runner.similarity_threshold", 0.75)
	v.SetDefault("runner.precheck", false)
	v.SetDefault("runner.reset_between_scenarios", true)
	v.SetDefault("runner.continue_on_failure", false)

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.add_source", false)

	// -- Output --
	v.SetDefault("output.dir", "reports")
	v.SetDefault("output.capture_on_failure", true)
}

// NewViper returns a viper instance with defaults, env binding and the
// standard config search path. path, when non-empty, names an explicit file.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Provider keys are usually exported under their vendor names.
	_ = v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "DASHSCOPE_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("stepwise")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		for _, dir := range SearchDirs() {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

// Load reads the configuration. An empty path searches the default locations.
func Load(path string) (*Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	return NewConfigFromViper(v)
}

// LoadFromDir looks for stepwise.yaml or stepwise.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"stepwise.yaml", "stepwise.yml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}
	return Load("")
}

// NewDefaultConfig returns the configuration built from defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper unmarshals and validates v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Appium.URL == "" {
		return fmt.Errorf("appium.url is required")
	}
	if c.Runner.MaxAttempts <= 0 {
		return fmt.Errorf("runner.max_attempts must be a positive integer")
	}
	if c.Runner.FuzzyPoints <= 0 {
		return fmt.Errorf("runner.fuzzy_points must be a positive integer")
	}
	if c.Runner.SimilarityThreshold <= 0 || c.Runner.SimilarityThreshold > 1 {
		return fmt.Errorf("runner.similarity_threshold must be in (0, 1]")
	}
	if c.Vision.ConfidenceThreshold < 0 || c.Vision.ConfidenceThreshold > 1 {
		return fmt.Errorf("vision.confidence_threshold must be in [0, 1]")
	}
	if c.Vision.Enabled && c.Vision.URL == "" {
		return fmt.Errorf("vision.url is required when vision is enabled")
	}
	if c.LLM.Enabled {
		switch c.LLM.Provider {
		case "openai", "anthropic", "gemini":
		default:
			return fmt.Errorf("llm.provider %q is not supported (openai, anthropic, gemini)", c.LLM.Provider)
		}
	}
	return nil
}
