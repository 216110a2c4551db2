// Package llm talks to multimodal language models: it asks them where a
// described element is on a screenshot and whether a step reached its
// expected state.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/config"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
)

// Supported providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// ErrNoLocation is returned by Locate when the model reports the element is not visible.
var ErrNoLocation = errors.New("llm: element not located")

// Provider is the language-model collaborator.
type Provider interface {
	Locate(ctx context.Context, req LocateRequest) (*Location, error)
	Judge(ctx context.Context, req JudgeRequest) (*Judgement, error)
}

// LocateRequest asks for the screen position of a described element.
type LocateRequest struct {
	Screenshot []byte
	Query      string
	// Logical screen size the returned point is mapped to. Zero means the
	// screenshot's own pixel size.
	Width, Height int
}

// Location is a model's best guess for an element position.
type Location struct {
	Point      core.Point
	Confidence float64
	Reason     string
}

// JudgeRequest asks whether a step reached its expected state.
type JudgeRequest struct {
	BusinessGoal    string `json:"business_goal,omitempty"`
	StepDescription string `json:"step_description"`
	ExpectedState   string `json:"expected_state_hint"`
	LastAction      string `json:"last_action_args,omitempty"`
	Screenshot      []byte `json:"-"`
}

// Recovery is the model's suggested follow-up when a step is not done.
type Recovery string

const (
	RecoveryNone            Recovery = "NONE"
	RecoveryRedoStep        Recovery = "REDO_STEP"
	RecoveryHandleInterrupt Recovery = "HANDLE_INTERRUPT"
	RecoveryRequireAuth     Recovery = "REQUIRE_AUTH"
	RecoveryGrantPermission Recovery = "GRANT_PERMISSION"
	RecoveryReplan          Recovery = "REPLAN"
	RecoveryAbort           Recovery = "ABORT"
)

// GateType classifies what blocks a step.
type GateType string

const (
	GateNone       GateType = "NONE"
	GateAuth       GateType = "AUTH"
	GatePermission GateType = "PERMISSION"
	GateAdOrOther  GateType = "AD_OR_OTHER"
)

// Judgement is the evaluator reply.
type Judgement struct {
	OK          bool     `json:"ok"`
	Recovery    Recovery `json:"recovery"`
	Reason      string   `json:"reason"`
	Suggestions []string `json:"suggestions"`
	GateType    GateType `json:"gate_type"`
	Confidence  float64  `json:"confidence"`
}

// Interruption maps the judgement onto an interruption kind, if it names one.
func (j *Judgement) Interruption() core.InterruptionKind {
	switch {
	case j.Recovery == RecoveryGrantPermission || j.GateType == GatePermission:
		return core.InterruptionPermission
	case j.Recovery == RecoveryRequireAuth || j.GateType == GateAuth:
		return core.InterruptionLoginWall
	case j.Recovery == RecoveryHandleInterrupt || j.GateType == GateAdOrOther:
		return core.InterruptionUnknown
	}
	return core.InterruptionNone
}

// APIError is a provider failure with its HTTP status. Status 0 means the
// request never got a response.
type APIError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Retryable reports whether the request may succeed when repeated.
func (e *APIError) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return !errors.Is(e.Err, context.Canceled)
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode == http.StatusRequestTimeout:
		return true
	default:
		return e.StatusCode >= 500
	}
}

// prompt is a single-turn multimodal request.
type prompt struct {
	System      string
	User        string
	Image       []byte // PNG, optional
	MaxTokens   int
	Temperature float64
}

// backend is a provider SDK adapter.
type backend interface {
	name() string
	complete(ctx context.Context, p prompt) (string, error)
}

// Client implements Provider on top of a backend with rate limiting,
// retries and screenshot downscaling.
type Client struct {
	backend     backend
	limiter     *rate.Limiter
	maxRetries  int
	timeout     time.Duration
	maxTokens   int
	temperature float64
	maxPixels   int
	minPixels   int
	retryWait   time.Duration
	log         *zap.Logger
}

func newClient(b backend, cfg config.LLMConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	return &Client{
		backend:     b,
		limiter:     rate.NewLimiter(limit, 1),
		maxRetries:  max(cfg.MaxRetries, 0),
		timeout:     cfg.Timeout,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		maxPixels:   cfg.ImageMaxPixels,
		minPixels:   cfg.ImageMinPixels,
		retryWait:   500 * time.Millisecond,
		log:         log.Named("llm." + b.name()),
	}
}

// Name returns the backend name.
func (c *Client) Name() string { return c.backend.name() }

type locateReply struct {
	Found      *bool   `json:"found"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Locate asks the model for the center of the described element.
func (c *Client) Locate(ctx context.Context, req LocateRequest) (*Location, error) {
	if len(req.Screenshot) == 0 {
		return nil, errors.New("llm: locate needs a screenshot")
	}
	img := PrepareImage(req.Screenshot, c.maxPixels, c.minPixels)

	reply, err := c.complete(ctx, prompt{
		System: locateSystemPrompt,
		User:   locateUserPrompt(req.Query, img.Width, img.Height),
		Image:  img.Data,
	})
	if err != nil {
		return nil, err
	}
	parsed, err := ParseJSON[locateReply](reply)
	if err != nil {
		return nil, err
	}
	if parsed.Found != nil && !*parsed.Found {
		return nil, fmt.Errorf("%w: %s", ErrNoLocation, parsed.Reason)
	}

	p := core.Point{X: int(parsed.X), Y: int(parsed.Y)}
	if img.Width > 0 && (p.X < 0 || p.Y < 0 || p.X >= img.Width || p.Y >= img.Height) {
		return nil, fmt.Errorf("%w: point (%d,%d) outside %dx%d image", ErrNoLocation, p.X, p.Y, img.Width, img.Height)
	}
	loc := &Location{
		Point:      img.ToScreen(p, req.Width, req.Height),
		Confidence: clampUnit(parsed.Confidence),
		Reason:     parsed.Reason,
	}
	c.log.Debug("located element", zap.String("query", req.Query),
		zap.Int("x", loc.Point.X), zap.Int("y", loc.Point.Y), zap.Float64("confidence", loc.Confidence))
	return loc, nil
}

// Judge asks the model whether the step is done on the current screen.
func (c *Client) Judge(ctx context.Context, req JudgeRequest) (*Judgement, error) {
	user, err := judgeUserPrompt(req)
	if err != nil {
		return nil, err
	}
	var image []byte
	if len(req.Screenshot) > 0 {
		image = PrepareImage(req.Screenshot, c.maxPixels, c.minPixels).Data
	}

	reply, err := c.complete(ctx, prompt{System: judgeSystemPrompt, User: user, Image: image})
	if err != nil {
		return nil, err
	}
	j, err := ParseJSON[Judgement](reply)
	if err != nil {
		return nil, err
	}
	j.Recovery = Recovery(strings.ToUpper(strings.TrimSpace(string(j.Recovery))))
	j.GateType = GateType(strings.ToUpper(strings.TrimSpace(string(j.GateType))))
	if j.Recovery == "" {
		j.Recovery = RecoveryNone
		if !j.OK {
			j.Recovery = RecoveryRedoStep
		}
	}
	if j.GateType == "" {
		j.GateType = GateNone
	}
	j.Confidence = clampUnit(j.Confidence)
	return j, nil
}

// complete sends p with rate limiting and retries transient failures.
func (c *Client) complete(ctx context.Context, p prompt) (string, error) {
	if p.MaxTokens == 0 {
		p.MaxTokens = c.maxTokens
	}
	p.Temperature = c.temperature

	var reply string
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if c.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}
		defer cancel()

		start := time.Now()
		text, err := c.backend.complete(callCtx, p)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && !apiErr.Retryable() {
				return backoff.Permanent(err)
			}
			c.log.Warn("model request failed, retrying", zap.Error(err))
			return err
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%s: empty reply", c.backend.name())
		}
		c.log.Debug("model reply", zap.Duration("duration", time.Since(start)), zap.Int("chars", len(text)))
		reply = text
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryWait
	b.MaxInterval = 10 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}
	return reply, nil
}

func clampUnit(v float64) float64 {
	return max(0, min(v, 1))
}
