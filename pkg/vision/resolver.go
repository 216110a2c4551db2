package vision

import (
	"bytes"
	"context"
	"image"
	_ "image/png"
	"time"

	"go.uber.org/zap"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/llm"
)

// MaxLLMConfidence caps the confidence of model best guesses so they always
// rank below structural and detector matches.
const MaxLLMConfidence = 0.5

// Detector is the detection service.
type Detector interface {
	Predict(ctx context.Context, req PredictRequest) (*Prediction, error)
}

// Locator gives a best-guess position for a described element.
type Locator interface {
	Locate(ctx context.Context, req llm.LocateRequest) (*llm.Location, error)
}

// Options configures a Resolver.
type Options struct {
	DetectorTimeout time.Duration
	LocatorTimeout  time.Duration
}

// Resolver runs the detector and then the language model for a query.
// Either collaborator may be nil.
type Resolver struct {
	detector Detector
	locator  Locator
	opts     Options
	log      *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(detector Detector, locator Locator, opts Options, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{detector: detector, locator: locator, opts: opts, log: log.Named("vision.resolver")}
}

// Resolve locates query on the snapshot. Collaborator timeouts and failures
// count as not found.
func (r *Resolver) Resolve(ctx context.Context, snap *core.Snapshot, query string, threshold float64) (*core.ResolvedTarget, bool) {
	if snap == nil || len(snap.Screenshot) == 0 {
		return nil, false
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	if t, ok := r.detect(ctx, snap, query, threshold); ok {
		return t, true
	}
	return r.guess(ctx, snap, query)
}

func (r *Resolver) detect(ctx context.Context, snap *core.Snapshot, query string, threshold float64) (*core.ResolvedTarget, bool) {
	if r.detector == nil {
		return nil, false
	}
	classes := TargetClasses(query)
	if len(classes) == 0 {
		r.log.Debug("no detector class for query", zap.String("query", query))
		return nil, false
	}

	ctx, cancel := withTimeout(ctx, r.opts.DetectorTimeout)
	defer cancel()
	pred, err := r.detector.Predict(ctx, PredictRequest{Image: snap.Screenshot, Query: query, Threshold: threshold})
	if err != nil {
		r.log.Warn("detector unavailable", zap.String("query", query), zap.Error(err))
		return nil, false
	}
	if !pred.Accepted(threshold) {
		r.log.Debug("detector rejected", zap.String("query", query), zap.String("reason", pred.Reason),
			zap.Float64("confidence", pred.Confidence))
		return nil, false
	}

	p := toScreen(core.Point{X: pred.X, Y: pred.Y}, snap)
	t := snapTarget(snap, p)
	t.Source = core.SourceVision
	t.Query = query
	t.Confidence = pred.Confidence
	t.Class = pred.Class
	return t, true
}

func (r *Resolver) guess(ctx context.Context, snap *core.Snapshot, query string) (*core.ResolvedTarget, bool) {
	if r.locator == nil {
		return nil, false
	}
	ctx, cancel := withTimeout(ctx, r.opts.LocatorTimeout)
	defer cancel()
	loc, err := r.locator.Locate(ctx, llm.LocateRequest{
		Screenshot: snap.Screenshot,
		Query:      query,
		Width:      snap.Width,
		Height:     snap.Height,
	})
	if err != nil {
		r.log.Warn("model could not locate target", zap.String("query", query), zap.Error(err))
		return nil, false
	}

	t := snapTarget(snap, loc.Point)
	t.Source = core.SourceVisionLLM
	t.Query = query
	t.Confidence = min(loc.Confidence, MaxLLMConfidence)
	return t, true
}

// snapTarget builds a target at p whose box is the smallest clickable node
// containing p, if the tree has one.
func snapTarget(snap *core.Snapshot, p core.Point) *core.ResolvedTarget {
	t := &core.ResolvedTarget{Point: p}
	if snap.Tree == nil {
		return t
	}
	if e := snap.Tree.SmallestClickableAt(p); e != nil {
		box := e.Bounds
		t.Box = &box
		t.Element = e
	}
	return t
}

// toScreen scales a screenshot-pixel point to the logical screen size.
func toScreen(p core.Point, snap *core.Snapshot) core.Point {
	if snap.Width <= 0 || snap.Height <= 0 {
		return p
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(snap.Screenshot))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 || (cfg.Width == snap.Width && cfg.Height == snap.Height) {
		return p
	}
	return core.Point{X: p.X * snap.Width / cfg.Width, Y: p.Y * snap.Height / cfg.Height}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
