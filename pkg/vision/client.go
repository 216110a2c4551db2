// Package vision is the detector-backed fallback for targets the UI tree
// cannot resolve.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/config"
	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
)

// DefaultThreshold is the minimum detector confidence accepted as a match.
const DefaultThreshold = 0.90

// PredictRequest is one detection query.
type PredictRequest struct {
	Image     []byte // PNG screenshot
	Query     string
	Threshold float64
}

// Prediction is the detector reply.
type Prediction struct {
	OK         bool     `json:"ok"`
	Match      bool     `json:"match"`
	X          int      `json:"x"`
	Y          int      `json:"y"`
	Class      string   `json:"cls"`
	Confidence float64  `json:"confidence"`
	Targets    []string `json:"targets"`
	Reason     string   `json:"reason"`
	LatencyMS  int      `json:"latency_ms"`
}

// Accepted reports whether the prediction is a match at or above threshold.
func (p *Prediction) Accepted(threshold float64) bool {
	return p != nil && p.OK && p.Match && p.Confidence >= threshold
}

// Client calls the detection service over HTTP.
type Client struct {
	baseURL    string
	http       *http.Client
	maxRetries int
	retryWait  time.Duration
	log        *zap.Logger
}

// NewClient creates a client for the service at cfg.URL.
func NewClient(cfg config.VisionConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		http:       &http.Client{Timeout: timeout},
		maxRetries: max(cfg.MaxRetries, 0),
		retryWait:  200 * time.Millisecond,
		log:        log.Named("vision"),
	}
}

// Health checks GET /health for {"ok": true}.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return core.NewTransportError("vision", err)
	}
	defer resp.Body.Close()

	var body struct {
		OK bool `json:"ok"`
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vision health: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("vision health: %w", err)
	}
	if !body.OK {
		return fmt.Errorf("vision health: service reports not ok")
	}
	return nil
}

// Predict posts the screenshot and query to /predict.
func (c *Client) Predict(ctx context.Context, req PredictRequest) (*Prediction, error) {
	threshold := req.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	body, contentType, err := encodePredict(req.Image, req.Query, threshold)
	if err != nil {
		return nil, err
	}

	var pred *Prediction
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", contentType)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			c.log.Debug("predict request failed", zap.Error(err))
			return core.NewTransportError("vision", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return core.NewTransportError("vision", err)
		}
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("vision predict: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return err
			}
			return backoff.Permanent(err)
		}

		var p Prediction
		if err := json.Unmarshal(raw, &p); err != nil {
			return backoff.Permanent(fmt.Errorf("vision predict: decode: %w", err))
		}
		pred = &p
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryWait
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx)); err != nil {
		return nil, err
	}
	c.log.Debug("prediction",
		zap.String("query", req.Query),
		zap.Bool("match", pred.Match),
		zap.String("class", pred.Class),
		zap.Float64("confidence", pred.Confidence),
		zap.Int("latency_ms", pred.LatencyMS))
	return pred, nil
}

func encodePredict(image []byte, query string, threshold float64) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("user_query", query); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("confidence_threshold", strconv.FormatFloat(threshold, 'f', -1, 64)); err != nil {
		return nil, "", err
	}
	fw, err := mw.CreateFormFile("image", "screen.png")
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(image); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
