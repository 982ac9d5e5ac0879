package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pbaille/diary/internal/domain"
)

const (
	// DefaultEndpoint is the hosted Ekman emotion-analysis endpoint
	DefaultEndpoint = "https://ekman-emotion-analysis.p.rapidapi.com/ekman-emotion"
	DefaultHost     = "ekman-emotion-analysis.p.rapidapi.com"
	DefaultLanguage = "en"
	DefaultTimeout  = 10 * time.Second

	maxResponseBytes = 1 << 20
)

// Prediction is one mapped emotion with the model's confidence
type Prediction struct {
	Emotion    domain.Emotion `json:"emotion"`
	Confidence float64        `json:"confidence"`
}

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	Endpoint string
	APIKey   string
	Host     string
	Language string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Client classifies text via the emotion-analysis service. It holds only
// immutable configuration and is safe for concurrent use.
type Client struct {
	endpoint string
	apiKey   string
	host     string
	language string
	timeout  time.Duration
	http     *http.Client
	log      *slog.Logger
}

// New creates a new Client
func New(opts Options) *Client {
	c := &Client{
		endpoint: opts.Endpoint,
		apiKey:   opts.APIKey,
		host:     opts.Host,
		language: opts.Language,
		timeout:  opts.Timeout,
		log:      opts.Logger,
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if c.host == "" && c.endpoint == DefaultEndpoint {
		c.host = DefaultHost
	}
	if c.language == "" {
		c.language = DefaultLanguage
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	c.log = c.log.With("component", "classifier")
	// nil Transport resolves http.DefaultTransport on each request
	c.http = &http.Client{Timeout: c.timeout}
	return c
}

type analyzeRequest struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	Text     string `json:"text"`
}

type analyzeResponse struct {
	ID          string          `json:"id"`
	Predictions []rawPrediction `json:"predictions"`
}

type rawPrediction struct {
	Prediction  string  `json:"prediction"`
	Probability float64 `json:"probability"`
}

// Classify sends text to the service and returns the predictions that map to
// the emotion vocabulary, in the order the service ranked them. An answer
// with no predictions is an empty result, not an error. No retries are made.
func (c *Client) Classify(ctx context.Context, text string) ([]Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.callAPI(ctx, text)
	if err != nil {
		return nil, err
	}

	preds := mapPredictions(raw)
	c.log.Debug("classified text", "raw", len(raw), "mapped", len(preds))
	return preds, nil
}

// mapPredictions converts raw service labels to vocabulary emotions, keeping
// order and dropping labels that have no mapping.
func mapPredictions(raw []rawPrediction) []Prediction {
	out := make([]Prediction, 0, len(raw))
	for _, p := range raw {
		em, ok := domain.ParseEmotion(p.Prediction)
		if !ok {
			continue
		}
		out = append(out, Prediction{Emotion: em, Confidence: p.Probability})
	}
	return out
}

func (c *Client) callAPI(ctx context.Context, text string) ([]rawPrediction, error) {
	reqBody := []analyzeRequest{{
		ID:       uuid.New().String(),
		Language: c.language,
		Text:     text,
	}}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &Error{Op: "marshal request", Kind: KindDecode, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, &Error{Op: "create request", Kind: KindTransport, Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.apiKey)
	}
	if c.host != "" {
		req.Header.Set("X-RapidAPI-Host", c.host)
	}

	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "http request", Kind: transportKind(ctx, err), Err: err}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		kind := transportKind(ctx, err)
		c.log.Warn("emotion service request failed", "error", err, "elapsed", time.Since(start))
		return nil, &Error{Op: "http request", Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Op: "read response", Kind: transportKind(ctx, err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("emotion service returned error status", "status", resp.StatusCode)
		return nil, &Error{
			Op:         "api error",
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200)),
		}
	}

	var apiResp []analyzeResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, &Error{Op: "unmarshal response", Kind: KindDecode, Err: err}
	}

	if len(apiResp) == 0 {
		return nil, nil
	}
	return apiResp[0].Predictions, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
