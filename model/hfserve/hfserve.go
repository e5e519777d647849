// Package hfserve is an HTTP client for a transformers model sidecar: a
// small Python process that loads the causal LM (distilgpt2 by default)
// plus its tokenizer and optimizer, and exposes encode/decode/generate/
// loss/train-step/mode routes over JSON. The sidecar owns the PyTorch
// state; this client is how the Go core treats the model as an opaque
// capability.
package hfserve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dynamem/dynamem/model"
)

const defaultTimeout = 5 * time.Minute

// Config configures the sidecar client.
type Config struct {
	// BaseURL is the sidecar's address, e.g. http://localhost:8901.
	BaseURL string

	// Timeout is the per-request HTTP timeout. Generation and training
	// steps on CPU can be slow; defaults to 5 minutes.
	Timeout time.Duration
}

// Client implements both model.Tokenizer and model.LanguageModel against a
// transformers sidecar. Safe for concurrent use; callers must still
// serialize TrainStep/SetMode through the active-learning controller since
// the sidecar's model state is process-wide.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a sidecar client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("hfserve: BaseURL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// --- wire types ---

type encodeRequest struct {
	Text string `json:"text"`
}

type encodeResponse struct {
	Tokens []int64 `json:"tokens"`
}

type decodeRequest struct {
	Tokens []int64 `json:"tokens"`
}

type decodeResponse struct {
	Text string `json:"text"`
}

type generateRequest struct {
	Prompt            []int64 `json:"prompt"`
	MaxLength         int     `json:"max_length"`
	NoRepeatNGramSize int     `json:"no_repeat_ngram_size"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
	DoSample          bool    `json:"do_sample"`
}

type generateResponse struct {
	Tokens []int64 `json:"tokens"`
}

type lossRequest struct {
	Input  []int64 `json:"input"`
	Labels []int64 `json:"labels"`
}

type lossResponse struct {
	Loss float64 `json:"loss"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Encode converts text to a token sequence.
func (c *Client) Encode(ctx context.Context, text string) ([]int64, error) {
	var resp encodeResponse
	if err := c.post(ctx, "/encode", encodeRequest{Text: text}, &resp); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return resp.Tokens, nil
}

// Decode converts a token sequence back to text.
func (c *Client) Decode(ctx context.Context, tokens []int64) (string, error) {
	var resp decodeResponse
	if err := c.post(ctx, "/decode", decodeRequest{Tokens: tokens}, &resp); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	return resp.Text, nil
}

// Generate samples a continuation of the prompt.
func (c *Client) Generate(ctx context.Context, prompt []int64, params model.GenerateParams) ([]int64, error) {
	req := generateRequest{
		Prompt:            prompt,
		MaxLength:         params.MaxLength,
		NoRepeatNGramSize: params.NoRepeatNGramSize,
		Temperature:       params.Temperature,
		TopP:              params.TopP,
		DoSample:          params.Sample,
	}
	var resp generateResponse
	if err := c.post(ctx, "/generate", req, &resp); err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	return resp.Tokens, nil
}

// Loss computes the loss of input against labels without a parameter update.
func (c *Client) Loss(ctx context.Context, input, labels []int64) (float64, error) {
	var resp lossResponse
	if err := c.post(ctx, "/loss", lossRequest{Input: input, Labels: labels}, &resp); err != nil {
		return 0, fmt.Errorf("loss: %w", err)
	}
	return resp.Loss, nil
}

// TrainStep performs one backward pass and optimizer step, returning the
// pre-step loss.
func (c *Client) TrainStep(ctx context.Context, input, labels []int64) (float64, error) {
	var resp lossResponse
	if err := c.post(ctx, "/train_step", lossRequest{Input: input, Labels: labels}, &resp); err != nil {
		return 0, fmt.Errorf("train step: %w", err)
	}
	return resp.Loss, nil
}

// SetMode switches the sidecar between model.train() and model.eval().
func (c *Client) SetMode(ctx context.Context, mode model.Mode) error {
	if err := c.post(ctx, "/mode", modeRequest{Mode: mode.String()}, nil); err != nil {
		return fmt.Errorf("set mode %s: %w", mode, err)
	}
	return nil
}

// post sends a JSON request and decodes the JSON response into out (which
// may be nil for status-only routes).
func (c *Client) post(ctx context.Context, route string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", route, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s returned %d: %s", route, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%s returned %d", route, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var (
	_ model.Tokenizer     = (*Client)(nil)
	_ model.LanguageModel = (*Client)(nil)
)
