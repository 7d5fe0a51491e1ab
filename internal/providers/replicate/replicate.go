// Package replicate generates videos through the Replicate predictions API.
package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
)

// Prediction states reported by the API.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

var (
	ErrPredictionFailed = errors.New("prediction failed")
	ErrNoOutput         = errors.New("prediction returned no output")
)

// Client creates predictions for one model and waits for them to finish.
type Client struct {
	client *resty.Client
	model  string

	pollInitial time.Duration
	pollMax     time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithPollInterval bounds the exponential polling schedule.
func WithPollInterval(initial, max time.Duration) Option {
	return func(c *Client) {
		c.pollInitial = initial
		c.pollMax = max
	}
}

// New creates a client. model is "owner/name".
func New(baseURL, apiKey, model string, timeout time.Duration, opts ...Option) *Client {
	r := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if apiKey != "" {
		r.SetAuthToken(apiKey)
	}
	c := &Client{client: r, model: model, pollInitial: time.Second, pollMax: 5 * time.Second}
	for _, o := range opts {
		o(c)
	}
	return c
}

type predictionRequest struct {
	Input map[string]any `json:"input"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
}

// Generate creates a prediction for prompt and blocks until it settles or ctx
// is done. The output may be a single URL or a list of URLs.
func (c *Client) Generate(ctx context.Context, prompt string) ([]string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "wait").
		SetBody(&predictionRequest{Input: map[string]any{"prompt": prompt}}).
		Post("/models/" + c.model + "/predictions")
	if err != nil {
		return nil, fmt.Errorf("create prediction: %w", err)
	}
	if resp.StatusCode() != http.StatusCreated && resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("create prediction: status %d: %s", resp.StatusCode(), resp.String())
	}
	var p prediction
	if err := json.Unmarshal(resp.Body(), &p); err != nil {
		return nil, fmt.Errorf("decode prediction: %w", err)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.pollInitial
	exp.Multiplier = 2
	exp.MaxInterval = c.pollMax
	exp.MaxElapsedTime = 0
	exp.Reset()

	if p.ID == "" && !terminal(p.Status) {
		return nil, fmt.Errorf("create prediction: no id in response")
	}
	for !terminal(p.Status) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(exp.NextBackOff()):
		}
		if p, err = c.get(ctx, p.ID); err != nil {
			return nil, err
		}
	}

	if p.Status != StatusSucceeded {
		return nil, fmt.Errorf("%w: %s: %v", ErrPredictionFailed, p.Status, p.Error)
	}
	return decodeOutput(p.Output)
}

func (c *Client) get(ctx context.Context, id string) (prediction, error) {
	var p prediction
	resp, err := c.client.R().
		SetContext(ctx).
		Get("/predictions/" + id)
	if err != nil {
		return p, fmt.Errorf("poll prediction: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return p, fmt.Errorf("poll prediction: status %d: %s", resp.StatusCode(), resp.String())
	}
	if err := json.Unmarshal(resp.Body(), &p); err != nil {
		return p, fmt.Errorf("decode prediction: %w", err)
	}
	if p.ID == "" {
		p.ID = id
	}
	return p, nil
}

// HealthPing checks that the token is accepted.
func (c *Client) HealthPing(ctx context.Context) error {
	resp, err := c.client.R().SetContext(ctx).Get("/account")
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode())
	}
	return nil
}

func terminal(status string) bool {
	switch status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// decodeOutput accepts a bare string or an array of strings.
func decodeOutput(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrNoOutput
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		if one == "" {
			return nil, ErrNoOutput
		}
		return []string{one}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, fmt.Errorf("decode output: %w", err)
	}
	if len(many) == 0 {
		return nil, ErrNoOutput
	}
	return many, nil
}
