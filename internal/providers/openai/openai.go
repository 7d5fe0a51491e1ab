// Package openai talks to OpenAI-compatible HTTP APIs: chat completions for
// the primary and secondary providers (Groq and OpenAI both speak this
// dialect) and image generation.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrEmptyResponse is returned when the upstream answered without content.
var ErrEmptyResponse = errors.New("empty response")

// Client is a thin chat-completions and images client.
type Client struct {
	client *resty.Client
	// dl fetches URL-only image payloads without our credentials
	dl    *resty.Client
	model string
}

// New creates a client for baseURL (for example https://api.openai.com/v1).
// timeout bounds every HTTP call; callers may set a tighter context deadline.
func New(baseURL, apiKey, model string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &Client{client: c, dl: resty.New().SetTimeout(timeout), model: model}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends one chat-completions request and returns the first choice.
func (c *Client) Complete(ctx context.Context, systemPrompt, userMessage string, maxTokens int, temperature float64) (string, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(&body).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", statusError(resp)
	}

	var cr chatResponse
	if err := json.Unmarshal(resp.Body(), &cr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return cr.Choices[0].Message.Content, nil
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
}

// Images adapts the client to providers.ImageProvider.
type Images struct{ c *Client }

// Images returns an image generator sharing this client's transport.
func (c *Client) Images() *Images { return &Images{c: c} }

// Generate requests one image and returns its bytes. Base64 payloads are
// decoded; URL-only payloads are downloaded.
func (i *Images) Generate(ctx context.Context, prompt string) ([]byte, error) {
	body := imageRequest{Model: i.c.model, Prompt: prompt, N: 1}
	resp, err := i.c.client.R().
		SetContext(ctx).
		SetBody(&body).
		Post("/images/generations")
	if err != nil {
		return nil, fmt.Errorf("image request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, statusError(resp)
	}

	var ir imageResponse
	if err := json.Unmarshal(resp.Body(), &ir); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(ir.Data) == 0 {
		return nil, ErrEmptyResponse
	}
	// n=1, but tolerate upstreams that return several and keep the last
	last := ir.Data[len(ir.Data)-1]
	switch {
	case last.B64JSON != "":
		raw, err := base64.StdEncoding.DecodeString(last.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
		return raw, nil
	case last.URL != "":
		dl, err := i.c.dl.R().SetContext(ctx).Get(last.URL)
		if err != nil {
			return nil, fmt.Errorf("download image: %w", err)
		}
		if dl.StatusCode() != http.StatusOK || len(dl.Body()) == 0 {
			return nil, fmt.Errorf("download image: status %d", dl.StatusCode())
		}
		return dl.Body(), nil
	default:
		return nil, ErrEmptyResponse
	}
}

// HealthPing lists models, which every OpenAI-compatible API serves cheaply
// and which fails on bad credentials.
func (c *Client) HealthPing(ctx context.Context) error {
	resp, err := c.client.R().SetContext(ctx).Get("/models")
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

func statusError(resp *resty.Response) error {
	var ae apiError
	if err := json.Unmarshal(resp.Body(), &ae); err == nil && ae.Error.Message != "" {
		return fmt.Errorf("status %d: %s", resp.StatusCode(), ae.Error.Message)
	}
	return fmt.Errorf("status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
