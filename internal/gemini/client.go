// Package gemini calls the Gemini generateContent endpoint to produce the
// learning path text.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.0-flash"
	defaultTimeout = 60 * time.Second

	maxErrorBody = 1024
)

// ErrEmptyResponse is returned when a 2xx response carries no text.
var ErrEmptyResponse = errors.New("generation response has no text")

// TransportError is a network-level failure, including timeouts.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "generation request failed: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response. Body is truncated to 1 KiB.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("generation API returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Options are the per-process sampling and transport settings.
type Options struct {
	Model           string
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
	Timeout         time.Duration
}

// DefaultOptions returns the sampling constants learning paths are generated
// with.
func DefaultOptions() Options {
	return Options{
		Model:           DefaultModel,
		Temperature:     1.0,
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 8192,
		Timeout:         defaultTimeout,
	}
}

// Client sends prompts to Gemini. It is safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	opts       Options
	httpClient *http.Client
}

// NewClient creates a client against the public endpoint.
func NewClient(apiKey string, opts Options) *Client {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		opts:       opts,
		httpClient: &http.Client{},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL.
func NewClientWithBaseURL(apiKey, baseURL string, opts Options) *Client {
	c := NewClient(apiKey, opts)
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.opts.Model }

// Generate sends prompt as a single user turn and returns the text of the
// first part of the first candidate. It makes exactly one attempt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		GenerationConfig: generationConfig{
			Temperature:     c.opts.Temperature,
			TopP:            c.opts.TopP,
			TopK:            c.opts.TopK,
			MaxOutputTokens: c.opts.MaxOutputTokens,
		},
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(c.opts.Model), url.QueryEscape(c.apiKey))
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &TransportError{Err: redactKey(err, c.apiKey)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if reqCtx.Err() != nil {
			return "", &TransportError{Err: reqCtx.Err()}
		}
		return "", fmt.Errorf("%w: decoding body: %v", ErrEmptyResponse, err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	text := out.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// redactKey strips the API key from URL errors, which embed the full
// request URL.
func redactKey(err error, key string) error {
	var uerr *url.Error
	if key == "" || !errors.As(err, &uerr) {
		return err
	}
	return &url.Error{
		Op:  uerr.Op,
		URL: strings.ReplaceAll(uerr.URL, url.QueryEscape(key), "REDACTED"),
		Err: uerr.Err,
	}
}
