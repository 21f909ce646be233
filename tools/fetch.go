package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/tailored-agentic-units/registry-agent/compress"
	"github.com/tailored-agentic-units/registry-agent/core/config"
	"github.com/tailored-agentic-units/registry-agent/core/protocol"
)

// FetchPageName is the registered name of the page fetch tool.
const FetchPageName = "fetch_page"

// FetchConfig controls the fetch_page tool.
type FetchConfig struct {
	Timeout       config.Duration `json:"timeout,omitempty"`
	MaxBytes      int64           `json:"max_bytes,omitempty"`
	RatePerSecond float64         `json:"rate_per_second,omitempty"`
	Burst         int             `json:"burst,omitempty"`
	UserAgent     string          `json:"user_agent,omitempty"`
	Hint          string          `json:"hint,omitempty"`
}

// DefaultFetchConfig returns the default fetch configuration.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Timeout:       config.Duration(30 * time.Second),
		MaxBytes:      2 << 20,
		RatePerSecond: 2,
		Burst:         3,
		UserAgent:     "registry-agent/1.0",
		Hint:          "guitar specifications",
	}
}

// Merge applies non-zero values from source into c.
func (c *FetchConfig) Merge(source *FetchConfig) {
	if source.Timeout > 0 {
		c.Timeout = source.Timeout
	}
	if source.MaxBytes > 0 {
		c.MaxBytes = source.MaxBytes
	}
	if source.RatePerSecond > 0 {
		c.RatePerSecond = source.RatePerSecond
	}
	if source.Burst > 0 {
		c.Burst = source.Burst
	}
	if source.UserAgent != "" {
		c.UserAgent = source.UserAgent
	}
	if source.Hint != "" {
		c.Hint = source.Hint
	}
}

// Fetcher retrieves web pages for the worker. Requests share one token
// bucket and every body passes through the compressor before it reaches
// the conversation.
type Fetcher struct {
	client     *http.Client
	limiter    *rate.Limiter
	compressor compress.Compressor
	cfg        FetchConfig
}

// NewFetcher creates a Fetcher. A nil client uses a client with the
// configured timeout.
func NewFetcher(cfg FetchConfig, client *http.Client, compressor compress.Compressor) *Fetcher {
	c := DefaultFetchConfig()
	c.Merge(&cfg)

	if client == nil {
		client = &http.Client{Timeout: c.Timeout.Std()}
	}
	if compressor == nil {
		compressor = compress.NewPattern(compress.DefaultConfig())
	}

	return &Fetcher{
		client:     client,
		limiter:    rate.NewLimiter(rate.Limit(c.RatePerSecond), c.Burst),
		compressor: compressor,
		cfg:        c,
	}
}

// Tool returns the fetch_page definition.
func (f *Fetcher) Tool() protocol.Tool {
	return protocol.Tool{
		Name:        FetchPageName,
		Description: "Fetches a web page and returns its content. Long pages are summarized to the key specification facts.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "Absolute http or https URL to fetch.",
				},
			},
			"required": []string{"url"},
		},
	}
}

// Handle implements Handler. Transport failures become error results so
// the worker can try another source; only context cancellation is
// returned as an error.
func (f *Fetcher) Handle(ctx context.Context, raw json.RawMessage) (Result, error) {
	var args struct {
		URL string `json:"url"`
	}
	if res, ok := decodeArgs(raw, &args); !ok {
		return res, nil
	}

	u, err := url.Parse(args.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Result{Content: fmt.Sprintf("Error fetching content from %s: url must be absolute http(s)", args.URL), IsError: true}, nil
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}

	body, err := f.get(ctx, u.String())
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{Content: fmt.Sprintf("Error fetching content from %s: %v", args.URL, err), IsError: true}, nil
	}

	return Result{Content: f.compressor.Compress(ctx, body, f.cfg.Hint).Summary}, nil
}

func (f *Fetcher) get(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Register adds fetch_page to r.
func (f *Fetcher) Register(r *Registry) error {
	return r.Register(f.Tool(), f.Handle)
}
