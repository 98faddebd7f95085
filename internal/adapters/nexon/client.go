// Package nexon talks to the Nexon Open API: it resolves character names to
// identifiers and fetches their current level and experience.
package nexon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/expwatch/internal/domain/model"
	"github.com/okian/expwatch/pkg/logger"
	"github.com/okian/expwatch/pkg/metrics"
)

const (
	defaultBaseURL = "https://open.api.nexon.com"
	defaultTimeout = 10 * time.Second

	apiKeyHeader = "x-nxopen-api-key"
	idPath       = "/maplestory/v1/id"
	basicPath    = "/maplestory/v1/character/basic"

	opResolve = "resolve"
	opFetch   = "fetch"

	maxErrorBody = 4 << 10
)

// Client performs one best-effort call per request. It never retries.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	log        logger.Logger
}

// New creates a Client. Without WithRateLimit calls are not throttled.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		timeout:    defaultTimeout,
		httpClient: &http.Client{},
		log:        logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("nexon")
	return c
}

type idResponse struct {
	OCID string `json:"ocid"`
}

type basicResponse struct {
	Name  string `json:"character_name"`
	World string `json:"character_world_name"`
	Level int    `json:"character_level"`
	Exp   int64  `json:"character_exp"`
}

type errorResponse struct {
	Error struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}

// Resolve maps a character name to its identifier.
func (c *Client) Resolve(ctx context.Context, name string) (model.Identifier, error) {
	q := url.Values{}
	q.Set("character_name", name)

	var out idResponse
	if err := c.get(ctx, opResolve, idPath, q, &out); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrResolve, name, err)
	}
	if out.OCID == "" {
		return "", fmt.Errorf("%w: %s: empty identifier", ErrResolve, name)
	}
	return model.Identifier(out.OCID), nil
}

// Fetch returns the current world, level and in-level exp for id.
func (c *Client) Fetch(ctx context.Context, id model.Identifier) (model.Stats, error) {
	if id == "" {
		return model.Stats{}, fmt.Errorf("%w: missing identifier", ErrFetch)
	}
	q := url.Values{}
	q.Set("ocid", string(id))

	var out basicResponse
	if err := c.get(ctx, opFetch, basicPath, q, &out); err != nil {
		return model.Stats{}, fmt.Errorf("%w: %s: %w", ErrFetch, id, err)
	}
	if out.Level <= 0 {
		return model.Stats{}, fmt.Errorf("%w: %s: missing character_level", ErrFetch, id)
	}
	return model.Stats{World: out.World, Level: out.Level, Exp: out.Exp}, nil
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values, dst any) (err error) {
	start := time.Now()
	defer func() {
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultFailure
		}
		metrics.RecordUpstreamRequest(op, result, time.Since(start))
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	c.log.Debug(ctx, "upstream call",
		logger.String("operation", op),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// statusError renders a non-200 answer, including the upstream error code
// when the body carries one.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Error.Name != "" {
		return fmt.Errorf("status %d: %s: %s", resp.StatusCode, er.Error.Name, er.Error.Message)
	}
	return fmt.Errorf("status %d", resp.StatusCode)
}
