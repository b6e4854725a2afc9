package catalog

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
	defaultCacheKeyPrefix = "chative:catalog:"
	defaultCacheTTL       = 300 * time.Second
	maxResponseSizeBytes  = 2 << 20
)

var ErrInvalidCacheKey = errors.New("cache key is empty")

// Cache stores rendered-ready product details between turns.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

// NoopCache never hits.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (NoopCache) Set(context.Context, string, any) error         { return nil }
func (NoopCache) Delete(context.Context, string) error           { return nil }

type CacheOption func(*UpstashCache)

func WithKeyPrefix(prefix string) CacheOption {
	return func(c *UpstashCache) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			c.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) CacheOption {
	return func(c *UpstashCache) {
		c.ttl = ttl
	}
}

func WithHTTPClient(client *http.Client) CacheOption {
	return func(c *UpstashCache) {
		if client != nil {
			c.httpClient = client
		}
	}
}

type UpstashConfig struct {
	URL     string        `envconfig:"URL" required:"true"`
	Token   string        `envconfig:"TOKEN" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"10s"`
	TTL     time.Duration `envconfig:"TTL" default:"300s"`
}

// UpstashCache talks to Upstash Redis over its REST endpoint.
type UpstashCache struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func NewUpstashCache(cfg UpstashConfig, opts ...CacheOption) (*UpstashCache, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}

	cache := &UpstashCache{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		keyPrefix:  defaultCacheKeyPrefix,
		ttl:        ttl,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cache)
		}
	}
	if cache.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}
	return cache, nil
}

func (c *UpstashCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	full, err := c.key(key)
	if err != nil {
		return false, err
	}
	resp, err := c.exec(ctx, []any{"GET", full})
	if err != nil {
		return false, err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return false, nil
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return false, fmt.Errorf("decode cache payload: %w", err)
	}
	if err := json.Unmarshal([]byte(encoded), dst); err != nil {
		return false, fmt.Errorf("unmarshal cached value: %w", err)
	}
	return true, nil
}

func (c *UpstashCache) Set(ctx context.Context, key string, value any) error {
	full, err := c.key(key)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	cmd := []any{"SET", full, string(payload)}
	if c.ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(c.ttl))
	}
	_, err = c.exec(ctx, cmd)
	return err
}

func (c *UpstashCache) Delete(ctx context.Context, key string) error {
	full, err := c.key(key)
	if err != nil {
		return err
	}
	_, err = c.exec(ctx, []any{"DEL", full})
	return err
}

func (c *UpstashCache) key(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrInvalidCacheKey
	}
	return c.keyPrefix + key, nil
}

func (c *UpstashCache) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
