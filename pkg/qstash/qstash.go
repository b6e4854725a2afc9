package qstash

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

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
)

type Config struct {
	URL         string        `split_words:"true"`
	Token       string        `split_words:"true"`
	Destination string        `split_words:"true"`
	Timeout     time.Duration `split_words:"true" default:"10s"`
}

// Enabled reports whether order events should be published at all.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.URL) != "" && strings.TrimSpace(c.Destination) != ""
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("qstash url is required")
	}

	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(cfg.Token),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}

	return client, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

type PublishResponse struct {
	MessageID string `json:"messageId"`
}

// Publish enqueues body for delivery to destination (a URL or a topic name).
func (c *Client) Publish(ctx context.Context, destination string, body any) (PublishResponse, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return PublishResponse{}, errors.New("qstash destination is required")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return PublishResponse{}, fmt.Errorf("encode qstash body: %w", err)
	}

	endpoint := c.baseURL + "/v2/publish/" + destination
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return PublishResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return PublishResponse{}, fmt.Errorf("qstash publish: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return PublishResponse{}, fmt.Errorf("read qstash response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return PublishResponse{}, fmt.Errorf("qstash publish: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out PublishResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return PublishResponse{}, fmt.Errorf("decode qstash response: %w", err)
		}
	}
	return out, nil
}

// OrderEvents forwards completed orders to a QStash destination.
type OrderEvents struct {
	client      *Client
	destination string
}

var _ contractx.OrderEventSink = (*OrderEvents)(nil)

func NewOrderEvents(client *Client, destination string) (*OrderEvents, error) {
	if client == nil {
		return nil, errors.New("qstash client is required")
	}
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return nil, errors.New("qstash destination is required")
	}
	return &OrderEvents{client: client, destination: destination}, nil
}

func (o *OrderEvents) OrderCompleted(ctx context.Context, evt contractx.OrderEvent) error {
	resp, err := o.client.Publish(ctx, o.destination, evt)
	if err != nil {
		return err
	}
	log.Debug().
		Str("session_id", evt.SessionID).
		Int64("product_id", evt.ProductID).
		Str("message_id", resp.MessageID).
		Msg("order event published")
	return nil
}
