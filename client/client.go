// Package client calls the generation endpoint on behalf of a front-end.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"kahaani/history"
	"kahaani/pipeline"
)

const DefaultTimeout = 180 * time.Second

var (
	// ErrBusy is returned when Generate is called while a request is in flight.
	ErrBusy = errors.New("a generation is already in progress")
	// ErrTimedOut is returned when the wall-clock timeout fires.
	ErrTimedOut = errors.New("generation request timed out")
	// ErrUnreachable wraps transport failures before any response arrived.
	ErrUnreachable = errors.New("generation endpoint unreachable")
	// ErrUnexpectedStatus is returned for a 2xx body whose status is not success.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// ServerError is a non-2xx reply from the endpoint.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error: %d", e.StatusCode)
	}
	return fmt.Sprintf("server error: %d: %s", e.StatusCode, e.Message)
}

type Options struct {
	Endpoint   string
	HTTPClient *http.Client
	Timeout    time.Duration
	History    *history.Store
	Logger     *log.Logger
}

type Client struct {
	endpoint string
	http     *http.Client
	timeout  time.Duration
	history  *history.Store
	logger   *log.Logger
	inFlight atomic.Bool
}

func New(opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("client: endpoint is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Client{
		endpoint: opts.Endpoint,
		http:     opts.HTTPClient,
		timeout:  opts.Timeout,
		history:  opts.History,
		logger:   opts.Logger,
	}, nil
}

// Busy reports whether a request is in flight.
func (c *Client) Busy() bool {
	return c.inFlight.Load()
}

type generateRequest struct {
	Mode          string   `json:"mode"`
	Language      string   `json:"language"`
	ExcludeTopics []string `json:"exclude_topics"`
}

// Generate asks the endpoint for a new set of scripts, excluding topics
// already in history, and records the result on success.
func (c *Client) Generate(ctx context.Context, mode, language string) (*pipeline.Response, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.inFlight.Store(false)

	exclude := []string{}
	if c.history != nil {
		exclude = append(exclude, c.history.UsedTopics()...)
	}

	body, err := json.Marshal(generateRequest{Mode: mode, Language: language, ExcludeTopics: exclude})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.post(ctx, body)
	if err != nil {
		c.logger.Warn("generation request failed", "error", err, "duration", time.Since(start))
		return nil, err
	}

	c.logger.Info("generation received",
		"mode", resp.Params.Mode,
		"language", resp.Params.Language,
		"scripts", len(resp.Scripts),
		"excluded", len(exclude),
		"duration", time.Since(start),
	)
	if c.history != nil {
		c.history.Append(resp)
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, body []byte) (*pipeline.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &payload)
		return nil, &ServerError{StatusCode: res.StatusCode, Message: payload.Error}
	}

	var out pipeline.Response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Status != pipeline.StatusSuccess {
		return nil, fmt.Errorf("%w: %q", ErrUnexpectedStatus, out.Status)
	}
	return &out, nil
}

// transportError separates our own deadline from caller cancellation and
// network failures.
func (c *Client) transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimedOut, c.timeout)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
