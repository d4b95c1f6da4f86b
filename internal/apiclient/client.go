// Package apiclient implements the typed wrapper over Transport: header
// composition, the two event-ingestion calls the delivery core uses, and
// the per-request retry policy for transient HTTP status codes. This
// retry loop is intentionally a small explicit state machine rather than
// a generic retry library: the required schedule (delay = baseDelay *
// attempt, capped, immediate stop on any non-retryable 4xx) is simplest
// expressed directly against Transport.Send.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/srinathv31/eventlogger/internal/logging"
	"github.com/srinathv31/eventlogger/internal/model"
	"github.com/srinathv31/eventlogger/internal/token"
	"github.com/srinathv31/eventlogger/internal/transport"
)

const (
	eventsPath      = "/v1/events"
	eventsBatchPath = "/v1/events/batch"
)

// Config configures a Client.
type Config struct {
	BaseURI        string
	ApplicationID  string
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	RequestTimeout time.Duration
}

// Client is the typed wrapper over a transport.Transport.
type Client struct {
	cfg       Config
	transport transport.Transport
	tokens    token.Provider
	loggers   logging.Loggers
}

// New builds a Client.
func New(cfg Config, tr transport.Transport, tokens token.Provider, loggers logging.Loggers) *Client {
	return &Client{cfg: cfg, transport: tr, tokens: tokens, loggers: loggers}
}

type createEventResponse struct {
	Success       bool     `json:"success"`
	ExecutionIDs  []string `json:"execution_ids"`
	CorrelationID string   `json:"correlation_id"`
}

type createEventsResponse struct {
	Success        bool                `json:"success"`
	TotalReceived  int                 `json:"total_received"`
	TotalInserted  int                 `json:"total_inserted"`
	ExecutionIDs   []string            `json:"execution_ids"`
	Errors         []batchErrorWire    `json:"errors,omitempty"`
}

type batchErrorWire struct {
	Index         int    `json:"index"`
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

type errorBodyWire struct {
	Error string `json:"error"`
}

// CreateEvent posts a single event to /v1/events and returns its
// execution id.
func (c *Client) CreateEvent(ctx context.Context, ev model.Event) (string, error) {
	body, err := json.Marshal(map[string]any{"events": ev})
	if err != nil {
		return "", fmt.Errorf("eventlogger: marshaling event: %w", err)
	}

	resp, err := c.doWithRetry(ctx, http.MethodPost, eventsPath, body)
	if err != nil {
		return "", err
	}

	var parsed createEventResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return "", fmt.Errorf("eventlogger: decoding create-event response: %w", err)
	}
	if len(parsed.ExecutionIDs) > 0 {
		return parsed.ExecutionIDs[0], nil
	}
	return "", nil
}

// CreateEvents posts a batch of events to /v1/events/batch.
func (c *Client) CreateEvents(ctx context.Context, events []model.Event) (model.BatchResult, error) {
	body, err := json.Marshal(map[string]any{"events": events})
	if err != nil {
		return model.BatchResult{}, fmt.Errorf("eventlogger: marshaling events: %w", err)
	}

	resp, err := c.doWithRetry(ctx, http.MethodPost, eventsBatchPath, body)
	if err != nil {
		return model.BatchResult{Kind: model.TotalFailure, Err: err}, err
	}

	var parsed createEventsResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		wrapped := fmt.Errorf("eventlogger: decoding batch response: %w", err)
		return model.BatchResult{Kind: model.TotalFailure, Err: wrapped}, wrapped
	}

	if len(parsed.Errors) == 0 {
		return model.BatchResult{Kind: model.AllSuccess}, nil
	}

	indices := make([]int, 0, len(parsed.Errors))
	errs := make([]model.IndexedError, 0, len(parsed.Errors))
	for _, e := range parsed.Errors {
		indices = append(indices, e.Index)
		errs = append(errs, model.IndexedError{Index: e.Index, Message: e.Error})
	}
	return model.BatchResult{Kind: model.PartialFailure, FailedIndices: indices, Errors: errs}, nil
}

// doWithRetry implements the §4.C retry policy: 2xx succeeds; 5xx/429
// retries up to MaxRetries times with delay = BaseDelay*attempt (capped
// at MaxDelay); any other non-2xx fails immediately with an *APIError;
// a transport.TransportError is retried under the same budget.
func (c *Client) doWithRetry(ctx context.Context, method, path string, body []byte) (transport.Response, error) {
	var lastErr error
	var lastResp transport.Response

	maxRetries := c.cfg.MaxRetries
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.BaseDelay * time.Duration(attempt)
			if c.cfg.MaxDelay > 0 && delay > c.cfg.MaxDelay {
				delay = c.cfg.MaxDelay
			}
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return transport.Response{}, ctx.Err()
			}
		}

		req, err := c.buildRequest(ctx, method, path, body)
		if err != nil {
			return transport.Response{}, err
		}

		resp, err := c.transport.Send(ctx, req)
		if err != nil {
			lastErr = err
			c.loggers.Warnf("transport error on %s %s (attempt %d/%d): %v", method, path, attempt+1, maxRetries+1, err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastResp = resp
			lastErr = &RetryableError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
			c.loggers.Warnf("retryable status %d on %s %s (attempt %d/%d)", resp.StatusCode, method, path, attempt+1, maxRetries+1)
			continue
		}

		if resp.StatusCode == http.StatusUnauthorized {
			// A cached token is invalidated explicitly on 401, per the
			// data model's token-freshness invariant; the next request
			// that needs a token forces a fresh refresh.
			c.tokens.InvalidateToken()
		}

		// Any other non-2xx is a permanent failure: stop immediately.
		return resp, &APIError{StatusCode: resp.StatusCode, Body: string(resp.Body), ErrorCode: extractErrorCode(resp.Body)}
	}

	if lastErr != nil {
		if _, ok := lastErr.(*RetryableError); ok {
			return lastResp, lastErr
		}
		return transport.Response{}, &RetryableError{Err: lastErr}
	}
	return lastResp, nil
}

func (c *Client) buildRequest(ctx context.Context, method, path string, body []byte) (transport.Request, error) {
	tok, err := c.tokens.GetToken(ctx)
	if err != nil {
		return transport.Request{}, fmt.Errorf("eventlogger: getting auth token: %w", err)
	}

	headers := map[string]string{
		"Accept":        "application/json",
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + tok,
	}
	if c.cfg.ApplicationID != "" {
		headers["X-Application-Id"] = c.cfg.ApplicationID
	}

	return transport.Request{
		Method:  method,
		URI:     c.cfg.BaseURI + path,
		Headers: headers,
		Body:    body,
		Timeout: c.cfg.RequestTimeout,
	}, nil
}

func extractErrorCode(body []byte) string {
	var parsed errorBodyWire
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	return parsed.Error
}
