package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// These read operations are thin helpers over the ingestion service's
// query surface. They exist so host applications embedding the core can
// look up what happened to an event, but the delivery core itself (queue,
// sender, retry, spillover, replay) never calls them.

// GetByAccount fetches raw events for the given account id.
func (c *Client) GetByAccount(ctx context.Context, accountID string) (json.RawMessage, error) {
	return c.getRaw(ctx, fmt.Sprintf("/v1/events/account/%s", accountID))
}

// GetByCorrelationID fetches raw events sharing the given correlation id.
func (c *Client) GetByCorrelationID(ctx context.Context, correlationID string) (json.RawMessage, error) {
	return c.getRaw(ctx, fmt.Sprintf("/v1/events/correlation/%s", correlationID))
}

// GetByTraceID fetches raw events sharing the given trace id.
func (c *Client) GetByTraceID(ctx context.Context, traceID string) (json.RawMessage, error) {
	return c.getRaw(ctx, fmt.Sprintf("/v1/events/trace/%s", traceID))
}

// GetBatch fetches the result of a previously-submitted batch by its
// execution id.
func (c *Client) GetBatch(ctx context.Context, executionID string) (json.RawMessage, error) {
	return c.getRaw(ctx, fmt.Sprintf("/v1/events/batch/%s", executionID))
}

func (c *Client) getRaw(ctx context.Context, path string) (json.RawMessage, error) {
	resp, err := c.doWithRetry(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body), nil
}
