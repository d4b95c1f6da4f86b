package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/srinathv31/eventlogger/internal/logging"
)

// HTTPTransport is the default Transport, backed by
// github.com/hashicorp/go-retryablehttp. Its own CheckRetry is narrowed to
// fire only when the round trip itself failed (dial/TLS/timeout) — never
// on a response status code, since the status-code retry policy belongs
// to the API Client one layer up. This keeps Transport's contract honest
// (one attempt from the API Client's point of view) while still getting a
// robust, jittered retry of pure connection failures for free.
type HTTPTransport struct {
	client *retryablehttp.Client
}

// NewHTTPTransport builds an HTTPTransport. httpClient is the underlying
// *http.Client (see httpconfig.NewClient); connRetries bounds how many
// times a single Send will retry a connection-level failure before giving
// up and returning a *TransportError.
func NewHTTPTransport(httpClient *http.Client, connRetries int, loggers logging.Loggers) *HTTPTransport {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = httpClient
	rc.RetryMax = connRetries
	rc.Logger = nil // logging.Loggers isn't a retryablehttp.Logger; we log at the call site instead
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, nil
		}
		return false, nil
	}
	return &HTTPTransport{client: rc}
}

func (t *HTTPTransport) Send(ctx context.Context, req Request) (Response, error) {
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, req.URI, bytes.NewReader(req.Body))
	if err != nil {
		return Response{}, &TransportError{Err: err}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	client := t.client
	if req.Timeout > 0 {
		cloned := *t.client
		httpClientCopy := *t.client.HTTPClient
		httpClientCopy.Timeout = req.Timeout
		cloned.HTTPClient = &httpClientCopy
		client = &cloned
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return Response{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, &TransportError{Err: err}
	}
	return Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func (t *HTTPTransport) SendAsync(ctx context.Context, req Request) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		resp, err := t.Send(ctx, req)
		out <- Result{Response: resp, Err: err}
		close(out)
	}()
	return out
}
