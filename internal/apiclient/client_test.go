package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srinathv31/eventlogger/internal/logging"
	"github.com/srinathv31/eventlogger/internal/model"
	"github.com/srinathv31/eventlogger/internal/transport"
	"github.com/srinathv31/eventlogger/internal/transport/transporttest"
)

type fakeTokenProvider struct {
	invalidated int
}

func (f *fakeTokenProvider) GetToken(ctx context.Context) (string, error) { return "tok", nil }
func (f *fakeTokenProvider) InvalidateToken()                             { f.invalidated++ }

func testConfig() Config {
	return Config{
		BaseURI:        "https://ingest.example.com",
		MaxRetries:     2,
		BaseDelay:      time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		RequestTimeout: time.Second,
	}
}

func TestCreateEventSuccess(t *testing.T) {
	tr := transporttest.NewFake(transport.Response{
		StatusCode: 200,
		Body:       []byte(`{"success":true,"execution_ids":["exec-1"]}`),
	})
	c := New(testConfig(), tr, &fakeTokenProvider{}, logging.New(nil))

	id, err := c.CreateEvent(context.Background(), model.Event{"correlation_id": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "exec-1", id)

	reqs := tr.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "Bearer tok", reqs[0].Headers["Authorization"])
}

func TestCreateEventRetriesOn5xxThenSucceeds(t *testing.T) {
	tr := transporttest.NewFakeFunc(func(req transport.Request, callIndex int) (transport.Response, error) {
		if callIndex < 2 {
			return transport.Response{StatusCode: 503, Body: []byte(`{"error":"unavailable"}`)}, nil
		}
		return transport.Response{StatusCode: 200, Body: []byte(`{"success":true,"execution_ids":["exec-2"]}`)}, nil
	})
	c := New(testConfig(), tr, &fakeTokenProvider{}, logging.New(nil))

	id, err := c.CreateEvent(context.Background(), model.Event{})
	require.NoError(t, err)
	assert.Equal(t, "exec-2", id)
	assert.Len(t, tr.Requests(), 3)
}

func TestCreateEventPermanentFailureStopsImmediately(t *testing.T) {
	tr := transporttest.NewFake(transport.Response{StatusCode: 400, Body: []byte(`{"error":"bad_request"}`)})
	c := New(testConfig(), tr, &fakeTokenProvider{}, logging.New(nil))

	_, err := c.CreateEvent(context.Background(), model.Event{})
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok, "expected *APIError, got %T", err)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, "bad_request", apiErr.ErrorCode)
	assert.Len(t, tr.Requests(), 1, "a permanent failure must not be retried")
}

func TestCreateEventExhaustsRetryBudget(t *testing.T) {
	tr := transporttest.NewFake(transport.Response{StatusCode: 500})
	c := New(testConfig(), tr, &fakeTokenProvider{}, logging.New(nil))

	_, err := c.CreateEvent(context.Background(), model.Event{})
	require.Error(t, err)
	_, ok := err.(*RetryableError)
	assert.True(t, ok, "expected *RetryableError once the retry budget is exhausted, got %T", err)
	assert.Len(t, tr.Requests(), testConfig().MaxRetries+1)
}

func Test401InvalidatesToken(t *testing.T) {
	tr := transporttest.NewFake(transport.Response{StatusCode: 401, Body: []byte(`{"error":"unauthorized"}`)})
	tokens := &fakeTokenProvider{}
	c := New(testConfig(), tr, tokens, logging.New(nil))

	_, err := c.CreateEvent(context.Background(), model.Event{})
	require.Error(t, err)
	assert.Equal(t, 1, tokens.invalidated)
}

func TestCreateEventsPartialFailure(t *testing.T) {
	body, err := json.Marshal(map[string]any{
		"success":        true,
		"total_received": 2,
		"total_inserted": 1,
		"errors": []map[string]any{
			{"index": 1, "error": "duplicate"},
		},
	})
	require.NoError(t, err)

	tr := transporttest.NewFake(transport.Response{StatusCode: 200, Body: body})
	c := New(testConfig(), tr, &fakeTokenProvider{}, logging.New(nil))

	result, err := c.CreateEvents(context.Background(), []model.Event{{"a": 1}, {"a": 2}})
	require.NoError(t, err)
	assert.Equal(t, model.PartialFailure, result.Kind)
	assert.Equal(t, []int{1}, result.FailedIndices)
}
