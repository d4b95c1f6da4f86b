// Package transporttest provides a deterministic, scriptable Transport
// fake for tests, playing the same role the reference sources' own
// TestPublisher/sharedtest fakes play for their streaming components.
package transporttest

import (
	"context"
	"sync"

	"github.com/srinathv31/eventlogger/internal/transport"
)

// Responder computes the response (or error) for one Send call. It
// receives the request and the 0-based call index so tests can script a
// sequence of different outcomes (e.g. fail twice, then succeed).
type Responder func(req transport.Request, callIndex int) (transport.Response, error)

// Fake is a Transport whose behavior is entirely driven by a Responder
// function supplied by the test.
type Fake struct {
	mu        sync.Mutex
	responder Responder
	requests  []transport.Request
}

// NewFake builds a Fake that always produces the same response.
func NewFake(resp transport.Response) *Fake {
	return &Fake{responder: func(transport.Request, int) (transport.Response, error) { return resp, nil }}
}

// NewFakeFunc builds a Fake driven by an arbitrary Responder.
func NewFakeFunc(responder Responder) *Fake {
	return &Fake{responder: responder}
}

// Requests returns every request observed so far, in call order.
func (f *Fake) Requests() []transport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]transport.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *Fake) Send(_ context.Context, req transport.Request) (transport.Response, error) {
	f.mu.Lock()
	idx := len(f.requests)
	f.requests = append(f.requests, req)
	responder := f.responder
	f.mu.Unlock()
	return responder(req, idx)
}

func (f *Fake) SendAsync(ctx context.Context, req transport.Request) <-chan transport.Result {
	out := make(chan transport.Result, 1)
	go func() {
		resp, err := f.Send(ctx, req)
		out <- transport.Result{Response: resp, Err: err}
		close(out)
	}()
	return out
}
