package dispatch

import (
	"time"

	"github.com/wwise-tools/wwise-mcp/pkg/waapi"
)

// Kind selects the operation a queued request performs against the
// Authoring API.
type Kind int

const (
	// KindCall is a request/response WAAPI call.
	KindCall Kind = iota
	// KindSubscribe establishes a topic subscription.
	KindSubscribe
	// KindUnsubscribe cancels a topic subscription by handle.
	KindUnsubscribe
)

func (k Kind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindSubscribe:
		return "subscribe"
	case KindUnsubscribe:
		return "unsubscribe"
	default:
		return "unknown"
	}
}

// Result is the outcome of a processed request.
type Result struct {
	Value any
	Err   error
}

// Request is one unit of work for the dispatcher consumer. Requests become
// eligible for processing at DueAt; among due requests the earliest DueAt
// wins, with submission order breaking ties.
type Request struct {
	Kind    Kind
	URI     string // call/subscribe topic URI; subscription handle for unsubscribe
	Args    map[string]any
	Options map[string]any

	DueAt time.Time
	seq   uint64 // assigned by the queue, preserves FIFO among equal DueAt

	// reply carries the result to the waiting producer. Nil for
	// fire-and-forget requests; otherwise buffered with capacity 1 so the
	// consumer never blocks on a producer that gave up waiting.
	reply chan Result
}

// newRequest builds a request with a single-slot reply channel.
func newRequest(kind Kind, uri string, args, options map[string]any, dueAt time.Time) *Request {
	return &Request{
		Kind:    kind,
		URI:     uri,
		Args:    args,
		Options: options,
		DueAt:   dueAt,
		reply:   make(chan Result, 1),
	}
}

// newFireAndForget builds a request whose outcome nobody waits for.
func newFireAndForget(uri string, args, options map[string]any, dueAt time.Time) *Request {
	return &Request{
		Kind:    KindCall,
		URI:     uri,
		Args:    args,
		Options: options,
		DueAt:   dueAt,
	}
}

// resolve delivers the outcome without ever blocking. The buffered slot
// guarantees the first resolve lands even when the waiter already timed out.
func (r *Request) resolve(value any, err error) {
	if r.reply == nil {
		return
	}
	select {
	case r.reply <- Result{Value: value, Err: err}:
	default:
	}
}

// Wait blocks until the request is resolved or the timeout elapses. On
// timeout the request stays queued and may still execute; its late reply is
// simply dropped.
func (r *Request) Wait(timeout time.Duration) (any, error) {
	select {
	case res := <-r.reply:
		return res.Value, res.Err
	case <-time.After(timeout):
		return nil, &waapi.TimeoutError{URI: r.URI, Timeout: timeout}
	}
}
