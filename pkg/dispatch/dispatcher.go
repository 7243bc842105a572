// Package dispatch serializes all Authoring API traffic through a single
// consumer goroutine fed by a bounded, time-ordered request queue.
//
// Producers (tool handlers, the plan runner) enqueue requests and optionally
// wait on a per-request reply channel; the consumer pops requests as they
// come due and performs the actual WAAPI round-trips. Scheduled
// fire-and-forget requests share the same queue, ordered by due time.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wwise-tools/wwise-mcp/pkg/waapi"
)

// RPCClient is the connection surface the dispatcher drives. Implemented by
// *waapi.Client; tests substitute fakes.
type RPCClient interface {
	Call(ctx context.Context, uri string, args, options map[string]any) (any, error)
	Subscribe(ctx context.Context, uri string, options map[string]any, handler waapi.EventHandler) (string, error)
	Unsubscribe(ctx context.Context, handle string) (bool, error)
}

// Config carries the dispatcher tunables.
type Config struct {
	// MaxQueueSize caps the request queue; producers beyond it fail fast.
	MaxQueueSize int
	// MaxSubscriptionEvents caps each subscription's event buffer.
	MaxSubscriptionEvents int
	// RPCTimeout bounds a single round-trip performed by the consumer.
	RPCTimeout time.Duration
	// PollInterval bounds the consumer's wait between queue checks.
	PollInterval time.Duration
}

// Stats is a point-in-time snapshot of dispatcher activity.
type Stats struct {
	Running       bool   `json:"running"`
	Queued        int    `json:"queued"`
	Processed     uint64 `json:"processed"`
	Failed        uint64 `json:"failed"`
	Subscriptions int    `json:"subscriptions"`
}

// Dispatcher owns the request queue, the consumer goroutine, and the
// subscription registry for one connection.
type Dispatcher struct {
	client RPCClient
	cfg    Config
	log    *slog.Logger

	queue *timedQueue
	subs  *SubscriptionRegistry

	running     atomic.Bool
	consumerGID atomic.Uint64
	processed   atomic.Uint64
	failed      atomic.Uint64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a dispatcher for the given connection. Call Start to begin
// processing.
func New(client RPCClient, cfg Config) *Dispatcher {
	return &Dispatcher{
		client: client,
		cfg:    cfg,
		log:    slog.With("component", "dispatcher"),
		queue:  newTimedQueue(cfg.MaxQueueSize),
		subs:   NewSubscriptionRegistry(),
		stopCh: make(chan struct{}),
	}
}

// Start launches the consumer goroutine. Idempotent per dispatcher instance;
// a stopped dispatcher is not restartable.
func (d *Dispatcher) Start() {
	if !d.running.CompareAndSwap(false, true) {
		return
	}
	d.wg.Add(1)
	go d.consume()
	d.log.Debug("Dispatcher started",
		"max_queue_size", d.cfg.MaxQueueSize,
		"poll_interval", d.cfg.PollInterval)
}

// Stop shuts the consumer down: no new requests are accepted, the consumer
// finishes its in-flight request (waiting up to timeout), every still-queued
// request fails with ErrDispatcherStopped, and remaining subscriptions are
// best-effort cancelled against the server.
func (d *Dispatcher) Stop(timeout time.Duration) {
	d.stopOnce.Do(func() {
		d.running.Store(false)
		close(d.stopCh)

		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			d.log.Warn("Dispatcher consumer did not drain in time", "timeout", timeout)
		}

		drained := d.queue.DrainAll()
		for _, req := range drained {
			req.resolve(nil, waapi.ErrDispatcherStopped)
		}
		if len(drained) > 0 {
			d.log.Info("Discarded queued requests at shutdown", "count", len(drained))
		}

		subs := d.subs.All()
		if len(subs) > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			for _, sub := range subs {
				if _, err := d.client.Unsubscribe(ctx, sub.Handle); err != nil {
					d.log.Warn("Failed to cancel subscription at shutdown",
						"topic", sub.Topic, "error", err)
				}
			}
			d.subs.Clear()
		}

		d.log.Debug("Dispatcher stopped",
			"processed", d.processed.Load(), "failed", d.failed.Load())
	})
}

// Running reports whether the consumer is accepting requests.
func (d *Dispatcher) Running() bool {
	return d.running.Load()
}

// Stats returns a snapshot of dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Running:       d.running.Load(),
		Queued:        d.queue.Size(),
		Processed:     d.processed.Load(),
		Failed:        d.failed.Load(),
		Subscriptions: d.subs.Count(),
	}
}

// Call enqueues an immediate request and waits up to timeout for its result.
func (d *Dispatcher) Call(uri string, args, options map[string]any, timeout time.Duration) (any, error) {
	req := newRequest(KindCall, uri, args, options, time.Now())
	if err := d.submit(req); err != nil {
		return nil, err
	}
	return req.Wait(timeout)
}

// Schedule enqueues a fire-and-forget request due after the given delay.
// Nobody observes its outcome; failures are only logged.
func (d *Dispatcher) Schedule(uri string, args, options map[string]any, dueIn time.Duration) error {
	return d.submit(newFireAndForget(uri, args, options, time.Now().Add(dueIn)))
}

// Subscribe establishes a topic subscription and returns its id. The id is
// minted dispatcher-side; the server's wire handle stays internal.
func (d *Dispatcher) Subscribe(topic string, options map[string]any, timeout time.Duration) (string, error) {
	req := newRequest(KindSubscribe, topic, nil, options, time.Now())
	if err := d.submit(req); err != nil {
		return "", err
	}
	value, err := req.Wait(timeout)
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// Unsubscribe cancels a subscription by id. Returns false when the id is not
// registered.
func (d *Dispatcher) Unsubscribe(id string, timeout time.Duration) (bool, error) {
	if _, ok := d.subs.Get(id); !ok {
		return false, nil
	}
	req := newRequest(KindUnsubscribe, id, nil, nil, time.Now())
	if err := d.submit(req); err != nil {
		return false, err
	}
	value, err := req.Wait(timeout)
	if err != nil {
		return false, err
	}
	return value.(bool), nil
}

// Events drains buffered events for a subscription id. The bool result
// reports whether the id is known.
func (d *Dispatcher) Events(id string, max int, clear bool) ([]map[string]any, int, bool) {
	sub, ok := d.subs.Get(id)
	if !ok {
		return nil, 0, false
	}
	events, dropped := sub.Drain(max, clear)
	return events, dropped, true
}

// Subscriptions snapshots active subscription ids and topics.
func (d *Dispatcher) Subscriptions() map[string]string {
	out := make(map[string]string)
	for _, sub := range d.subs.All() {
		out[sub.ID] = sub.Topic
	}
	return out
}

// submit validates and enqueues a request.
func (d *Dispatcher) submit(req *Request) error {
	if !d.running.Load() {
		return waapi.ErrDispatcherStopped
	}
	// Submitting from the consumer goroutine is a programmer error: a
	// waiting submit deadlocks (the consumer cannot process the queue
	// while blocked on its own reply), and a fire-and-forget one means a
	// handler is feeding the queue it is being served from.
	if goroutineID() == d.consumerGID.Load() {
		return waapi.ErrConsumerGoroutine
	}
	return d.queue.Put(req)
}

// consume is the single consumer loop: pop the next due request, perform its
// round-trip, resolve its waiter.
func (d *Dispatcher) consume() {
	defer d.wg.Done()
	d.consumerGID.Store(goroutineID())

	for {
		req, ok := d.queue.PopDue(d.stopCh, d.cfg.PollInterval)
		if !ok {
			return
		}
		d.process(req)
	}
}

func (d *Dispatcher) process(req *Request) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.RPCTimeout)
	defer cancel()

	var (
		value any
		err   error
	)
	switch req.Kind {
	case KindCall:
		value, err = d.client.Call(ctx, req.URI, req.Args, req.Options)
	case KindSubscribe:
		value, err = d.processSubscribe(ctx, req)
	case KindUnsubscribe:
		var found bool
		if sub, ok := d.subs.Get(req.URI); ok {
			found, err = d.client.Unsubscribe(ctx, sub.Handle)
			d.subs.Remove(req.URI)
		}
		value = found
	}

	if err != nil {
		d.failed.Add(1)
		if req.reply == nil {
			// Fire-and-forget failures have no waiter to inform.
			d.log.Warn("Scheduled request failed",
				"kind", req.Kind.String(), "uri", req.URI, "error", err)
		}
	} else {
		d.processed.Add(1)
	}
	req.resolve(value, err)
}

func (d *Dispatcher) processSubscribe(ctx context.Context, req *Request) (string, error) {
	sub := NewSubscription(req.URI, d.cfg.MaxSubscriptionEvents)
	handle, err := d.client.Subscribe(ctx, req.URI, req.Options, sub.Push)
	if err != nil {
		return "", err
	}
	sub.ID = uuid.NewString()
	sub.Handle = handle
	d.subs.Adopt(sub.ID, sub)
	return sub.ID, nil
}
