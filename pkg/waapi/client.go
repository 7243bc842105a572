// Package waapi implements the low-level client for the Wwise Authoring API
// (WAAPI): a JSON request/response protocol over a WebSocket connection, with
// server-pushed events for active subscriptions.
//
// The package also defines the error taxonomy shared by the layers above it
// (dispatcher, session, command adapters).
package waapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
)

// maxMessageSize bounds a single WAAPI frame. Project-wide object queries can
// return large payloads, so this is deliberately generous.
const maxMessageSize = 16 << 20 // 16 MiB

// EventHandler receives server-pushed events for one subscription. Handlers
// are invoked from the client's read loop and must not block.
type EventHandler func(event map[string]any)

// wireRequest is the client-to-server message. Exactly one of URI, Subscribe,
// or Unsubscribe is set.
type wireRequest struct {
	ID          uint64         `json:"id"`
	URI         string         `json:"uri,omitempty"`
	Subscribe   string         `json:"subscribe,omitempty"`
	Unsubscribe string         `json:"unsubscribe,omitempty"`
	Args        map[string]any `json:"args,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
}

// wireError is the server-side error payload of a failed request.
type wireError struct {
	URI     string         `json:"uri,omitempty"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// wireMessage is the server-to-client message: either a reply (ID set) or a
// subscription event (SubscriptionID set).
type wireMessage struct {
	ID             *uint64         `json:"id,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *wireError      `json:"error,omitempty"`
	SubscriptionID string          `json:"subscriptionId,omitempty"`
	Event          map[string]any  `json:"event,omitempty"`
}

// wireReply pairs a decoded reply with a transport-level failure.
type wireReply struct {
	result json.RawMessage
	err    error
}

// Client is a WAAPI connection. A single read loop demultiplexes replies to
// their waiting callers and pushes subscription events to registered
// handlers. Writes are serialized with a mutex; the client is safe for
// concurrent use, although in practice the dispatcher consumer is the only
// caller.
type Client struct {
	conn *websocket.Conn
	log  *slog.Logger

	idSeq atomic.Uint64

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[uint64]chan wireReply

	handlersMu sync.RWMutex
	handlers   map[string]EventHandler

	closeOnce  sync.Once
	cancelRead context.CancelFunc
	readDone   chan struct{}
}

// Dial connects to a WAAPI endpoint and starts the read loop.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{})
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("dial %s: %w", url, err)}
	}
	conn.SetReadLimit(maxMessageSize)

	readCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:       conn,
		log:        slog.With("component", "waapi_client", "url", url),
		pending:    make(map[uint64]chan wireReply),
		handlers:   make(map[string]EventHandler),
		cancelRead: cancel,
		readDone:   make(chan struct{}),
	}
	go c.readLoop(readCtx)

	c.log.Debug("WAAPI connection established")
	return c, nil
}

// Call performs a request/response round-trip for the given URI. Server-side
// failures come back as *CallError; connection failures as *TransportError.
func (c *Client) Call(ctx context.Context, uri string, args, options map[string]any) (any, error) {
	raw, err := c.roundTrip(ctx, wireRequest{
		URI:     uri,
		Args:    args,
		Options: options,
	})
	if err != nil {
		return nil, c.annotate(err, uri)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var result any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &TransportError{URI: uri, Err: fmt.Errorf("decode result: %w", err)}
	}
	return result, nil
}

// Subscribe registers an event handler for a topic URI and returns the
// server-assigned subscription handle.
func (c *Client) Subscribe(ctx context.Context, uri string, options map[string]any, handler EventHandler) (string, error) {
	raw, err := c.roundTrip(ctx, wireRequest{
		Subscribe: uri,
		Options:   options,
	})
	if err != nil {
		return "", c.annotate(err, uri)
	}
	var ack struct {
		SubscriptionID string `json:"subscriptionId"`
	}
	if err := json.Unmarshal(raw, &ack); err != nil || ack.SubscriptionID == "" {
		return "", &TransportError{URI: uri, Err: fmt.Errorf("malformed subscribe ack: %s", raw)}
	}

	c.handlersMu.Lock()
	c.handlers[ack.SubscriptionID] = handler
	c.handlersMu.Unlock()

	c.log.Debug("Subscribed to topic", "topic", uri, "handle", ack.SubscriptionID)
	return ack.SubscriptionID, nil
}

// Unsubscribe cancels a subscription by handle. Returns false when the handle
// is unknown to this client.
func (c *Client) Unsubscribe(ctx context.Context, handle string) (bool, error) {
	c.handlersMu.Lock()
	_, known := c.handlers[handle]
	delete(c.handlers, handle)
	c.handlersMu.Unlock()
	if !known {
		return false, nil
	}

	if _, err := c.roundTrip(ctx, wireRequest{Unsubscribe: handle}); err != nil {
		return true, c.annotate(err, handle)
	}
	return true, nil
}

// Close tears down the connection. Pending callers receive a transport error.
// Safe to call multiple times.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancelRead()
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
		<-c.readDone
	})
	return nil
}

// Done is closed when the read loop exits, whether from Close or from a
// connection drop.
func (c *Client) Done() <-chan struct{} {
	return c.readDone
}

// roundTrip writes one request and waits for its reply or context expiry.
func (c *Client) roundTrip(ctx context.Context, req wireRequest) (json.RawMessage, error) {
	req.ID = c.idSeq.Add(1)

	replyCh := make(chan wireReply, 1)
	c.pendingMu.Lock()
	c.pending[req.ID] = replyCh
	c.pendingMu.Unlock()

	data, err := json.Marshal(req)
	if err != nil {
		c.dropPending(req.ID)
		return nil, fmt.Errorf("encode request: %w", err)
	}

	c.writeMu.Lock()
	err = c.conn.Write(ctx, websocket.MessageText, data)
	c.writeMu.Unlock()
	if err != nil {
		c.dropPending(req.ID)
		return nil, &TransportError{Err: err}
	}

	select {
	case reply := <-replyCh:
		return reply.result, reply.err
	case <-ctx.Done():
		c.dropPending(req.ID)
		return nil, ctx.Err()
	case <-c.readDone:
		return nil, &TransportError{Err: fmt.Errorf("connection closed")}
	}
}

// annotate attaches the URI to transport errors that lack one.
func (c *Client) annotate(err error, uri string) error {
	if te, ok := err.(*TransportError); ok && te.URI == "" {
		return &TransportError{URI: uri, Err: te.Err}
	}
	if ce, ok := err.(*CallError); ok && ce.URI == "" {
		return &CallError{URI: uri, Message: ce.Message, Err: ce.Err}
	}
	return err
}

func (c *Client) dropPending(id uint64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// readLoop is the sole reader of the connection. It routes replies to pending
// callers and events to subscription handlers until the connection closes.
func (c *Client) readLoop(ctx context.Context) {
	defer close(c.readDone)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.failPending(&TransportError{Err: err})
			if ctx.Err() == nil {
				c.log.Warn("WAAPI connection lost", "error", err)
			}
			return
		}

		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("Discarding malformed WAAPI frame", "error", err)
			continue
		}

		switch {
		case msg.ID != nil:
			c.deliverReply(&msg)
		case msg.SubscriptionID != "":
			c.deliverEvent(&msg)
		default:
			c.log.Warn("Discarding WAAPI frame with neither id nor subscription")
		}
	}
}

func (c *Client) deliverReply(msg *wireMessage) {
	c.pendingMu.Lock()
	replyCh, ok := c.pending[*msg.ID]
	delete(c.pending, *msg.ID)
	c.pendingMu.Unlock()
	if !ok {
		// Caller gave up before the reply arrived.
		c.log.Debug("Dropping late WAAPI reply", "id", *msg.ID)
		return
	}

	reply := wireReply{result: msg.Result}
	if msg.Error != nil {
		reply.err = &CallError{URI: msg.Error.URI, Message: msg.Error.Message}
	}
	replyCh <- reply
}

func (c *Client) deliverEvent(msg *wireMessage) {
	c.handlersMu.RLock()
	handler, ok := c.handlers[msg.SubscriptionID]
	c.handlersMu.RUnlock()
	if !ok {
		c.log.Debug("Dropping event for unknown subscription", "handle", msg.SubscriptionID)
		return
	}
	handler(msg.Event)
}

// failPending resolves every outstanding caller with the given error.
func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	for id, replyCh := range c.pending {
		replyCh <- wireReply{err: err}
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}
