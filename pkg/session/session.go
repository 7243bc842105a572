// Package session manages the lifetime of one Authoring API connection: the
// WebSocket client, the dispatcher built on top of it, and the connection
// state machine that gates callers during reconnects.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wwise-tools/wwise-mcp/pkg/config"
	"github.com/wwise-tools/wwise-mcp/pkg/dispatch"
	"github.com/wwise-tools/wwise-mcp/pkg/waapi"
)

// projectInfoURI probes a fresh connection before it is handed to callers.
const projectInfoURI = "ak.wwise.core.getProjectInfo"

// State is the session connection state.
type State int

const (
	// StateIdle: no connection has ever been attempted.
	StateIdle State = iota
	// StateConnecting: first connection attempt in progress.
	StateConnecting
	// StateConnected: connection healthy, calls flow.
	StateConnected
	// StateReconnecting: an established connection is being replaced;
	// callers fast-fail instead of piling onto a dying dispatcher.
	StateReconnecting
	// StateDisconnected: last attempt failed or the connection dropped.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Conn is the connection surface the session manages. Satisfied by
// *waapi.Client; tests substitute fakes through DialFunc.
type Conn interface {
	dispatch.RPCClient
	Close() error
}

// DialFunc opens a new Authoring API connection.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// defaultDial connects over WebSocket.
func defaultDial(ctx context.Context, url string) (Conn, error) {
	return waapi.Dial(ctx, url)
}

// Status is the point-in-time session snapshot exposed by the status server.
type Status struct {
	State         string            `json:"state"`
	Endpoint      string            `json:"endpoint"`
	ConnectedAt   *time.Time        `json:"connected_at,omitempty"`
	Project       map[string]any    `json:"project,omitempty"`
	Dispatcher    dispatch.Stats    `json:"dispatcher"`
	Subscriptions map[string]string `json:"subscriptions,omitempty"`
}

// Session owns one connection and its dispatcher. All tool traffic flows
// through it; it enforces the connection state machine.
type Session struct {
	cfg  *config.Config
	dial DialFunc
	log  *slog.Logger

	// connecting serializes Connect: a second concurrent attempt fails
	// fast instead of racing the teardown/dial sequence.
	connecting atomic.Bool

	mu          sync.Mutex
	state       State
	conn        Conn
	disp        *dispatch.Dispatcher
	connectedAt time.Time
	projectInfo map[string]any
}

// New creates a session with the default WebSocket dialer.
func New(cfg *config.Config) *Session {
	return NewWithDialer(cfg, defaultDial)
}

// NewWithDialer creates a session with a custom dialer, for tests.
func NewWithDialer(cfg *config.Config, dial DialFunc) *Session {
	return &Session{
		cfg:  cfg,
		dial: dial,
		log:  slog.With("component", "session"),
	}
}

// Connect (re)establishes the Authoring API connection:
//
//  1. Reject concurrent attempts.
//  2. Detach and tear down any previous dispatcher and connection; while
//     this runs, callers observe connecting/reconnecting and fast-fail.
//  3. Dial the endpoint.
//  4. Start a fresh dispatcher and probe the connection with a project
//     info call.
//  5. Publish the new connection, or record the failure.
//
// Returns the project info reported by the Authoring application.
func (s *Session) Connect(ctx context.Context) (map[string]any, error) {
	if !s.connecting.CompareAndSwap(false, true) {
		return nil, waapi.ErrAlreadyReconnecting
	}
	defer s.connecting.Store(false)

	s.mu.Lock()
	prevConn, prevDisp := s.conn, s.disp
	s.conn, s.disp = nil, nil
	if prevDisp != nil {
		s.state = StateReconnecting
	} else {
		s.state = StateConnecting
	}
	s.mu.Unlock()

	if prevDisp != nil {
		s.log.Info("Replacing existing WAAPI connection")
		prevDisp.Stop(s.cfg.ShutdownTimeout)
	}
	if prevConn != nil {
		_ = prevConn.Close()
	}

	conn, err := s.dial(ctx, s.cfg.EndpointURL)
	if err != nil {
		s.setState(StateDisconnected)
		s.log.Error("WAAPI dial failed", "endpoint", s.cfg.EndpointURL, "error", err)
		return nil, err
	}

	disp := dispatch.New(conn, dispatch.Config{
		MaxQueueSize:          s.cfg.MaxQueueSize,
		MaxSubscriptionEvents: s.cfg.MaxSubscriptionEvents,
		RPCTimeout:            s.cfg.RPCTimeout,
		PollInterval:          s.cfg.PollInterval,
	})
	disp.Start()

	result, err := disp.Call(projectInfoURI, nil, nil, s.cfg.RPCTimeout)
	if err != nil {
		disp.Stop(s.cfg.ShutdownTimeout)
		_ = conn.Close()
		s.setState(StateDisconnected)
		s.log.Error("WAAPI connection probe failed", "error", err)
		return nil, err
	}
	info, _ := result.(map[string]any)

	s.mu.Lock()
	s.conn = conn
	s.disp = disp
	s.state = StateConnected
	s.connectedAt = time.Now()
	s.projectInfo = info
	s.mu.Unlock()

	s.log.Info("Connected to Wwise Authoring",
		"endpoint", s.cfg.EndpointURL, "project", info["name"])
	return info, nil
}

// Disconnect tears the connection down. Safe when not connected.
func (s *Session) Disconnect() {
	s.mu.Lock()
	conn, disp := s.conn, s.disp
	s.conn, s.disp = nil, nil
	s.state = StateDisconnected
	s.projectInfo = nil
	s.mu.Unlock()

	if disp != nil {
		disp.Stop(s.cfg.ShutdownTimeout)
	}
	if conn != nil {
		_ = conn.Close()
	}
	s.log.Info("Disconnected from Wwise Authoring")
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether calls can flow right now.
func (s *Session) Connected() bool {
	return s.State() == StateConnected
}

// Status snapshots the session for the status endpoint.
func (s *Session) Status() Status {
	s.mu.Lock()
	state := s.state
	disp := s.disp
	connectedAt := s.connectedAt
	info := s.projectInfo
	s.mu.Unlock()

	status := Status{
		State:    state.String(),
		Endpoint: s.cfg.EndpointURL,
		Project:  info,
	}
	if state == StateConnected {
		status.ConnectedAt = &connectedAt
	}
	if disp != nil {
		status.Dispatcher = disp.Stats()
		status.Subscriptions = disp.Subscriptions()
	}
	return status
}

// Call performs a request/response WAAPI call, waiting up to the configured
// call timeout. A transport failure flips the session to disconnected.
func (s *Session) Call(uri string, args, options map[string]any) (any, error) {
	disp, err := s.dispatcher()
	if err != nil {
		return nil, err
	}
	result, err := disp.Call(uri, args, options, s.cfg.CallTimeout)
	s.noteFailure(err)
	return result, err
}

// Schedule enqueues a fire-and-forget call due after the given delay.
func (s *Session) Schedule(uri string, args, options map[string]any, dueIn time.Duration) error {
	disp, err := s.dispatcher()
	if err != nil {
		return err
	}
	return disp.Schedule(uri, args, options, dueIn)
}

// Subscribe establishes a topic subscription and returns its id.
func (s *Session) Subscribe(topic string, options map[string]any) (string, error) {
	disp, err := s.dispatcher()
	if err != nil {
		return "", err
	}
	id, err := disp.Subscribe(topic, options, s.cfg.CallTimeout)
	s.noteFailure(err)
	return id, err
}

// Unsubscribe cancels a subscription. Returns false for unknown ids.
func (s *Session) Unsubscribe(id string) (bool, error) {
	disp, err := s.dispatcher()
	if err != nil {
		return false, err
	}
	found, err := disp.Unsubscribe(id, s.cfg.CallTimeout)
	s.noteFailure(err)
	return found, err
}

// SubscriptionEvents drains buffered events for a subscription id.
func (s *Session) SubscriptionEvents(id string, max int, clear bool) ([]map[string]any, int, bool) {
	s.mu.Lock()
	disp := s.disp
	s.mu.Unlock()
	if disp == nil {
		return nil, 0, false
	}
	return disp.Events(id, max, clear)
}

// dispatcher returns the live dispatcher or the state-appropriate error.
func (s *Session) dispatcher() (*dispatch.Dispatcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateConnecting, StateReconnecting:
		return nil, waapi.ErrReconnecting
	case StateConnected:
		return s.disp, nil
	default:
		return nil, waapi.ErrNotConnected
	}
}

// setState updates the connection state under the lock.
func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// noteFailure downgrades the session on transport failures. The connection
// object stays attached; the next Connect tears it down.
func (s *Session) noteFailure(err error) {
	if err == nil {
		return
	}
	var transportErr *waapi.TransportError
	if !errors.As(err, &transportErr) {
		return
	}
	s.mu.Lock()
	if s.state == StateConnected {
		s.state = StateDisconnected
		s.log.Warn("WAAPI connection lost, session disconnected")
	}
	s.mu.Unlock()
}
