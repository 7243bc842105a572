package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wwise-tools/wwise-mcp/pkg/dispatch"
	"github.com/wwise-tools/wwise-mcp/pkg/session"
)

type fakeSource struct {
	status session.Status
}

func (f *fakeSource) Status() session.Status { return f.status }

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	server := NewServer(":0", &fakeSource{})

	rec := get(t, server.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "wwise-mcp", body["service"])
	assert.NotEmpty(t, body["version"])
}

func TestStatusEndpoint(t *testing.T) {
	connectedAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	server := NewServer(":0", &fakeSource{status: session.Status{
		State:       "connected",
		Endpoint:    "ws://127.0.0.1:8080/waapi",
		ConnectedAt: &connectedAt,
		Project:     map[string]any{"name": "MyGame"},
		Dispatcher: dispatch.Stats{
			Running:   true,
			Queued:    3,
			Processed: 42,
		},
		Subscriptions: map[string]string{"sub-1": "ak.wwise.core.object.nameChanged"},
	}})

	rec := get(t, server.Handler(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		State      string         `json:"state"`
		Endpoint   string         `json:"endpoint"`
		Project    map[string]any `json:"project"`
		Dispatcher struct {
			Running   bool   `json:"running"`
			Queued    int    `json:"queued"`
			Processed uint64 `json:"processed"`
		} `json:"dispatcher"`
		Subscriptions map[string]string `json:"subscriptions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "connected", body.State)
	assert.Equal(t, "ws://127.0.0.1:8080/waapi", body.Endpoint)
	assert.Equal(t, "MyGame", body.Project["name"])
	assert.True(t, body.Dispatcher.Running)
	assert.Equal(t, 3, body.Dispatcher.Queued)
	assert.Equal(t, uint64(42), body.Dispatcher.Processed)
	assert.Equal(t, "ak.wwise.core.object.nameChanged", body.Subscriptions["sub-1"])
}

func TestUnknownRouteReturns404(t *testing.T) {
	server := NewServer(":0", &fakeSource{})
	rec := get(t, server.Handler(), "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
