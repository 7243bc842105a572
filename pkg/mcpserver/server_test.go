package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wwise-tools/wwise-mcp/pkg/plan"
	"github.com/wwise-tools/wwise-mcp/pkg/verbs"
)

// fakeSession serves canned WAAPI responses so plans can execute end to end
// over the in-memory MCP transport.
type fakeSession struct{}

func (fakeSession) Connected() bool { return true }

func (fakeSession) Connect(context.Context) (map[string]any, error) {
	return map[string]any{"name": "TestProject"}, nil
}

func (fakeSession) Call(uri string, args, _ map[string]any) (any, error) {
	switch uri {
	case "ak.wwise.core.object.get":
		return map[string]any{"return": []any{
			map[string]any{"id": "{OBJ}", "name": "Default Work Unit", "type": "WorkUnit", "path": `\X`},
		}}, nil
	case "ak.wwise.core.object.create":
		return map[string]any{"id": "{CREATED}", "name": args["name"]}, nil
	case "ak.wwise.core.object.setProperty":
		return nil, errors.New("property is read-only")
	default:
		return map[string]any{}, nil
	}
}

func (fakeSession) Schedule(string, map[string]any, map[string]any, time.Duration) error { return nil }

func (fakeSession) Subscribe(topic string, _ map[string]any) (string, error) {
	return "sub-" + topic, nil
}

func (fakeSession) Unsubscribe(string) (bool, error) { return true, nil }

func (fakeSession) SubscriptionEvents(string, int, bool) ([]map[string]any, int, bool) {
	return nil, 0, false
}

func startServer(t *testing.T) *mcpsdk.ClientSession {
	t.Helper()

	registry := verbs.NewRegistry()
	server := New(registry, plan.NewRunner(fakeSession{}, registry))

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = server.Run(ctx, serverTransport) }()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name: "wwise-mcp-test", Version: "test",
	}, nil)
	session, err := client.Connect(context.Background(), clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callText(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return tc.Text
}

func TestServerExposesTools(t *testing.T) {
	session := startServer(t)

	result, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	assert.ElementsMatch(t, []string{"list_wwise_commands", "execute_plan"}, names)
}

func TestListWwiseCommands(t *testing.T) {
	session := startServer(t)

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "list_wwise_commands",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := callText(t, result)
	assert.Contains(t, text, "create_objects(")
	assert.Contains(t, text, "post_event(")
	assert.Contains(t, text, "subscribe_topic(")
}

func TestExecutePlanRoundTrip(t *testing.T) {
	session := startServer(t)

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name: "execute_plan",
		Arguments: map[string]any{
			"plan": []any{
				`create_objects(["Weapons"], ["Folder"], parent_paths=["\X"])`,
				`rename_objects(names=["Weapons_SFX"], prev_response_objects=$last)`,
			},
		},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, "tool error: %v", result.Content)

	var payload struct {
		Status        string `json:"status"`
		StepsExecuted int    `json:"steps_executed"`
		Log           []struct {
			Command string `json:"command"`
		} `json:"log"`
	}
	require.NoError(t, json.Unmarshal([]byte(callText(t, result)), &payload))
	assert.Equal(t, "ok", payload.Status)
	assert.Equal(t, 2, payload.StepsExecuted)
	require.Len(t, payload.Log, 4)
	assert.Equal(t, "undo.begin_group", payload.Log[0].Command)
	assert.Equal(t, "create_objects", payload.Log[1].Command)
	assert.Equal(t, "undo.end_group", payload.Log[3].Command)
}

func TestExecutePlanFailureCarriesPartialLog(t *testing.T) {
	session := startServer(t)

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name: "execute_plan",
		Arguments: map[string]any{
			"plan": []any{
				`create_objects(["Weapons"], ["Folder"], parent_paths=["\X"])`,
				`set_object_property("\X\Weapons", "Volume", -96)`,
			},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	var payload struct {
		Status string `json:"status"`
		Error  string `json:"error"`
		Log    []struct {
			Command string `json:"command"`
			Error   string `json:"error"`
		} `json:"log"`
	}
	require.NoError(t, json.Unmarshal([]byte(callText(t, result)), &payload))
	assert.Equal(t, "error", payload.Status)
	assert.Contains(t, payload.Error, "read-only")
	require.Len(t, payload.Log, 4)
	assert.Equal(t, "undo.begin_group", payload.Log[0].Command)
	assert.Equal(t, "create_objects", payload.Log[1].Command)
	assert.Contains(t, payload.Log[2].Error, "read-only")
	assert.Equal(t, "undo.cancel_group", payload.Log[3].Command)
}

func TestExecutePlanReportsToolError(t *testing.T) {
	session := startServer(t)

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "execute_plan",
		Arguments: map[string]any{"plan": []any{`frobnicate("x")`}},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, callText(t, result), "frobnicate")
}

func TestExecutePlanRejectsEmptyPlan(t *testing.T) {
	session := startServer(t)

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "execute_plan",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
