package plan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wwise-tools/wwise-mcp/pkg/verbs"
	"github.com/wwise-tools/wwise-mcp/pkg/waapi"
)

type planCall struct {
	URI  string
	Args map[string]any
}

type fakeSession struct {
	mu           sync.Mutex
	calls        []planCall
	respond      func(uri string, args map[string]any) (any, error)
	disconnected bool
	connectErr   error
	connects     int
}

func (f *fakeSession) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.disconnected
}

func (f *fakeSession) Connect(context.Context) (map[string]any, error) {
	f.mu.Lock()
	f.connects++
	err := f.connectErr
	if err == nil {
		f.disconnected = false
	}
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return map[string]any{"name": "TestProject"}, nil
}

func (f *fakeSession) Call(uri string, args, _ map[string]any) (any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, planCall{URI: uri, Args: args})
	respond := f.respond
	f.mu.Unlock()
	if respond != nil {
		return respond(uri, args)
	}
	return map[string]any{}, nil
}

func (f *fakeSession) Schedule(uri string, args, _ map[string]any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, planCall{URI: uri, Args: args})
	return nil
}

func (f *fakeSession) Subscribe(topic string, _ map[string]any) (string, error) {
	return "sub-" + topic, nil
}

func (f *fakeSession) Unsubscribe(string) (bool, error) { return true, nil }

func (f *fakeSession) SubscriptionEvents(string, int, bool) ([]map[string]any, int, bool) {
	return nil, 0, true
}

func (f *fakeSession) callURIs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	uris := make([]string, len(f.calls))
	for i, call := range f.calls {
		uris[i] = call.URI
	}
	return uris
}

// wwiseResponder serves the object URIs the plan verbs touch.
func wwiseResponder(uri string, args map[string]any) (any, error) {
	switch uri {
	case "ak.wwise.core.object.get":
		return map[string]any{"return": []any{
			map[string]any{"id": "{PARENT}", "name": "Default Work Unit", "type": "WorkUnit", "path": `\X`},
		}}, nil
	case "ak.wwise.core.object.create":
		return map[string]any{"id": "{CREATED}", "name": args["name"]}, nil
	default:
		return map[string]any{}, nil
	}
}

func newTestRunner(f *fakeSession) *Runner {
	return NewRunner(f, verbs.NewRegistry())
}

func logCommands(result *Result) []string {
	commands := make([]string, len(result.Log))
	for i, entry := range result.Log {
		commands[i] = entry.Command
	}
	return commands
}

func TestExecuteMutatingPlanBracketsUndoGroup(t *testing.T) {
	f := &fakeSession{respond: wwiseResponder}
	r := newTestRunner(f)

	result, err := r.Execute(context.Background(), []any{
		`create_objects(["Weapons"], ["Folder"], parent_paths=["\Actor-Mixer Hierarchy\Default Work Unit"])`,
		`rename_objects(names=["Weapons_SFX"], prev_response_objects=$last)`,
	})
	require.NoError(t, err)

	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, 2, result.StepsExecuted)
	assert.Equal(t, []string{
		undoBeginEntry, "create_objects", "rename_objects", undoEndEntry,
	}, logCommands(result))
	assert.NotEmpty(t, result.RunID)

	uris := f.callURIs()
	require.NotEmpty(t, uris)
	assert.Equal(t, undoBeginURI, uris[0])
	assert.Equal(t, undoEndURI, uris[len(uris)-1])
	assert.NotContains(t, uris, undoCancelURI)

	// The rename step received the created object through $last.
	var renamed *planCall
	for i := range f.calls {
		if f.calls[i].URI == "ak.wwise.core.object.setName" {
			renamed = &f.calls[i]
		}
	}
	require.NotNil(t, renamed)
	assert.Equal(t, "{CREATED}", renamed.Args["object"])
	assert.Equal(t, "Weapons_SFX", renamed.Args["value"])
}

func TestExecuteReadOnlyPlanSkipsUndoGroup(t *testing.T) {
	f := &fakeSession{respond: func(string, map[string]any) (any, error) {
		return map[string]any{"return": []any{}}, nil
	}}
	r := newTestRunner(f)

	result, err := r.Execute(context.Background(), []any{`list_all_event_names()`})
	require.NoError(t, err)
	assert.Equal(t, 1, result.StepsExecuted)
	assert.Equal(t, []string{"list_all_event_names"}, logCommands(result))

	uris := f.callURIs()
	assert.NotContains(t, uris, undoBeginURI)
	assert.NotContains(t, uris, undoEndURI)
	assert.NotContains(t, uris, undoCancelURI)
}

func TestExecuteStructuredStepsMatchCallSyntax(t *testing.T) {
	f := &fakeSession{respond: wwiseResponder}
	r := newTestRunner(f)

	// The object form carries keyword arguments directly under "args".
	result, err := r.Execute(context.Background(), []any{
		map[string]any{"command": "list_all_event_names", "args": map[string]any{}},
		map[string]any{
			"command": "resolve_all_path_relationships_in_parent",
			"args":    map[string]any{"parent_path": `\Events`},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, 2, result.StepsExecuted)
}

func TestExecuteStepFailureReturnsPartialLog(t *testing.T) {
	boom := errors.New("set rejected")
	f := &fakeSession{respond: func(uri string, args map[string]any) (any, error) {
		if uri == "ak.wwise.core.object.setProperty" {
			return nil, boom
		}
		return wwiseResponder(uri, args)
	}}
	r := newTestRunner(f)

	result, err := r.Execute(context.Background(), []any{
		`create_objects(["Weapons"], ["Folder"], parent_paths=["\X"])`,
		`set_object_property("\X\Weapons", "Volume", -6)`,
	})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "step 2 (set_object_property)")

	// The partial log survives the failure: the undo bracket, the
	// successful create, and the failed step with its error.
	require.NotNil(t, result)
	assert.Equal(t, "error", result.Status)
	assert.Equal(t, 1, result.StepsExecuted)
	assert.Equal(t, []string{
		undoBeginEntry, "create_objects", "set_object_property", undoCancelEntry,
	}, logCommands(result))
	assert.Empty(t, result.Log[1].Error)
	assert.Contains(t, result.Log[2].Error, "set rejected")
	assert.Contains(t, result.Error, "set rejected")

	uris := f.callURIs()
	assert.Equal(t, undoBeginURI, uris[0])
	assert.Equal(t, undoCancelURI, uris[len(uris)-1])
	assert.NotContains(t, uris, undoEndURI)
}

func TestExecuteConnectsWhenDisconnected(t *testing.T) {
	f := &fakeSession{
		disconnected: true,
		respond: func(string, map[string]any) (any, error) {
			return map[string]any{"return": []any{}}, nil
		},
	}
	r := newTestRunner(f)

	result, err := r.Execute(context.Background(), []any{`list_all_event_names()`})
	require.NoError(t, err)

	assert.Equal(t, 1, f.connects)
	assert.Equal(t, []string{connectEntry, "list_all_event_names"}, logCommands(result))
	assert.Equal(t, map[string]any{"name": "TestProject"}, result.Log[0].Result)
	// Bookkeeping entries do not count as executed steps.
	assert.Equal(t, 1, result.StepsExecuted)
}

func TestExecuteConnectFailureAbortsPlan(t *testing.T) {
	dialErr := errors.New("dial refused")
	f := &fakeSession{disconnected: true, connectErr: dialErr}
	r := newTestRunner(f)

	result, err := r.Execute(context.Background(), []any{`list_all_event_names()`})
	require.ErrorIs(t, err, dialErr)

	require.NotNil(t, result)
	assert.Equal(t, "error", result.Status)
	assert.Equal(t, []string{connectEntry}, logCommands(result))
	assert.Contains(t, result.Log[0].Error, "dial refused")
	assert.Empty(t, f.calls)
}

func TestExecuteUnknownCommandFailsBeforeAnyCall(t *testing.T) {
	f := &fakeSession{}
	r := newTestRunner(f)

	_, err := r.Execute(context.Background(), []any{`frobnicate("x")`})
	var validationErr *waapi.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Empty(t, f.calls)
}

func TestExecuteUnknownVariableCancelsUndoGroup(t *testing.T) {
	f := &fakeSession{respond: wwiseResponder}
	r := newTestRunner(f)

	result, err := r.Execute(context.Background(), []any{
		`rename_objects(names=["x"], prev_response_objects=$nope)`,
	})
	var validationErr *waapi.ValidationError
	require.ErrorAs(t, err, &validationErr)

	uris := f.callURIs()
	require.Len(t, uris, 2)
	assert.Equal(t, undoBeginURI, uris[0])
	assert.Equal(t, undoCancelURI, uris[1])

	require.NotNil(t, result)
	assert.Equal(t, []string{undoBeginEntry, "rename_objects", undoCancelEntry}, logCommands(result))
	assert.Contains(t, result.Log[1].Error, "nope")
}

func TestExecuteRejectsUnknownKeyword(t *testing.T) {
	f := &fakeSession{}
	r := newTestRunner(f)

	_, err := r.Execute(context.Background(), []any{`list_all_event_names(nope=1)`})
	var validationErr *waapi.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Error(), "nope")
}

func TestExecuteRejectsExcessPositionals(t *testing.T) {
	f := &fakeSession{}
	r := newTestRunner(f)

	_, err := r.Execute(context.Background(), []any{`get_project_info("surplus")`})
	var validationErr *waapi.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestExecuteSaveAsBindsVariable(t *testing.T) {
	f := &fakeSession{respond: wwiseResponder}
	r := newTestRunner(f)

	result, err := r.Execute(context.Background(), []any{
		map[string]any{
			"command": "create_objects",
			"args": map[string]any{
				"child_names":  []any{"Weapons"},
				"child_types":  []any{"Folder"},
				"parent_paths": []any{`\X`},
			},
			"save_as": "created",
		},
		`rename_objects(names=["Renamed"], prev_response_objects=$created)`,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.StepsExecuted)
}

func TestExecuteEmptyPlanRejected(t *testing.T) {
	r := newTestRunner(&fakeSession{})
	_, err := r.Execute(context.Background(), nil)
	var validationErr *waapi.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestExecuteEndGroupFailureAttemptsCancel(t *testing.T) {
	endErr := errors.New("end rejected")
	f := &fakeSession{respond: func(uri string, args map[string]any) (any, error) {
		if uri == undoEndURI {
			return nil, endErr
		}
		return wwiseResponder(uri, args)
	}}
	r := newTestRunner(f)

	result, err := r.Execute(context.Background(), []any{
		`create_objects(["Weapons"], ["Folder"], parent_paths=["\X"])`,
	})
	require.ErrorIs(t, err, endErr)

	uris := f.callURIs()
	assert.Equal(t, undoCancelURI, uris[len(uris)-1])

	require.NotNil(t, result)
	assert.Equal(t, []string{
		undoBeginEntry, "create_objects", undoEndEntry, undoCancelEntry,
	}, logCommands(result))
	assert.Contains(t, result.Log[2].Error, "end rejected")
}
