package verbs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wwise-tools/wwise-mcp/pkg/waapi"
)

const (
	postEventURI = "ak.soundengine.postEvent"
	eventsRoot   = `\Events`
)

// eventActionTypes maps action names to the Authoring API action-type ids
// used when creating event actions.
var eventActionTypes = map[string]int{
	"play":   1,
	"stop":   2,
	"pause":  7,
	"resume": 9,
	"break":  34,
	"seek":   36,
}

func validEventTypes() string {
	names := make([]string, 0, len(eventActionTypes))
	for name := range eventActionTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func (r *Registry) registerEvents() {
	r.add(&Verb{
		Name:     "create_events",
		Params:   []string{"source_paths", "dst_parent_paths", "event_types", "event_names"},
		Mutating: true,
		Doc: "Create multiple Wwise events in one batch. " +
			"Args: source_paths (list[str]), dst_parent_paths (list[str]), event_types (list[str]), " +
			"event_names (list[str]). All four lists must have the same length. Returns: list[dict]",
		Handler: createEvents,
	})

	r.add(&Verb{
		Name:   "list_all_event_names",
		Params: nil,
		Doc: "List all event names. " +
			"Args: None. Returns list[str]",
		Handler: func(_ context.Context, c Caller, _ Args) (any, error) {
			return listNamesUnder(c, eventsRoot, []string{"Event"}, "")
		},
	})

	r.add(&Verb{
		Name:     "post_event",
		Params:   []string{"event_name", "game_obj_name", "delay_ms"},
		Mutating: true,
		Doc: "Posts the event by its name on the game object specified by its name after a delay " +
			"in milliseconds. If no game object is specified, the event will be posted on the 'Global' " +
			"game object which should be used for 2D sounds like Ambiences. " +
			"If the specified game object does not exist, it will be created automatically at time of call. " +
			"If user does not specify delay_ms, assume post immediately so set delay_ms = 0. " +
			"Types of events : Play, Stop, Pause, Break, Seek. " +
			"Args: event_name: str, game_obj_name : str, delay_ms : int. Returns None",
		Handler: postEvent,
	})
}

func createEvents(_ context.Context, c Caller, args Args) (any, error) {
	sourcePaths, err := args.StringSlice("source_paths")
	if err != nil {
		return nil, err
	}
	parentPaths, err := args.StringSlice("dst_parent_paths")
	if err != nil {
		return nil, err
	}
	eventTypes, err := args.StringSlice("event_types")
	if err != nil {
		return nil, err
	}
	eventNames, err := args.StringSlice("event_names")
	if err != nil {
		return nil, err
	}

	if len(sourcePaths) != len(parentPaths) ||
		len(sourcePaths) != len(eventTypes) ||
		len(sourcePaths) != len(eventNames) {
		return nil, waapi.NewValidationError(
			"all input lists must have the same length when creating events")
	}

	results := make([]map[string]any, 0, len(eventNames))
	for i := range eventNames {
		result, err := createEvent(c, sourcePaths[i], parentPaths[i], eventTypes[i], eventNames[i])
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// createEvent makes one Event object plus its action targeting the source.
func createEvent(c Caller, sourcePath, parentPath, eventType, eventName string) (map[string]any, error) {
	actionType, ok := eventActionTypes[strings.ToLower(eventType)]
	if !ok {
		return nil, waapi.NewValidationError(
			"invalid event_type %q, valid types: %s", eventType, validEventTypes())
	}

	parent, err := getObjectAtPath(c, parentPath)
	if err != nil {
		return nil, err
	}
	parentID, err := objectID(parent)
	if err != nil {
		return nil, err
	}

	source, err := getObjectAtPath(c, sourcePath)
	if err != nil {
		return nil, err
	}
	sourceID, err := objectID(source)
	if err != nil {
		return nil, err
	}

	event, err := createObject(c, parentID, "Event", eventName, "rename")
	if err != nil {
		return nil, err
	}

	action, err := c.Call(objectCreateURI, map[string]any{
		"parent":      event["id"],
		"type":        "Action",
		"name":        eventName,
		"@ActionType": actionType,
		"@Target":     sourceID,
	}, nil)
	if err != nil {
		return nil, err
	}
	actionObj := asMap(action)
	if actionObj == nil || actionObj["id"] == nil {
		return nil, &waapi.BusinessError{
			Message:   fmt.Sprintf("action creation for event %q returned an invalid response", eventName),
			Operation: objectCreateURI,
		}
	}

	return map[string]any{"event": event, "action": actionObj}, nil
}

// listNamesUnder queries names of objects of the given types under a root
// path. A filter starting with a backslash narrows the subtree; any other
// non-empty filter fuzzy-matches names.
func listNamesUnder(c Caller, root string, types []string, filter string) ([]string, error) {
	spec := strings.TrimSpace(filter)
	startPath := root
	nameCond := ""
	switch {
	case strings.HasPrefix(spec, `\`):
		startPath = strings.TrimRight(spec, `\`)
	case spec != "":
		nameCond = spec
	}

	transform := []any{map[string]any{"select": []any{"descendants"}}}
	if nameCond != "" {
		transform = append(transform, map[string]any{"where": []any{"name:matches", nameCond}})
	}
	typeList := make([]any, len(types))
	for i, t := range types {
		typeList[i] = t
	}
	transform = append(transform, map[string]any{"where": []any{"type:isIn", typeList}})

	result, err := c.Call(objectGetURI,
		map[string]any{
			"from":      map[string]any{"path": []any{startPath}},
			"transform": transform,
		},
		map[string]any{"return": []any{"name"}})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0)
	for _, obj := range returnList(result) {
		if name, ok := obj["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func postEvent(_ context.Context, c Caller, args Args) (any, error) {
	eventName, err := args.String("event_name")
	if err != nil {
		return nil, err
	}
	gameObjName, err := args.OptString("game_obj_name", defaultGameObjName)
	if err != nil {
		return nil, err
	}
	delayMS, err := args.OptInt("delay_ms", 0)
	if err != nil {
		return nil, err
	}
	if delayMS < 0 {
		return nil, &waapi.ValidationError{Message: "delay must be >= 0", Field: "delay_ms"}
	}

	gid, err := ensureGameObj(c, gameObjName)
	if err != nil {
		return nil, err
	}

	return nil, c.Schedule(postEventURI,
		map[string]any{"event": eventName, "gameObject": gid},
		nil,
		time.Duration(delayMS)*time.Millisecond)
}
