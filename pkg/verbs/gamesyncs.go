package verbs

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/wwise-tools/wwise-mcp/pkg/waapi"
)

const (
	setRTPCValueURI  = "ak.soundengine.setRTPCValue"
	setStateURI      = "ak.soundengine.setState"
	setSwitchURI     = "ak.soundengine.setSwitch"
	rtpcSetRangeURI  = "ak.wwise.core.gameParameter.setRange"
	gameParamsRoot   = `\Game Parameters`
	switchesRoot     = `\Switches`
	statesRoot       = `\States`
	rtpcStepInterval = 50 * time.Millisecond
)

func (r *Registry) registerGameSyncs() {
	r.add(&Verb{
		Name:     "create_rtpcs",
		Params:   []string{"rtpc_names", "parent_paths", "min_values", "max_values"},
		Mutating: true,
		Doc: "Creates rtpcs in one batch. " +
			"Args: rtpc_names : list[str], parent_paths : list[str], min_values : list[float], " +
			"max_values : list[float]. All four lists must have the same length. " +
			"Returns: list[dict]. parent path should always start with '\\\\Game Parameters'. " +
			"If user does not specify min_values or max_values use 0.0 for min and 100.0 for max.",
		Handler: createRTPCs,
	})

	r.add(&Verb{
		Name:     "create_switch_groups",
		Params:   []string{"names", "parent_paths"},
		Mutating: true,
		Doc: "Creates a list of switch groups. " +
			"Args: names: list[str], parent_paths : list[str]. " +
			"Returns: list[dict]. A parent path should always start with '\\\\Switches'. " +
			"Note that if you are creating a new SwitchGroup, the Group must always be created " +
			"first before its Children.",
		Handler: gameSyncCreator("SwitchGroup"),
	})

	r.add(&Verb{
		Name:     "create_switches",
		Params:   []string{"names", "parent_paths"},
		Mutating: true,
		Doc: "Creates a list of switches. " +
			"Args: names: list[str], parent_paths : list[str]. " +
			"Returns: list[dict]. The parent path should always start with '\\\\Switches' and " +
			"represents the SwitchGroup the given switch belongs to. " +
			"Note that if you are creating a new SwitchGroup, the Group must always be created " +
			"first before its Children.",
		Handler: gameSyncCreator("Switch"),
	})

	r.add(&Verb{
		Name:     "create_state_groups",
		Params:   []string{"names", "parent_paths"},
		Mutating: true,
		Doc: "Creates a list of state groups. " +
			"Args: names: list[str], parent_paths : list[str]. " +
			"Returns: list[dict]. A parent path should always start with '\\\\States'. " +
			"Note that if you are creating a new StateGroup, the Group must always be created " +
			"first before its Children.",
		Handler: gameSyncCreator("StateGroup"),
	})

	r.add(&Verb{
		Name:     "create_states",
		Params:   []string{"names", "parent_paths"},
		Mutating: true,
		Doc: "Creates a list of states. " +
			"Args: names: list[str], parent_paths : list[str]. " +
			"Returns: list[dict]. A parent path should always start with '\\\\States' and " +
			"represents the StateGroup the given state belongs to. " +
			"Note that if you are creating a new StateGroup, the Group must always be created " +
			"first before its Children.",
		Handler: gameSyncCreator("State"),
	})

	r.add(&Verb{
		Name:   "list_all_rtpc_names",
		Params: nil,
		Doc: "List all rtpc names in wwise project. " +
			"Args: None. Returns list[str]",
		Handler: func(_ context.Context, c Caller, _ Args) (any, error) {
			return listNamesUnder(c, gameParamsRoot, []string{"GameParameter"}, "")
		},
	})

	r.add(&Verb{
		Name:   "list_all_switchgroups_and_switches",
		Params: nil,
		Doc: "List all switches grouped by their parent switch groups in a dict " +
			"eg. [SwitchGroupName: [SwitchName, ...]]. Args: None. Returns dict[str, list[str]]",
		Handler: func(_ context.Context, c Caller, _ Args) (any, error) {
			return groupedGameSyncs(c, switchesRoot, []string{"Switch"})
		},
	})

	r.add(&Verb{
		Name:   "list_all_stategroups_and_states",
		Params: nil,
		Doc: "List all states grouped by their parent state groups in a dict " +
			"eg. [StateGroupName: [StateName, ...]]. Args: None. Returns dict[str, list[str]]",
		Handler: func(_ context.Context, c Caller, _ Args) (any, error) {
			return groupedGameSyncs(c, statesRoot, []string{"State"})
		},
	})

	r.add(&Verb{
		Name:     "set_rtpc",
		Params:   []string{"game_object_name", "rtpc_name", "start", "end", "duration"},
		Mutating: true,
		Doc: "Sets an RTPC on the specified game object using the given object name and RTPC " +
			"parameter name. You can define start and end values over a duration (in milliseconds). " +
			"If no game object is specified, the RTPC is applied to the global game object 'Global'. " +
			"Args : game_object_name : str, rtpc_name : str, start : float, end : float, " +
			"duration : int (milliseconds). Returns None",
		Handler: setRTPC,
	})

	r.add(&Verb{
		Name:     "set_state",
		Params:   []string{"state_group", "state"},
		Mutating: true,
		Doc: "Sets the state by the state group name it belongs to and the name of the state itself. " +
			"Args : state_group : str, state : str. Returns None",
		Handler: setState,
	})

	r.add(&Verb{
		Name:     "set_switch",
		Params:   []string{"game_object_name", "switch_group", "switch"},
		Mutating: true,
		Doc: "Sets the switch by the switch group name it belongs to and the name of the switch itself. " +
			"Args : game_object_name : str, switch_group : str, switch : str. Returns None",
		Handler: setSwitch,
	})
}

// gameSyncCreator builds the shared batch-create handler for switch/state
// groups and their children.
func gameSyncCreator(objType string) HandlerFunc {
	return func(_ context.Context, c Caller, args Args) (any, error) {
		names, err := args.StringSlice("names")
		if err != nil {
			return nil, err
		}
		parentPaths, err := args.StringSlice("parent_paths")
		if err != nil {
			return nil, err
		}
		if len(names) != len(parentPaths) {
			return nil, waapi.NewValidationError(
				"length mismatch: names=%d parent_paths=%d", len(names), len(parentPaths))
		}

		results := make([]map[string]any, 0, len(names))
		for i := range names {
			created, err := createObject(c, parentPaths[i], objType, names[i], "rename")
			if err != nil {
				return nil, err
			}
			results = append(results, created)
		}
		return results, nil
	}
}

func createRTPCs(_ context.Context, c Caller, args Args) (any, error) {
	names, err := args.StringSlice("rtpc_names")
	if err != nil {
		return nil, err
	}
	parentPaths, err := args.StringSlice("parent_paths")
	if err != nil {
		return nil, err
	}
	minValues, err := args.FloatSlice("min_values")
	if err != nil {
		return nil, err
	}
	maxValues, err := args.FloatSlice("max_values")
	if err != nil {
		return nil, err
	}
	if len(names) != len(parentPaths) || len(names) != len(minValues) || len(names) != len(maxValues) {
		return nil, waapi.NewValidationError(
			"length mismatch: rtpc_names=%d parent_paths=%d min_values=%d max_values=%d",
			len(names), len(parentPaths), len(minValues), len(maxValues))
	}

	results := make([]map[string]any, 0, len(names))
	for i := range names {
		if minValues[i] > maxValues[i] {
			return nil, waapi.NewValidationError(
				"invalid rtpc range for %q: min %v > max %v", names[i], minValues[i], maxValues[i])
		}
		created, err := createObject(c, parentPaths[i], "GameParameter", names[i], "rename")
		if err != nil {
			return nil, err
		}
		if _, err := c.Call(rtpcSetRangeURI, map[string]any{
			"object":        created["id"],
			"min":           minValues[i],
			"max":           maxValues[i],
			"onCurveUpdate": "stretch",
		}, nil); err != nil {
			return nil, err
		}
		results = append(results, created)
	}
	return results, nil
}

// groupedGameSyncs returns {GroupName: [ChildName, ...]} for switches or
// states, resolving each child's parent group by id.
func groupedGameSyncs(c Caller, root string, childTypes []string) (map[string][]string, error) {
	typeList := make([]any, len(childTypes))
	for i, t := range childTypes {
		typeList[i] = t
	}
	result, err := c.Call(objectGetURI,
		map[string]any{
			"from": map[string]any{"path": []any{root}},
			"transform": []any{
				map[string]any{"select": []any{"descendants"}},
				map[string]any{"where": []any{"type:isIn", typeList}},
			},
		},
		map[string]any{"return": []any{"id", "name"}})
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]string)
	for _, child := range returnList(result) {
		id, _ := child["id"].(string)
		name, _ := child["name"].(string)
		if id == "" || name == "" {
			continue
		}
		parentName, err := parentNameOf(c, id)
		if err != nil || parentName == "" {
			continue
		}
		groups[parentName] = append(groups[parentName], name)
	}

	for group := range groups {
		names := groups[group]
		sort.Slice(names, func(i, j int) bool {
			return strings.ToLower(names[i]) < strings.ToLower(names[j])
		})
	}
	return groups, nil
}

// parentNameOf resolves the parent object's name for a child id.
func parentNameOf(c Caller, childID string) (string, error) {
	result, err := c.Call(objectGetURI,
		map[string]any{
			"from":      map[string]any{"id": []any{childID}},
			"transform": []any{map[string]any{"select": []any{"parent"}}},
		},
		map[string]any{"return": []any{"id", "name"}})
	if err != nil {
		return "", err
	}
	parents := returnList(result)
	if len(parents) == 0 {
		return "", nil
	}
	name, _ := parents[0]["name"].(string)
	return name, nil
}

func setRTPC(_ context.Context, c Caller, args Args) (any, error) {
	rtpcName, err := args.String("rtpc_name")
	if err != nil {
		return nil, err
	}
	gameObjName, err := args.OptString("game_object_name", defaultGameObjName)
	if err != nil {
		return nil, err
	}
	start, err := args.Float("start")
	if err != nil {
		return nil, err
	}
	end, err := args.Float("end")
	if err != nil {
		return nil, err
	}
	durationMS, err := args.OptInt("duration", 0)
	if err != nil {
		return nil, err
	}
	if durationMS < 0 {
		return nil, &waapi.ValidationError{Message: "duration must be >= 0", Field: "duration"}
	}

	gid, err := ensureGameObj(c, gameObjName)
	if err != nil {
		return nil, err
	}

	duration := time.Duration(durationMS) * time.Millisecond
	if duration == 0 {
		return nil, c.Schedule(setRTPCValueURI,
			map[string]any{"rtpc": rtpcName, "value": end, "gameObject": gid}, nil, 0)
	}

	// Linear ramp emitted as scheduled steps, final sample lands exactly
	// on the end value.
	steps := int(math.Ceil(float64(duration) / float64(rtpcStepInterval)))
	if steps < 1 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		value := start + (end-start)*t
		dueIn := time.Duration(t * float64(duration))
		if err := c.Schedule(setRTPCValueURI,
			map[string]any{"rtpc": rtpcName, "value": value, "gameObject": gid}, nil, dueIn); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func setState(_ context.Context, c Caller, args Args) (any, error) {
	stateGroup, err := args.String("state_group")
	if err != nil {
		return nil, err
	}
	state, err := args.String("state")
	if err != nil {
		return nil, err
	}
	return nil, c.Schedule(setStateURI,
		map[string]any{"stateGroup": stateGroup, "state": state}, nil, 0)
}

func setSwitch(_ context.Context, c Caller, args Args) (any, error) {
	switchGroup, err := args.String("switch_group")
	if err != nil {
		return nil, err
	}
	switchName, err := args.String("switch")
	if err != nil {
		return nil, err
	}
	gameObjName, err := args.OptString("game_object_name", defaultGameObjName)
	if err != nil {
		return nil, err
	}

	gid, err := ensureGameObj(c, gameObjName)
	if err != nil {
		return nil, err
	}
	return nil, c.Schedule(setSwitchURI, map[string]any{
		"switchGroup": switchGroup,
		"switchState": switchName,
		"gameObject":  gid,
	}, nil, 0)
}
