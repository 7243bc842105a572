package verbs

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wwise-tools/wwise-mcp/pkg/waapi"
)

const (
	gameObjectsURI         = "ak.wwise.core.profiler.getGameObjects"
	registerGameObjURI     = "ak.soundengine.registerGameObj"
	unregisterGameObjURI   = "ak.soundengine.unregisterGameObj"
	setDefaultListenersURI = "ak.soundengine.setDefaultListeners"
	setListenersURI        = "ak.soundengine.setListeners"
	setPositionURI         = "ak.soundengine.setPosition"
	stopAllURI             = "ak.soundengine.stopAll"

	// listenerID is the fixed game object receiving all emitter output.
	listenerID = 1
	// defaultGameObjName hosts 2D playback (ambiences and similar).
	defaultGameObjName = "Global"

	positionStepInterval = 100 * time.Millisecond
)

func (r *Registry) registerGameObjects() {
	r.add(&Verb{
		Name:     "create_game_objects",
		Params:   []string{"game_obj_names", "positions"},
		Mutating: true,
		Doc: "Create game objects in one batch. " +
			"Args : game_obj_names : list[str], positions : list[tuple[float,float,float]]. Returns None.",
		Handler: createGameObjects,
	})

	r.add(&Verb{
		Name:   "list_all_game_objects_in_wwise",
		Params: nil,
		Doc: "List all game objects present in the wwise session. " +
			"Args: None. Returns list[dict]",
		Handler: func(_ context.Context, c Caller, _ Args) (any, error) {
			return c.Call(gameObjectsURI, map[string]any{"time": "capture"}, nil)
		},
	})

	r.add(&Verb{
		Name:     "move_game_obj",
		Params:   []string{"game_obj_name", "start_pos", "end_pos", "duration_ms"},
		Mutating: true,
		Doc: "Moves the game object by its name from its start position to the desired end position " +
			"over a duration (ms). If no game object with the specified name exists, one will be created. " +
			"Args : game_obj_name : str, start_pos : tuple(float, float, float), " +
			"end_pos : tuple(float, float, float), duration_ms : int (ms). Returns None",
		Handler: moveGameObj,
	})

	r.add(&Verb{
		Name:     "stop_all_sounds",
		Params:   nil,
		Mutating: true,
		Doc: "Stops all sounds on all game objects created in the captured session. " +
			"Args: None. Returns None.",
		Handler: stopAllSounds,
	})

	r.add(&Verb{
		Name:     "unregister_gameobject",
		Params:   []string{"name"},
		Mutating: true,
		Doc: "Unregisters the game object by specifying its name. " +
			"Args: name : str. Returns None.",
		Handler: unregisterGameObject,
	})
}

// sessionGameObjs fetches the capture-session game object list.
func sessionGameObjs(c Caller) ([]map[string]any, error) {
	result, err := c.Call(gameObjectsURI, map[string]any{"time": "capture"}, nil)
	if err != nil {
		return nil, err
	}
	return returnList(result), nil
}

// registerDefaultListener registers the fixed listener and routes default
// output to it.
func registerDefaultListener(c Caller) error {
	if _, err := c.Call(registerGameObjURI,
		map[string]any{"gameObject": listenerID, "name": "listener"}, nil); err != nil {
		return err
	}
	_, err := c.Call(setDefaultListenersURI,
		map[string]any{"listeners": []any{listenerID}}, nil)
	return err
}

// allocGameObjID registers a new game object under a random 31-bit id not
// already present in the capture session, wiring it to the default listener.
func allocGameObjID(c Caller, name string) (int64, error) {
	gameObjs, err := sessionGameObjs(c)
	if err != nil {
		return 0, err
	}
	existing := make(map[int64]bool, len(gameObjs))
	for _, obj := range gameObjs {
		if id, ok := obj["id"].(float64); ok {
			existing[int64(id)] = true
		}
	}

	if !existing[listenerID] {
		if err := registerDefaultListener(c); err != nil {
			return 0, err
		}
	}

	const maxTries = 64
	for i := 0; i < maxTries; i++ {
		gid, err := randomGameObjID()
		if err != nil {
			return 0, err
		}
		if existing[gid] {
			continue
		}
		if _, err := c.Call(registerGameObjURI,
			map[string]any{"gameObject": gid, "name": name}, nil); err != nil {
			return 0, err
		}
		if _, err := c.Call(setListenersURI,
			map[string]any{"emitter": gid, "listeners": []any{listenerID}}, nil); err != nil {
			return 0, err
		}
		// Give the profiler capture a moment to pick up the registration
		// before the next read.
		time.Sleep(20 * time.Millisecond)
		return gid, nil
	}
	return 0, waapi.NewBusinessError("register_game_object",
		"could not allocate a unique game object id after %d tries", maxTries)
}

func randomGameObjID() (int64, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("generate game object id: %w", err)
	}
	return int64(binary.BigEndian.Uint32(buf[:]) & 0x7fffffff), nil
}

// ensureGameObj resolves a game object by name (case-insensitive),
// registering a new one when absent.
func ensureGameObj(c Caller, name string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, &waapi.ValidationError{Message: "game object name must be non-empty", Field: "name"}
	}

	gameObjs, err := sessionGameObjs(c)
	if err != nil {
		return 0, err
	}
	wanted := strings.ToLower(strings.TrimSpace(name))
	for _, obj := range gameObjs {
		objName, ok := obj["name"].(string)
		if !ok || strings.TrimSpace(objName) == "" {
			continue
		}
		if strings.ToLower(objName) == wanted {
			if id, ok := obj["id"].(float64); ok {
				return int64(id), nil
			}
		}
	}
	return allocGameObjID(c, name)
}

// positionArgs builds a setPosition payload with the default orientation.
func positionArgs(gid int64, pos [3]float64) map[string]any {
	return map[string]any{
		"gameObject": gid,
		"position": map[string]any{
			"position":         map[string]any{"x": pos[0], "y": pos[1], "z": pos[2]},
			"orientationFront": map[string]any{"x": 0.0, "y": 1.0, "z": 0.0},
			"orientationTop":   map[string]any{"x": 0.0, "y": 0.0, "z": 1.0},
		},
	}
}

func createGameObjects(_ context.Context, c Caller, args Args) (any, error) {
	names, err := args.StringSlice("game_obj_names")
	if err != nil {
		return nil, err
	}
	positions, err := args.Vec3Slice("positions")
	if err != nil {
		return nil, err
	}
	if len(names) != len(positions) {
		return nil, waapi.NewValidationError(
			"length mismatch: game_obj_names=%d positions=%d", len(names), len(positions))
	}

	for i, name := range names {
		gid, err := ensureGameObj(c, name)
		if err != nil {
			return nil, err
		}
		if _, err := c.Call(setPositionURI, positionArgs(gid, positions[i]), nil); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func moveGameObj(_ context.Context, c Caller, args Args) (any, error) {
	name, err := args.String("game_obj_name")
	if err != nil {
		return nil, err
	}
	startPos, err := args.Vec3("start_pos")
	if err != nil {
		return nil, err
	}
	endPos, err := args.Vec3("end_pos")
	if err != nil {
		return nil, err
	}
	durationMS, err := args.Int("duration_ms")
	if err != nil {
		return nil, err
	}
	if durationMS < 0 {
		return nil, &waapi.ValidationError{Message: "duration must be >= 0", Field: "duration_ms"}
	}

	gid, err := ensureGameObj(c, name)
	if err != nil {
		return nil, err
	}

	duration := time.Duration(durationMS) * time.Millisecond
	if duration <= 0 {
		if err := c.Schedule(setPositionURI, positionArgs(gid, startPos), nil, 0); err != nil {
			return nil, err
		}
		return nil, c.Schedule(setPositionURI, positionArgs(gid, endPos), nil, 0)
	}

	// Linear interpolation, one scheduled step per interval, first sample
	// at t=0 and last exactly at the end position.
	steps := int(math.Ceil(float64(duration) / float64(positionStepInterval)))
	if steps < 1 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		a := float64(i) / float64(steps)
		pos := [3]float64{
			startPos[0] + (endPos[0]-startPos[0])*a,
			startPos[1] + (endPos[1]-startPos[1])*a,
			startPos[2] + (endPos[2]-startPos[2])*a,
		}
		dueIn := time.Duration(a * float64(duration))
		if err := c.Schedule(setPositionURI, positionArgs(gid, pos), nil, dueIn); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func stopAllSounds(_ context.Context, c Caller, _ Args) (any, error) {
	gameObjs, err := sessionGameObjs(c)
	if err != nil {
		return nil, err
	}
	for _, obj := range gameObjs {
		id, ok := obj["id"].(float64)
		if !ok {
			continue
		}
		if _, err := c.Call(stopAllURI, map[string]any{"gameObject": int64(id)}, nil); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func unregisterGameObject(_ context.Context, c Caller, args Args) (any, error) {
	name, err := args.String("name")
	if err != nil {
		return nil, err
	}
	gid, err := ensureGameObj(c, name)
	if err != nil {
		return nil, err
	}
	_, err = c.Call(unregisterGameObjURI, map[string]any{"gameObject": gid}, nil)
	return nil, err
}
