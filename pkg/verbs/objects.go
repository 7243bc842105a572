package verbs

import (
	"context"
	"fmt"
	"strings"

	"github.com/wwise-tools/wwise-mcp/pkg/waapi"
)

const (
	objectGetURI         = "ak.wwise.core.object.get"
	objectCreateURI      = "ak.wwise.core.object.create"
	objectMoveURI        = "ak.wwise.core.object.move"
	objectSetNameURI     = "ak.wwise.core.object.setName"
	objectSetPropertyURI = "ak.wwise.core.object.setProperty"
	selectedObjectsURI   = "ak.wwise.ui.getSelectedObjects"
)

// getObjectAtPath resolves one object by its project path.
func getObjectAtPath(c Caller, path string) (map[string]any, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &waapi.ValidationError{Message: "object path cannot be empty", Field: "path"}
	}
	result, err := c.Call(objectGetURI,
		map[string]any{"from": map[string]any{"path": []any{path}}},
		map[string]any{"return": []any{"id", "name", "type", "path"}})
	if err != nil {
		return nil, err
	}
	objects := returnList(result)
	if len(objects) == 0 {
		return nil, &waapi.NotFoundError{
			Message: fmt.Sprintf("no object found at path %q", path),
			Path:    path,
		}
	}
	return objects[0], nil
}

// objectID extracts the GUID of a resolved object.
func objectID(obj map[string]any) (string, error) {
	id, _ := obj["id"].(string)
	if id == "" {
		return "", waapi.NewValidationError("object %v is missing an id field", obj["name"])
	}
	return id, nil
}

// createObject creates one child object under a parent (GUID or path).
func createObject(c Caller, parent any, objType, name, onConflict string) (map[string]any, error) {
	result, err := c.Call(objectCreateURI, map[string]any{
		"parent":         parent,
		"type":           objType,
		"name":           name,
		"onNameConflict": onConflict,
	}, nil)
	if err != nil {
		return nil, err
	}
	obj := asMap(result)
	if obj == nil || obj["id"] == nil {
		return nil, &waapi.BusinessError{
			Message:   fmt.Sprintf("creation of %s %q returned an invalid response", objType, name),
			Operation: objectCreateURI,
			Details:   map[string]any{"name": name, "type": objType},
		}
	}
	return obj, nil
}

func (r *Registry) registerObjects() {
	r.add(&Verb{
		Name:   "resolve_all_path_relationships_in_parent",
		Params: []string{"parent_path"},
		Doc: "Returns a path-first index for the subtree rooted at `parent_path`. " +
			"Args: parent_path. Returns a list[dict]",
		Handler: resolvePathRelationships,
	})

	r.add(&Verb{
		Name:     "create_objects",
		Params:   []string{"child_names", "child_types", "parent_paths", "prev_response_objects"},
		Mutating: true,
		Doc: "Create child objects given names and types of objects and the parent path, " +
			"if no parent path(s) specified, function will use prev_response_objects as parents. " +
			"Args: child_names : list[str], child_types: list[str], parent_paths : list[str] " +
			"eg. ['\\\\Actor-Mixer Hierarchy\\\\Default Work Unit', ...], prev_response_objects='$last' " +
			"if previous function needs to pass returned values into this function. " +
			"Object types : ActorMixer, Bus, AuxBus, RandomSequenceContainer, SwitchContainer, " +
			"BlendContainer, Sound, WorkUnit, SoundBank, Folder.",
		Handler: createObjects,
	})

	r.add(&Verb{
		Name:     "move_object_by_path",
		Params:   []string{"source_path", "destination_parent_path"},
		Mutating: true,
		Doc: "Moves the object from the source path to the new destination parent path. " +
			"All child objects will be moved along with the parent. " +
			"Args: source_path : str, destination_parent_path : str. Returns a dict",
		Handler: moveObjectByPath,
	})

	r.add(&Verb{
		Name:     "rename_objects",
		Params:   []string{"paths_of_objects_to_rename", "prev_response_objects", "names"},
		Mutating: true,
		Doc: "Renames a list of objects either by passing in a list of the objects' paths or by " +
			"including prev_response_objects='$last' if a previous function needs to pass returned " +
			"values into this function. " +
			"Args: paths_of_objects_to_rename : list[str] | None, prev_response_objects: list[dict] | None, " +
			"names: list[str]. Returns list[str]",
		Handler: renameObjects,
	})

	r.add(&Verb{
		Name:     "set_object_property",
		Params:   []string{"object_path", "property_name", "value"},
		Mutating: true,
		Doc: "Sets the property of the object to a new value given its path in wwise. " +
			"Args: object_path : str, property_name : str, value: int | bool | str. Returns dict.",
		Handler: setObjectProperty,
	})

	r.add(&Verb{
		Name:   "retrieve_selected_objs",
		Params: nil,
		Doc: "Retrieves the currently selected object(s) in wwise. " +
			"Args: none. Returns a list[dict]",
		Handler: retrieveSelectedObjects,
	})
}

func resolvePathRelationships(_ context.Context, c Caller, args Args) (any, error) {
	parentPath, err := args.String("parent_path")
	if err != nil {
		return nil, err
	}

	root, err := getObjectAtPath(c, parentPath)
	if err != nil {
		return nil, err
	}

	result, err := c.Call(objectGetURI,
		map[string]any{
			"from":      map[string]any{"path": []any{parentPath}},
			"transform": []any{map[string]any{"select": []any{"descendants"}}},
		},
		map[string]any{"return": []any{"id", "name", "path"}})
	if err != nil {
		return nil, err
	}

	nodes := []map[string]any{root}
	nodes = append(nodes, returnList(result)...)
	return nodes, nil
}

func createObjects(_ context.Context, c Caller, args Args) (any, error) {
	names, err := args.StringSlice("child_names")
	if err != nil {
		return nil, err
	}
	types, err := args.StringSlice("child_types")
	if err != nil {
		return nil, err
	}

	parents, err := args.MapSlice("prev_response_objects")
	if err != nil {
		return nil, err
	}
	if len(parents) == 0 {
		paths, err := args.StringSlice("parent_paths")
		if err != nil {
			return nil, waapi.NewValidationError(
				"provide parent_paths or prev_response_objects to create objects under")
		}
		for _, path := range paths {
			parent, err := getObjectAtPath(c, path)
			if err != nil {
				return nil, err
			}
			parents = append(parents, parent)
		}
	}

	if len(names) != len(types) || len(names) != len(parents) {
		return nil, waapi.NewValidationError(
			"length mismatch: child_names=%d child_types=%d parents=%d",
			len(names), len(types), len(parents))
	}

	results := make([]map[string]any, 0, len(names))
	for i := range names {
		parentID, err := objectID(parents[i])
		if err != nil {
			return nil, err
		}
		created, err := createObject(c, parentID, types[i], names[i], "rename")
		if err != nil {
			return nil, err
		}
		results = append(results, created)
	}
	return results, nil
}

func moveObjectByPath(_ context.Context, c Caller, args Args) (any, error) {
	sourcePath, err := args.String("source_path")
	if err != nil {
		return nil, err
	}
	dstPath, err := args.String("destination_parent_path")
	if err != nil {
		return nil, err
	}

	src, err := getObjectAtPath(c, sourcePath)
	if err != nil {
		return nil, err
	}
	srcID, err := objectID(src)
	if err != nil {
		return nil, err
	}

	dst, err := getObjectAtPath(c, dstPath)
	if err != nil {
		return nil, err
	}
	dstID, err := objectID(dst)
	if err != nil {
		return nil, err
	}

	moved, err := c.Call(objectMoveURI, map[string]any{"object": srcID, "parent": dstID}, nil)
	if err != nil {
		return nil, err
	}
	movedObj := asMap(moved)
	if movedObj == nil || movedObj["id"] == nil {
		return nil, &waapi.BusinessError{
			Message:   fmt.Sprintf("move of %q returned an invalid response", sourcePath),
			Operation: objectMoveURI,
		}
	}

	// The move reply only carries id and name; fetch the new path.
	result, err := c.Call(objectGetURI,
		map[string]any{"from": map[string]any{"id": []any{movedObj["id"]}}},
		map[string]any{"return": []any{"id", "name", "path"}})
	if err != nil {
		return nil, err
	}
	objects := returnList(result)
	if len(objects) == 0 {
		return movedObj, nil
	}
	return objects[0], nil
}

func renameObjects(_ context.Context, c Caller, args Args) (any, error) {
	names, err := args.StringSlice("names")
	if err != nil {
		return nil, err
	}

	var objects []map[string]any
	if paths, err := args.OptStringSlice("paths_of_objects_to_rename"); err != nil {
		return nil, err
	} else if len(paths) > 0 {
		for _, path := range paths {
			obj, err := getObjectAtPath(c, path)
			if err != nil {
				return nil, err
			}
			objects = append(objects, obj)
		}
	} else {
		objects, err = args.MapSlice("prev_response_objects")
		if err != nil {
			return nil, err
		}
	}

	if len(objects) == 0 {
		return nil, waapi.NewValidationError(
			"provide paths_of_objects_to_rename or prev_response_objects='$last' to select objects to rename")
	}
	if len(objects) != len(names) {
		return nil, waapi.NewValidationError(
			"length mismatch: objects=%d names=%d", len(objects), len(names))
	}

	renamed := make([]string, 0, len(objects))
	for i, obj := range objects {
		id, err := objectID(obj)
		if err != nil {
			return nil, err
		}
		if _, err := c.Call(objectSetNameURI, map[string]any{"object": id, "value": names[i]}, nil); err != nil {
			return nil, err
		}
		renamed = append(renamed, id)
	}
	return renamed, nil
}

func setObjectProperty(_ context.Context, c Caller, args Args) (any, error) {
	objectPath, err := args.String("object_path")
	if err != nil {
		return nil, err
	}
	property, err := args.String("property_name")
	if err != nil {
		return nil, err
	}
	value, ok := args.Value("value")
	if !ok || value == nil {
		return nil, &waapi.ValidationError{Message: "value cannot be empty", Field: "value"}
	}
	if s, isStr := value.(string); isStr && s == "" {
		return nil, &waapi.ValidationError{Message: "string values cannot be empty", Field: "value"}
	}

	return c.Call(objectSetPropertyURI, map[string]any{
		"object":   objectPath,
		"property": property,
		"value":    value,
	}, nil)
}

func retrieveSelectedObjects(_ context.Context, c Caller, _ Args) (any, error) {
	result, err := c.Call(selectedObjectsURI, map[string]any{}, nil)
	if err != nil {
		return nil, err
	}
	response := asMap(result)
	if response == nil {
		return nil, &waapi.CallError{URI: selectedObjectsURI, Message: "unexpected response shape"}
	}
	objects, _ := response["objects"].([]any)
	if len(objects) == 0 {
		return nil, waapi.NewBusinessError("retrieve_selected_objs", "no selection detected")
	}
	return objects, nil
}
