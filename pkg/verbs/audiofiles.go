package verbs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/wwise-tools/wwise-mcp/pkg/waapi"
)

const audioImportURI = "ak.wwise.core.audio.import"

// audioExts are the file extensions considered importable audio.
var audioExts = map[string]bool{
	".wav":  true,
	".aiff": true,
	".aif":  true,
	".ogg":  true,
}

func (r *Registry) registerAudioFiles() {
	r.add(&Verb{
		Name:     "import_audio_files",
		Params:   []string{"source", "destination"},
		Mutating: true,
		Doc: "Imports every audio file or folder under the absolute path defined in source into " +
			"Wwise under the given parent object or path. " +
			"Args: source: str, destination: str. Returns list[dict]",
		Handler: importAudioFiles,
	})

	r.add(&Verb{
		Name:   "get_all_audio_files_at_path_on_file_explorer",
		Params: []string{"root_path"},
		Doc: "Returns the path to all audio files given the parent folder path on file explorer " +
			"(eg. 'C:/Audio'). Args: root_path : str. Returns a list[str]",
		Handler: listAudioFiles,
	})
}

// collectAudioFiles walks root and returns importable audio files, skipping
// dotfile-hidden entries.
func collectAudioFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &waapi.NotFoundError{
			Message: fmt.Sprintf("source folder not found: %s", root),
			Path:    root,
		}
	}
	if !info.IsDir() {
		return nil, waapi.NewValidationError("source %q is not a directory", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && audioExts[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

// wwiseObjectPath builds the backslash-separated Authoring object path for an
// imported file, preserving the folder hierarchy under the destination.
func wwiseObjectPath(destination, root, file string) (string, error) {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return "", err
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	parts := strings.Split(filepath.ToSlash(rel), "/")

	pieces := []string{strings.Trim(destination, `\`)}
	pieces = append(pieces, parts...)
	return `\` + strings.Join(pieces, `\`), nil
}

func importAudioFiles(_ context.Context, c Caller, args Args) (any, error) {
	source, err := args.String("source")
	if err != nil {
		return nil, err
	}
	destination, err := args.String("destination")
	if err != nil {
		return nil, err
	}

	files, err := collectAudioFiles(source)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, waapi.NewValidationError("no audio files found under %q", source)
	}

	imports := make([]any, 0, len(files))
	for _, file := range files {
		objectPath, err := wwiseObjectPath(destination, source, file)
		if err != nil {
			return nil, err
		}
		imports = append(imports, map[string]any{
			"audioFile":  file,
			"objectPath": objectPath,
		})
	}

	result, err := c.Call(audioImportURI,
		map[string]any{
			"importOperation": "useExisting",
			"default": map[string]any{
				"importLanguage":     "SFX",
				"objectType":         "Sound",
				"originalsSubFolder": "SFX",
			},
			"imports": imports,
		},
		map[string]any{"return": []any{"id", "name", "path"}})
	if err != nil {
		return nil, err
	}

	response := asMap(result)
	if response == nil {
		return nil, &waapi.CallError{URI: audioImportURI, Message: "empty import response"}
	}
	objects, _ := response["objects"].([]any)
	return objects, nil
}

func listAudioFiles(_ context.Context, _ Caller, args Args) (any, error) {
	root, err := args.String("root_path")
	if err != nil {
		return nil, err
	}
	return collectAudioFiles(root)
}
