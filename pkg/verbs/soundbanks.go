package verbs

import (
	"context"
	"fmt"

	"github.com/wwise-tools/wwise-mcp/pkg/waapi"
)

const (
	soundbankInclusionsURI = "ak.wwise.core.soundbank.setInclusions"
	soundbankGenerateURI   = "ak.wwise.core.soundbank.generate"
)

func (r *Registry) registerSoundbanks() {
	r.add(&Verb{
		Name:     "include_in_soundbank",
		Params:   []string{"include_paths", "soundbank_path"},
		Mutating: true,
		Doc: "Includes the specified objects (i.e events, work units or folders) in the specified " +
			"soundbank by path. " +
			"Args: include_paths : list[str], soundbank_path : str. Returns list[dict]",
		Handler: includeInSoundbank,
	})

	r.add(&Verb{
		Name:     "generate_soundbanks",
		Params:   []string{"soundbank_names", "platforms", "languages"},
		Mutating: true,
		Doc: "Generates the soundbanks given a list of soundbank names, a list of platforms and a " +
			"list of languages. If unsure of what platforms to include, use 'Windows' or call the " +
			"function : get_project_info. If unsure on what languages to include, use 'English(US)' " +
			"or call the function : get_project_info. " +
			"Args: soundbank_names : list[str], platforms : list[str], languages : list[str]. Returns dict",
		Handler: generateSoundbanks,
	})
}

// includeInSoundbank adds objects to a soundbank's inclusion list one by one.
// Not atomic: inclusions before a failure remain applied.
func includeInSoundbank(_ context.Context, c Caller, args Args) (any, error) {
	includePaths, err := args.StringSlice("include_paths")
	if err != nil {
		return nil, err
	}
	soundbankPath, err := args.String("soundbank_path")
	if err != nil {
		return nil, err
	}

	results := make([]map[string]any, 0, len(includePaths))
	for i, includePath := range includePaths {
		result, err := c.Call(soundbankInclusionsURI, map[string]any{
			"soundbank": soundbankPath,
			"operation": "add",
			"inclusions": []any{map[string]any{
				"object": includePath,
				"filter": []any{"events", "structures"},
			}},
		}, nil)
		if err != nil {
			return nil, &waapi.BusinessError{
				Message:   fmt.Sprintf("failed to include object at index %d", i),
				Operation: soundbankInclusionsURI,
				Details: map[string]any{
					"soundbank_path": soundbankPath,
					"include_path":   includePath,
					"index":          i,
				},
				Err: err,
			}
		}
		results = append(results, asMap(result))
	}
	return results, nil
}

func generateSoundbanks(_ context.Context, c Caller, args Args) (any, error) {
	soundbanks, err := args.StringSlice("soundbank_names")
	if err != nil {
		return nil, err
	}
	platforms, err := args.StringSlice("platforms")
	if err != nil {
		return nil, err
	}
	languages, err := args.OptStringSlice("languages")
	if err != nil {
		return nil, err
	}

	bankList := make([]any, len(soundbanks))
	for i, name := range soundbanks {
		bankList[i] = map[string]any{"name": name}
	}
	payload := map[string]any{
		"soundbanks":  bankList,
		"platforms":   platforms,
		"writeToDisk": true,
	}
	if len(languages) > 0 {
		payload["languages"] = languages
	}

	result, err := c.Call(soundbankGenerateURI, payload, nil)
	if err != nil {
		return nil, err
	}
	if asMap(result) == nil {
		return nil, &waapi.CallError{URI: soundbankGenerateURI, Message: "empty generation response"}
	}
	return result, nil
}
