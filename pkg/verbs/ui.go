package verbs

import (
	"context"
	"strings"

	"github.com/wwise-tools/wwise-mcp/pkg/waapi"
)

const switchLayoutURI = "ak.wwise.ui.layout.switchLayout"

// layouts are the Authoring views switchLayout accepts, case sensitive.
var layouts = []string{
	"Designer",
	"Profiler",
	"Soundbank",
	"Mixer",
	"Audio Object Profiler",
	"Voice Profiler",
	"Game Object Profiler",
}

const randomContainerPropertyHelp = `
Random Container (WAAPI property names)

Play Type — RandomOrSequence  (0=Sequence, 1=Random)
Random Type — NormalOrShuffle  (0=Shuffle, 1=Standard)
Play Mode — PlayMechanismStepOrContinuous  (0=Continuous, 1=Step)
Loop — PlayMechanismLoop  (bool)
Infinite Looping — PlayMechanismInfiniteOrNumberOfLoops  (0=No. of Loops, 1=Infinite)
No. of Loops — PlayMechanismLoopCount  (int)
Always Reset Playlist — PlayMechanismResetPlaylistEachPlay  (bool)
Transitions (Enable) — PlayMechanismSpecialTransitions  (bool)
Transition Type — PlayMechanismSpecialTransitionsType  (0=Xfade (amp), 4=Xfade (power), 1=Delay, 2=Sample accurate, 3=Trigger rate)
Transition Duration — PlayMechanismSpecialTransitionsValue  (seconds)
At End of Playlist — RestartBeginningOrBackward  (0=Play in reverse order, 1=Restart)
Limit Repetition — RandomAvoidRepeating  (bool)
Limit Repetition To — RandomAvoidRepeatingCount  (int)

`

const coreMixingPropertyHelp = `
Core Mixing (on container)

Volume — Volume  (dB)
Pitch — Pitch  (cents)
Low-pass — Lowpass  (0-100)
High-pass — Highpass  (0-100)

`

func (r *Registry) registerUI() {
	r.add(&Verb{
		Name:     "toggle_layout",
		Params:   []string{"requested_layout"},
		Mutating: true,
		Doc: "Toggles current layout in wwise to the requested layout. " +
			"Valid layout types : Designer, Profiler, Soundbank, Mixer, Audio Object Profiler, " +
			"Voice Profiler, Game Object Profiler. " +
			"Args: requested_layout : str. Returns none.",
		Handler: toggleLayout,
	})

	r.add(&Verb{
		Name:   "get_all_property_name_and_valid_value_types",
		Params: nil,
		Doc: "Return a newline-formatted help string listing the correct WAAPI property identifiers " +
			"for the specified Wwise object type. Args: None. Returns: str.",
		Handler: func(_ context.Context, _ Caller, _ Args) (any, error) {
			return randomContainerPropertyHelp + coreMixingPropertyHelp, nil
		},
	})
}

func toggleLayout(_ context.Context, c Caller, args Args) (any, error) {
	requested, err := args.String("requested_layout")
	if err != nil {
		return nil, err
	}

	valid := false
	for _, layout := range layouts {
		if layout == requested {
			valid = true
			break
		}
	}
	if !valid {
		return nil, waapi.NewValidationError(
			"no such layout %q, valid layouts (case sensitive): %s",
			requested, strings.Join(layouts, ", "))
	}

	return c.Call(switchLayoutURI, map[string]any{"name": requested}, nil)
}
