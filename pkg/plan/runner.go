package plan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/wwise-tools/wwise-mcp/pkg/verbs"
	"github.com/wwise-tools/wwise-mcp/pkg/waapi"
)

const (
	undoBeginURI  = "ak.wwise.core.undo.beginGroup"
	undoEndURI    = "ak.wwise.core.undo.endGroup"
	undoCancelURI = "ak.wwise.core.undo.cancelGroup"
)

// Log entry names for the bookkeeping calls surrounding plan steps.
const (
	connectEntry    = "connect_to_wwise"
	undoBeginEntry  = "undo.begin_group"
	undoEndEntry    = "undo.end_group"
	undoCancelEntry = "undo.cancel_group"
)

// lastVar is implicitly bound to the previous step's result.
const lastVar = "last"

// Caller is the session surface plans run against: the verb caller plus
// connection state, so the runner can establish the connection it needs
// before the first step.
type Caller interface {
	verbs.Caller
	Connected() bool
}

// StepLog records one executed step (or bookkeeping call) for the plan
// response.
type StepLog struct {
	Command string         `json:"command"`
	Kwargs  map[string]any `json:"kwargs"`
	Result  any            `json:"result"`
	Error   string         `json:"error,omitempty"`
}

// Result is the response for an executed plan. A failed plan still carries
// the log accumulated up to and including the failing step, so callers can
// see what ran before the error.
type Result struct {
	Status        string    `json:"status"`
	RunID         string    `json:"run_id"`
	StepsExecuted int       `json:"steps_executed"`
	Log           []StepLog `json:"log"`
	Error         string    `json:"error,omitempty"`
}

// Runner executes plans against a session through the verb registry.
type Runner struct {
	caller   Caller
	registry *verbs.Registry
	log      *slog.Logger
}

func NewRunner(caller Caller, registry *verbs.Registry) *Runner {
	return &Runner{
		caller:   caller,
		registry: registry,
		log:      slog.With("component", "plan_runner"),
	}
}

type boundStep struct {
	step *Step
	verb *verbs.Verb
}

// Execute parses and runs every step in order. Plans containing at least one
// mutating verb run inside a Wwise undo group: committed on success, cancelled
// when any step fails so partial work can be undone in one action.
//
// Validation failures before any step runs return a nil Result. Once
// execution starts, failures return the partial Result alongside the error.
func (r *Runner) Execute(ctx context.Context, rawSteps []any) (*Result, error) {
	if len(rawSteps) == 0 {
		return nil, waapi.NewValidationError("plan must contain at least one step")
	}

	steps := make([]boundStep, 0, len(rawSteps))
	mutating := false
	for i, raw := range rawSteps {
		step, err := ParseStep(raw)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		verb, ok := r.registry.Get(step.Command)
		if !ok {
			return nil, waapi.NewValidationError("step %d: unknown command %q", i+1, step.Command)
		}
		steps = append(steps, boundStep{step: step, verb: verb})
		mutating = mutating || verb.Mutating
	}

	runID := uuid.NewString()
	log := r.log.With("run_id", runID)
	log.Info("executing plan", "steps", len(steps), "mutating", mutating)

	res := &Result{Status: "ok", RunID: runID}
	fail := func(err error) (*Result, error) {
		res.Status = "error"
		res.Error = err.Error()
		return res, err
	}

	if !r.caller.Connected() {
		info, err := r.caller.Connect(ctx)
		entry := StepLog{Command: connectEntry, Kwargs: map[string]any{}, Result: info}
		if err != nil {
			entry.Error = err.Error()
			res.Log = append(res.Log, entry)
			return fail(fmt.Errorf("connect: %w", err))
		}
		res.Log = append(res.Log, entry)
	}

	if mutating {
		value, err := r.caller.Call(undoBeginURI, map[string]any{}, nil)
		entry := StepLog{Command: undoBeginEntry, Kwargs: map[string]any{}, Result: value}
		if err != nil {
			entry.Error = err.Error()
			res.Log = append(res.Log, entry)
			return fail(fmt.Errorf("open undo group: %w", err))
		}
		res.Log = append(res.Log, entry)
	}

	store := map[string]any{}
	for i, bound := range steps {
		args, err := bindArgs(bound.verb, bound.step, store)
		if err != nil {
			res.Log = append(res.Log, StepLog{
				Command: bound.step.Command,
				Kwargs:  bound.step.Kwargs,
				Error:   err.Error(),
			})
			r.cancelUndo(mutating, res, log)
			return fail(fmt.Errorf("step %d (%s): %w", i+1, bound.step.Command, err))
		}

		result, err := bound.verb.Handler(ctx, r.caller, args)
		if err != nil {
			log.Warn("plan step failed", "step", i+1, "command", bound.step.Command, "error", err)
			res.Log = append(res.Log, StepLog{
				Command: bound.step.Command,
				Kwargs:  args,
				Error:   err.Error(),
			})
			r.cancelUndo(mutating, res, log)
			return fail(fmt.Errorf("step %d (%s): %w", i+1, bound.step.Command, err))
		}

		store[lastVar] = result
		if bound.step.SaveAs != "" {
			store[bound.step.SaveAs] = result
		}
		res.Log = append(res.Log, StepLog{
			Command: bound.step.Command,
			Kwargs:  args,
			Result:  result,
		})
		res.StepsExecuted++
		log.Debug("plan step completed", "step", i+1, "command", bound.step.Command)
	}

	if mutating {
		kwargs := map[string]any{"displayName": "wwise-mcp plan " + runID[:8]}
		value, err := r.caller.Call(undoEndURI, kwargs, nil)
		entry := StepLog{Command: undoEndEntry, Kwargs: kwargs, Result: value}
		if err != nil {
			entry.Error = err.Error()
			res.Log = append(res.Log, entry)
			r.cancelUndo(true, res, log)
			return fail(fmt.Errorf("close undo group: %w", err))
		}
		res.Log = append(res.Log, entry)
	}

	log.Info("plan completed", "steps_executed", res.StepsExecuted)
	return res, nil
}

// cancelUndo best-effort cancels an open undo group and logs the attempt.
func (r *Runner) cancelUndo(open bool, res *Result, log *slog.Logger) {
	if !open {
		return
	}
	value, err := r.caller.Call(undoCancelURI, map[string]any{}, nil)
	entry := StepLog{Command: undoCancelEntry, Kwargs: map[string]any{}, Result: value}
	if err != nil {
		entry.Error = err.Error()
		log.Warn("failed to cancel undo group", "error", err)
	}
	res.Log = append(res.Log, entry)
}

// bindArgs matches positional arguments to the verb's parameter names, merges
// keyword arguments, and resolves $variable references against the store.
func bindArgs(v *verbs.Verb, step *Step, store map[string]any) (verbs.Args, error) {
	if len(step.Args) > len(v.Params) {
		return nil, waapi.NewValidationError(
			"%s takes at most %d positional arguments, got %d",
			v.Name, len(v.Params), len(step.Args))
	}

	bound := verbs.Args{}
	for i, raw := range step.Args {
		resolved, err := resolveValue(raw, store)
		if err != nil {
			return nil, err
		}
		bound[v.Params[i]] = resolved
	}

	for key, raw := range step.Kwargs {
		if !paramExists(v.Params, key) {
			return nil, waapi.NewValidationError(
				"%s has no parameter %q (parameters: %s)", v.Name, key, v.Signature())
		}
		if _, dup := bound[key]; dup {
			return nil, waapi.NewValidationError(
				"%s got multiple values for parameter %q", v.Name, key)
		}
		resolved, err := resolveValue(raw, store)
		if err != nil {
			return nil, err
		}
		bound[key] = resolved
	}
	return bound, nil
}

func paramExists(params []string, name string) bool {
	for _, p := range params {
		if p == name {
			return true
		}
	}
	return false
}
