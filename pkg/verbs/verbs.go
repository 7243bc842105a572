// Package verbs maps the tool-server's command surface onto Authoring API
// calls. Each verb is an adapter from loosely-typed plan arguments to one or
// more WAAPI operations through a Caller.
package verbs

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Caller is the session surface verbs execute against. Implemented by
// *session.Session.
type Caller interface {
	Connect(ctx context.Context) (map[string]any, error)
	Call(uri string, args, options map[string]any) (any, error)
	Schedule(uri string, args, options map[string]any, dueIn time.Duration) error
	Subscribe(topic string, options map[string]any) (string, error)
	Unsubscribe(id string) (bool, error)
	SubscriptionEvents(id string, max int, clear bool) ([]map[string]any, int, bool)
}

// HandlerFunc executes one verb with bound arguments.
type HandlerFunc func(ctx context.Context, c Caller, args Args) (any, error)

// Verb describes one command: its callable signature, the doc string shown to
// the planning client, and whether it mutates the Wwise project or sound
// engine state (mutating verbs get undo-group bracketing in plans).
type Verb struct {
	Name     string
	Params   []string // positional parameter order
	Doc      string
	Mutating bool
	Handler  HandlerFunc
}

// Signature renders the verb in call form, e.g. "post_event(event_name,
// game_obj_name, delay_ms)".
func (v *Verb) Signature() string {
	return fmt.Sprintf("%s(%s)", v.Name, strings.Join(v.Params, ", "))
}

// Registry is the static verb table. Built once at startup; read-only after.
type Registry struct {
	verbs map[string]*Verb
	order []string
}

// NewRegistry builds the full command surface.
func NewRegistry() *Registry {
	r := &Registry{verbs: make(map[string]*Verb)}
	r.registerConnection()
	r.registerObjects()
	r.registerEvents()
	r.registerGameObjects()
	r.registerGameSyncs()
	r.registerSoundbanks()
	r.registerAudioFiles()
	r.registerUI()
	r.registerSubscriptions()
	return r
}

func (r *Registry) add(v *Verb) {
	if _, dup := r.verbs[v.Name]; dup {
		panic("duplicate verb: " + v.Name)
	}
	r.verbs[v.Name] = v
	r.order = append(r.order, v.Name)
}

// Get looks up a verb by name.
func (r *Registry) Get(name string) (*Verb, bool) {
	v, ok := r.verbs[name]
	return v, ok
}

// Names returns verb names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// List renders every verb as "signature\n    doc", the format served to the
// planning client by list_wwise_commands.
func (r *Registry) List() []string {
	specs := make([]string, 0, len(r.order))
	for _, name := range r.order {
		v := r.verbs[name]
		specs = append(specs, fmt.Sprintf("%s\n    %s", v.Signature(), v.Doc))
	}
	return specs
}
