package verbs

import (
	"context"

	"github.com/wwise-tools/wwise-mcp/pkg/waapi"
)

func (r *Registry) registerConnection() {
	r.add(&Verb{
		Name:   "connect_to_wwise",
		Params: nil,
		Doc: "Attempts to reconnect to the currently active wwise session. " +
			"Args: None",
		Handler: func(ctx context.Context, c Caller, _ Args) (any, error) {
			return c.Connect(ctx)
		},
	})

	r.add(&Verb{
		Name:   "get_project_info",
		Params: nil,
		Doc: "Returns the wwise project metadata, useful for determining languages " +
			"and platforms available in the project. Args: None. Returns a dict",
		Handler: func(_ context.Context, c Caller, _ Args) (any, error) {
			return getProjectInfo(c)
		},
	})
}

func getProjectInfo(c Caller) (map[string]any, error) {
	result, err := c.Call("ak.wwise.core.getProjectInfo", map[string]any{}, nil)
	if err != nil {
		return nil, err
	}
	info := asMap(result)
	if info == nil {
		return nil, &waapi.CallError{
			URI:     "ak.wwise.core.getProjectInfo",
			Message: "empty project info response (no project may be open)",
		}
	}
	return info, nil
}
