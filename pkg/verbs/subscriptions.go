package verbs

import (
	"context"

	"github.com/wwise-tools/wwise-mcp/pkg/waapi"
)

func (r *Registry) registerSubscriptions() {
	r.add(&Verb{
		Name:   "subscribe_topic",
		Params: []string{"topic", "options"},
		Doc: "Subscribes to a WAAPI event topic (eg. 'ak.wwise.core.object.nameChanged'). " +
			"Events accumulate server-side until fetched with get_subscription_events. " +
			"Args: topic : str, options : dict | None. Returns the subscription id (str).",
		Handler: subscribeTopic,
	})

	r.add(&Verb{
		Name:   "get_subscription_events",
		Params: []string{"subscription_id", "max_count", "clear"},
		Doc: "Fetches events buffered for a subscription. Returned events are removed from the " +
			"buffer unless clear=False. Unknown or cancelled ids yield an empty event list. " +
			"Args: subscription_id : str, max_count : int (0 for all), clear : bool. " +
			"Returns {events: list[dict], dropped: int}.",
		Handler: getSubscriptionEvents,
	})

	r.add(&Verb{
		Name:   "unsubscribe_topic",
		Params: []string{"subscription_id"},
		Doc: "Cancels a subscription by its id. " +
			"Args: subscription_id : str. Returns bool (False if the id was unknown).",
		Handler: unsubscribeTopic,
	})
}

func subscribeTopic(_ context.Context, c Caller, args Args) (any, error) {
	topic, err := args.String("topic")
	if err != nil {
		return nil, err
	}
	var options map[string]any
	if v, ok := args.Value("options"); ok && v != nil {
		options, ok = v.(map[string]any)
		if !ok {
			return nil, &waapi.ValidationError{Message: "options must be an object", Field: "options"}
		}
	}
	return c.Subscribe(topic, options)
}

func getSubscriptionEvents(_ context.Context, c Caller, args Args) (any, error) {
	id, err := args.String("subscription_id")
	if err != nil {
		return nil, err
	}
	maxCount, err := args.OptInt("max_count", 0)
	if err != nil {
		return nil, err
	}
	clear, err := args.OptBool("clear", true)
	if err != nil {
		return nil, err
	}

	events, dropped, ok := c.SubscriptionEvents(id, maxCount, clear)
	if !ok {
		// Draining an id that never existed or was already cancelled is
		// not an error; there is simply nothing buffered for it.
		return map[string]any{"events": []map[string]any{}, "dropped": 0}, nil
	}
	if events == nil {
		events = []map[string]any{}
	}
	return map[string]any{"events": events, "dropped": dropped}, nil
}

func unsubscribeTopic(_ context.Context, c Caller, args Args) (any, error) {
	id, err := args.String("subscription_id")
	if err != nil {
		return nil, err
	}
	return c.Unsubscribe(id)
}
