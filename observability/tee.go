package observability

import "context"

// NoOpObserver discards all events.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(ctx context.Context, event Event) {}

// tee delivers each event to every observer in order.
type tee []Observer

func (t tee) OnEvent(ctx context.Context, event Event) {
	for _, o := range t {
		o.OnEvent(ctx, event)
	}
}

// Tee combines observers. Nil entries are skipped; a single remaining
// observer is returned unwrapped and none yields NoOpObserver.
func Tee(observers ...Observer) Observer {
	var out tee
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	switch len(out) {
	case 0:
		return NoOpObserver{}
	case 1:
		return out[0]
	}
	return out
}
