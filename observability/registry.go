package observability

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

var (
	observers = map[string]Observer{
		"noop": NoOpObserver{},
	}
	mutex sync.RWMutex
)

// GetObserver resolves an observer spec: one registered name, or several
// separated by commas, which are combined with Tee. "noop" is always
// registered; "slog" (or an empty spec) resolves to a SlogObserver over
// the current slog.Default() unless one was registered under that name.
func GetObserver(spec string) (Observer, error) {
	mutex.RLock()
	defer mutex.RUnlock()

	names := strings.Split(spec, ",")
	resolved := make([]Observer, 0, len(names))
	for _, name := range names {
		obs, err := lookup(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, obs)
	}
	return Tee(resolved...), nil
}

func lookup(name string) (Observer, error) {
	if obs, exists := observers[name]; exists {
		return obs, nil
	}
	if name == "slog" || name == "" {
		return NewSlogObserver(slog.Default()), nil
	}
	return nil, fmt.Errorf("unknown observer: %s", name)
}

// RegisterObserver adds or replaces a named observer.
func RegisterObserver(name string, observer Observer) {
	mutex.Lock()
	defer mutex.Unlock()

	observers[name] = observer
}
