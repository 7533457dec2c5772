package command

import (
	"errors"
	"fmt"

	"github.com/podiumlab/racebot/internal/identity"
	"github.com/podiumlab/racebot/internal/race"
)

// ErrHandlerNotFound means a dynamic definition references a handler name
// that was never registered.
var ErrHandlerNotFound = errors.New("command: handler not found")

// HandlerFunc generates the response for a dynamic command. user is nil when
// the invoker has no linked internal account; snapshot is nil when the room
// has not received one yet.
type HandlerFunc func(def Definition, args, invokerExternalID string, snapshot *race.RoomSnapshot, user *identity.User) (string, error)

// Registry is a fixed name → handler mapping built once at composition time.
// There is no runtime registration after construction.
type Registry struct {
	handlers map[string]HandlerFunc
}

func NewRegistry(handlers map[string]HandlerFunc) *Registry {
	m := make(map[string]HandlerFunc, len(handlers))
	for name, fn := range handlers {
		m[name] = fn
	}
	return &Registry{handlers: m}
}

func (r *Registry) Lookup(name string) (HandlerFunc, error) {
	fn, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrHandlerNotFound, name)
	}
	return fn, nil
}
