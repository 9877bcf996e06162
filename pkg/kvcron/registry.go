package kvcron

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Handler runs one occurrence of a job. The context carries the job name and
// nonce; see JobFromContext and NonceFromContext.
type Handler func(ctx context.Context) error

// registry maps job names to handlers. It is built once by NewManager and
// read-only afterwards.
type registry struct {
	handlers map[string]Handler
}

func newRegistry() *registry {
	return &registry{handlers: make(map[string]Handler)}
}

func (r *registry) register(name string, h Handler) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty name", ErrInvalidJob)
	case h == nil:
		return fmt.Errorf("%w: %s: nil handler", ErrInvalidJob, name)
	}
	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("%w: %s: registered twice", ErrInvalidJob, name)
	}
	r.handlers[name] = h
	return nil
}

func (r *registry) get(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// names returns the registered job names in sorted order.
func (r *registry) names() []string {
	return slices.Sorted(maps.Keys(r.handlers))
}
