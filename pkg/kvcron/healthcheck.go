package kvcron

import (
	"context"
	"errors"

	"github.com/dmitrymomot/kvcron/pkg/kv"
)

// ErrHealthcheckFailed is returned when the manager health check fails.
var ErrHealthcheckFailed = errors.New("kvcron: healthcheck failed")

var errManagerNil = errors.New("manager is nil")

// Healthcheck returns a readiness check for the manager.
// It pings the store when the store supports it and passes otherwise.
//
// Example:
//
//	checks := server.Checks{"kvcron": kvcron.Healthcheck(m)}
func Healthcheck(m *Manager) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if m == nil {
			return errors.Join(ErrHealthcheckFailed, errManagerNil)
		}

		p, ok := m.store.(kv.Pinger)
		if !ok {
			return nil
		}
		if err := p.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
