// Package api defines public API contracts for scene-manager.
package api

import "context"

// Handler is one step of the bootstrap pipeline.
//
// Initialize runs on every handler and may switch the handler off through
// SetActive(false). Trigger runs only on handlers still active afterwards.
// Unload runs on every handler once all triggers returned.
type Handler interface {
	Name() string
	Active() bool
	SetActive(active bool)
	Initialize(ctx context.Context) error
	Trigger(ctx context.Context) error
	Unload(ctx context.Context) error
}

// ActiveResetter is implemented by handlers that restore their configured
// active flag before each pipeline run.
type ActiveResetter interface {
	ResetActive()
}
