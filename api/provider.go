// Package api defines public API contracts for scene-manager.
package api

import "context"

// LoadMode selects how a scene is added to the running world.
type LoadMode int

const (
	// LoadAdditive keeps every already loaded scene in place.
	LoadAdditive LoadMode = iota
	// LoadSingle replaces every loaded scene.
	LoadSingle
)

func (m LoadMode) String() string {
	if m == LoadSingle {
		return "single"
	}
	return "additive"
}

// Instance is the opaque handle a Provider returns for a loaded scene.
type Instance interface {
	// ID uniquely identifies this instance for the lifetime of the process.
	ID() string
	// Ref returns the backing asset reference the instance was loaded from.
	Ref() string
}

// Provider performs the actual asynchronous load and unload of scene assets.
// Implementations must return promptly with ctx.Err() once ctx is done.
type Provider interface {
	LoadAsync(ctx context.Context, ref string, mode LoadMode, activateOnLoad bool) (Instance, error)
	UnloadAsync(ctx context.Context, instance Instance) error
}

// Runtime owns the active render context.
type Runtime interface {
	// SetActive makes instance the primary scene for rendering and input.
	// Invalid instances are ignored.
	SetActive(instance Instance) error
}

// InstanceValidator is implemented by runtimes that can tell whether an
// instance is still recognized.
type InstanceValidator interface {
	IsValid(instance Instance) bool
}
