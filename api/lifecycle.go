// Package api defines public API contracts for scene-manager.
package api

import "context"

// SceneRequest asks for a scene to be loaded or unloaded by name.
type SceneRequest struct {
	Scene          string
	ShowTransition bool
	ShowLoading    bool
}

// SceneLoader is the subset of the lifecycle engine bootstrap code depends on.
type SceneLoader interface {
	// LoadScene loads the named scene and blocks until it is ready.
	LoadScene(ctx context.Context, req SceneRequest) (Instance, error)
	// UnloadScene unloads the named scene and blocks until it is gone.
	UnloadScene(ctx context.Context, name string) error
	// IsLoaded reports whether the named scene is loaded.
	IsLoaded(name string) bool
}
