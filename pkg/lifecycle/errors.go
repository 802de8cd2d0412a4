/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/srediag/scene-manager/pkg/scene"
)

var (
	// ErrAlreadyInFlight means another load or unload holds the scene.
	ErrAlreadyInFlight = scene.ErrInFlight
	// ErrAlreadyLoaded means a load found the scene loaded.
	ErrAlreadyLoaded = scene.ErrLoaded
	// ErrNotLoaded means an unload found the scene unloaded.
	ErrNotLoaded = scene.ErrNotLoaded

	ErrLoadFailed        = errors.New("scene load failed")
	ErrUnloadFailed      = errors.New("scene unload failed")
	ErrMissingDependency = errors.New("missing dependency")
	ErrUnknownScene      = errors.New("unknown scene")
	ErrNilScene          = errors.New("nil scene")
)

// OperationError reports a provider-level failure for one scene.
type OperationError struct {
	Op    string
	Scene string
	Err   error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("scene %s %s: %v", e.Op, e.Scene, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

func (e *OperationError) Is(target error) bool {
	switch target {
	case ErrLoadFailed:
		return e.Op == opLoad
	case ErrUnloadFailed:
		return e.Op == opUnload
	}
	return false
}

// MissingDependencyError reports a collaborator that was never wired.
type MissingDependencyError struct {
	Dependency string
}

func (e *MissingDependencyError) Error() string {
	return "missing dependency: " + e.Dependency
}

func (e *MissingDependencyError) Is(target error) bool {
	return target == ErrMissingDependency
}

// IsBenign reports whether err is an expected outcome of concurrent
// triggering (contention, stale state) or of cancellation.
func IsBenign(err error) bool {
	return err == nil ||
		errors.Is(err, ErrAlreadyInFlight) ||
		errors.Is(err, ErrAlreadyLoaded) ||
		errors.Is(err, ErrNotLoaded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// failure drops benign errors.
func failure(err error) error {
	if IsBenign(err) {
		return nil
	}
	return err
}

const (
	opLoad   = "load"
	opUnload = "unload"
)
