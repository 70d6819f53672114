// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import "sync"

// Factory creates a backend instance bound to the shared render
// environment.
type Factory func(env *Env) Backend

// registry holds registered backend factories.
var (
	registryMu sync.RWMutex
	factories  = make(map[Renderer]Factory)
	// Priority order for automatic selection (first available wins).
	rendererPriority = []Renderer{RendererHardware, RendererSoftware}
)

// Register registers a factory for a renderer variant. It is
// typically called from init() in the variant's package. Registering
// the same renderer twice replaces the earlier factory.
func Register(r Renderer, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[r] = factory
}

// Unregister removes a renderer from the registry. Useful in tests.
func Unregister(r Renderer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, r)
}

// IsRegistered reports whether a factory exists for the renderer.
func IsRegistered(r Renderer) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[r]
	return ok
}

// Resolve maps RendererAuto to the highest-priority registered
// variant and returns other values unchanged.
func Resolve(r Renderer) Renderer {
	if r != RendererAuto {
		return r
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	for _, cand := range rendererPriority {
		if _, ok := factories[cand]; ok {
			return cand
		}
	}
	return RendererSoftware
}

// New creates a backend for the renderer, resolving RendererAuto
// first. It returns ErrRendererNotAvailable when nothing is
// registered for the variant.
func New(r Renderer, env *Env) (Backend, error) {
	r = Resolve(r)
	registryMu.RLock()
	factory, ok := factories[r]
	registryMu.RUnlock()
	if !ok {
		return nil, ErrRendererNotAvailable
	}
	return factory(env), nil
}
