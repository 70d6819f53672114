// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import "sync"

// Factory brings up a device for one graphics API.
type Factory func(opts *CreateOptions) (Device, error)

// registry holds registered device factories.
var (
	registryMu sync.RWMutex
	factories  = make(map[RenderAPI]Factory)
	// Fallback order walked by Create for APIAuto and after factory
	// failures. The null device terminates the chain so headless
	// setups always get a working device.
	apiPriority = []RenderAPI{APIVulkan, APINoop, APINull}
)

// RegisterAPI registers a factory for a graphics API. Registering the
// same API twice replaces the earlier factory; tests use that to
// inject failing devices.
func RegisterAPI(api RenderAPI, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[api] = factory
}

// UnregisterAPI removes an API from the registry.
func UnregisterAPI(api RenderAPI) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, api)
}

// IsAPIRegistered reports whether a factory exists for the API.
func IsAPIRegistered(api RenderAPI) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[api]
	return ok
}

func lookupAPI(api RenderAPI) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := factories[api]
	return f, ok
}

func fallbackOrder() []RenderAPI {
	registryMu.RLock()
	defer registryMu.RUnlock()
	order := make([]RenderAPI, len(apiPriority))
	copy(order, apiPriority)
	return order
}
