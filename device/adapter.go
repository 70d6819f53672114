// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/core"
	types "github.com/gogpu/gputypes"
)

// ProbeAdapter runs a full bring-up probe through wgpu's core layer:
// instance, adapter, logical device, queue. Everything is released
// again before returning. The CLI uses it for diagnostics and Create
// uses it to report the adapter a hardware device will land on.
func ProbeAdapter() (AdapterInfo, error) {
	instance := core.NewInstance(&gputypes.InstanceDescriptor{
		Backends: gputypes.BackendsPrimary,
		Flags:    0,
	})

	adapterID, err := instance.RequestAdapter(&gputypes.RequestAdapterOptions{
		PowerPreference: gputypes.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return AdapterInfo{}, fmt.Errorf("request adapter: %w", err)
	}
	defer releaseAdapter(adapterID)

	info, err := core.GetAdapterInfo(adapterID)
	if err != nil {
		return AdapterInfo{}, fmt.Errorf("adapter info: %w", err)
	}

	// Open and immediately release a logical device so the probe
	// reflects whether device creation would actually succeed.
	deviceID, err := createCoreDevice(adapterID, "psxgpu-probe")
	if err != nil {
		return AdapterInfo{}, err
	}
	defer releaseDevice(deviceID)

	if _, err := core.GetDeviceQueue(deviceID); err != nil {
		return AdapterInfo{}, fmt.Errorf("device queue: %w", err)
	}

	return AdapterInfo{
		Name:   info.Name,
		Vendor: info.Vendor,
		Driver: info.Driver,
		API:    APIVulkan,
	}, nil
}

// createCoreDevice creates a logical device from an adapter.
func createCoreDevice(adapterID core.AdapterID, label string) (core.DeviceID, error) {
	desc := &types.DeviceDescriptor{
		Label:            label,
		RequiredFeatures: nil,
		RequiredLimits:   types.DefaultLimits(),
	}

	deviceID, err := core.RequestDevice(adapterID, desc)
	if err != nil {
		return core.DeviceID{}, fmt.Errorf("create device: %w", err)
	}
	return deviceID, nil
}

// releaseDevice drops a logical device. The queue is released with it.
func releaseDevice(deviceID core.DeviceID) {
	if deviceID.IsZero() {
		return
	}
	if err := core.DeviceDrop(deviceID); err != nil {
		slogger().Warn("device release failed", "error", err)
	}
}

// releaseAdapter drops an adapter.
func releaseAdapter(adapterID core.AdapterID) {
	if adapterID.IsZero() {
		return
	}
	if err := core.AdapterDrop(adapterID); err != nil {
		slogger().Warn("adapter release failed", "error", err)
	}
}
