// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package psxgpu

import "sync/atomic"

// Stats counts pipeline activity. The render thread updates the
// counters; any goroutine may take a Snapshot.
type Stats struct {
	framesPresented   atomic.Uint64
	framesSkipped     atomic.Uint64
	commandsProcessed atomic.Uint64
	maxQueuedBytes    atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of the pipeline counters.
type StatsSnapshot struct {
	// FramesPresented counts frames that reached the device.
	FramesPresented uint64
	// FramesSkipped counts frames dropped to catch up, plus transient
	// present failures.
	FramesSkipped uint64
	// CommandsProcessed counts queue records the render thread
	// executed, control records included.
	CommandsProcessed uint64
	// MaxQueuedBytes is the high-water mark of pending bytes observed
	// when the render thread started a drain.
	MaxQueuedBytes uint64
}

// Snapshot returns a consistent-enough copy of the counters for
// display. Individual fields are atomic; the set is not taken under a
// lock.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		FramesPresented:   s.framesPresented.Load(),
		FramesSkipped:     s.framesSkipped.Load(),
		CommandsProcessed: s.commandsProcessed.Load(),
		MaxQueuedBytes:    s.maxQueuedBytes.Load(),
	}
}

// observeQueued records a pending-byte depth, keeping the maximum.
func (s *Stats) observeQueued(n uint64) {
	for {
		cur := s.maxQueuedBytes.Load()
		if n <= cur || s.maxQueuedBytes.CompareAndSwap(cur, n) {
			return
		}
	}
}
