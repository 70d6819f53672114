// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import "sync/atomic"

// FrameQueue bounds how many presented frames the producer may run
// ahead of the render thread. The producer calls BeginQueue before
// pushing a present and, when told to, WaitForOne after; the render
// thread calls FrameDone after each presented frame.
type FrameQueue struct {
	queued atomic.Int32

	// sem is a doorbell: FrameDone rings it after every completion and
	// WaitForOne re-checks the count each time it wakes, so a
	// completion slipping in between a check and a wait is never lost.
	sem   chan struct{}
	limit int32
}

// NewFrameQueue returns a queue bounding the producer to limit
// in-flight frames. A limit of zero disables bounding.
func NewFrameQueue(limit int) *FrameQueue {
	return &FrameQueue{
		sem:   make(chan struct{}, 1),
		limit: int32(limit),
	}
}

// BeginQueue accounts for a frame about to be pushed and reports
// whether the producer has exceeded the bound and must drain one frame
// after pushing.
func (q *FrameQueue) BeginQueue() bool {
	if q.limit <= 0 {
		return false
	}
	return q.queued.Add(1)-1 >= q.limit
}

// WaitForOne blocks the producer until the in-flight count is back
// within the bound. It must only be called after pushing a present,
// which guarantees completions keep coming.
func (q *FrameQueue) WaitForOne() {
	if q.limit <= 0 {
		return
	}
	for q.queued.Load() > q.limit {
		<-q.sem
	}
}

// FrameDone is called by the render thread when a presented frame is
// finished.
func (q *FrameQueue) FrameDone() {
	if q.limit <= 0 {
		return
	}
	if q.queued.Add(-1) < 0 {
		q.queued.Store(0)
	}
	select {
	case q.sem <- struct{}{}:
	default:
	}
}

// Queued returns the number of frames in flight.
func (q *FrameQueue) Queued() int { return int(q.queued.Load()) }
