// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cmdq

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Waker coordinates sleep, wakeup and synchronous rendezvous between
// the producer and the consumer using one atomic state word and two
// binary semaphores.
//
// The state word is a wake counter with two special encodings: a value
// of sleeping (-1) means the consumer is blocked on the wake
// semaphore, and the waitingFlag bit means the producer is blocked on
// the done semaphore until the consumer runs out of work. Every Wake
// adds two, so a single add both clears the sleeping state and leaves
// a positive pending count.
type Waker struct {
	state atomic.Int32

	wakeSem semaphore
	doneSem semaphore

	// spinTime bounds SyncWait's busy-wait phase before it falls back
	// to blocking on the done semaphore.
	spinTime time.Duration
}

const (
	sleeping    int32 = -1
	waitingFlag int32 = 0x4000_0000
)

// pendingWork strips the waiting flag from the state word. The result
// is positive when wakes are pending and negative when the consumer is
// asleep.
func pendingWork(state int32) int32 { return state &^ waitingFlag }

func defaultSpinTime() time.Duration {
	// Larger on non-amd64: weaker single-thread throughput makes the
	// render thread take longer to drain small batches.
	if runtime.GOARCH == "amd64" {
		return 50 * time.Microsecond
	}
	return 200 * time.Microsecond
}

// NewWaker returns a Waker in the awake, no-pending-work state.
func NewWaker() *Waker {
	return &Waker{
		wakeSem:  make(semaphore, 1),
		doneSem:  make(semaphore, 1),
		spinTime: defaultSpinTime(),
	}
}

// Wake signals the consumer that work is available, unblocking it if
// it is asleep. Only the producer may call it.
func (w *Waker) Wake() {
	if prev := w.state.Add(2) - 2; prev < 0 {
		w.wakeSem.post()
	}
}

// TrySleep is called by the consumer when its queue looks empty. It
// returns true when the consumer should re-check the queue: either
// wakes arrived since the last check, or it slept and has been woken.
// With allowSleep false it never blocks and returns false when there
// is genuinely nothing to do, letting the caller run an idle
// iteration instead.
//
// When the producer is waiting in SyncWait and the queue is empty,
// TrySleep releases it exactly once.
func (w *Waker) TrySleep(allowSleep bool) bool {
	for {
		old := w.state.Load()
		var next int32
		if pendingWork(old) > 0 {
			// Consume the pending wakes but leave the producer's
			// waiting flag intact: it is only released once the queue
			// is actually empty.
			next = old & waitingFlag
		} else if allowSleep {
			next = sleeping
		} else {
			next = 0
		}
		if !w.state.CompareAndSwap(old, next) {
			continue
		}
		if pendingWork(old) > 0 {
			return true
		}
		if old&waitingFlag != 0 {
			w.doneSem.post()
		}
		if !allowSleep {
			return false
		}
		w.wakeSem.wait()
	}
}

// SyncWait blocks the producer until the consumer has drained
// everything published before the call. With spin set it busy-waits
// briefly for the consumer to go idle before arming the waiting flag
// and blocking on the done semaphore. The caller must have published a
// record and woken the consumer first, or the wait could miss work
// entirely.
func (w *Waker) SyncWait(spin bool) {
	if spin {
		deadline := time.Now().Add(w.spinTime)
		for time.Now().Before(deadline) {
			if w.state.Load() < 0 {
				return
			}
			runtime.Gosched()
		}
	}
	for {
		old := w.state.Load()
		if old < 0 {
			return
		}
		if w.state.CompareAndSwap(old, old|waitingFlag) {
			break
		}
	}
	w.doneSem.wait()
}

// NudgeDone releases a producer blocked in SyncWait without waiting
// for the queue to empty. The consumer uses it when tearing down.
func (w *Waker) NudgeDone() {
	for {
		old := w.state.Load()
		if old&waitingFlag == 0 {
			return
		}
		if w.state.CompareAndSwap(old, old&^waitingFlag) {
			w.doneSem.post()
			return
		}
	}
}

// semaphore is a binary semaphore: post never blocks and at most one
// signal is buffered, which is all the wake protocol requires since
// each side has at most one outstanding wait.
type semaphore chan struct{}

func (s semaphore) post() {
	select {
	case s <- struct{}{}:
	default:
	}
}

func (s semaphore) wait() { <-s }
