// Copyright 2026 The psxgpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cmdq

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"sync/atomic"
)

// DefaultBufferSize is the arena capacity used by the pipeline.
const DefaultBufferSize = 16 * 1024 * 1024

// MinBufferSize is the smallest accepted arena capacity.
const MinBufferSize = 256

// cursorGap keeps the write cursor from catching the read cursor from
// behind: the cursors are equal only when the buffer is empty, so the
// consumer never has to disambiguate full from empty.
const cursorGap = 4

// Buffer is the single-producer single-consumer command arena. The
// producer allocates and publishes records; the consumer walks them in
// order and republishes its cursor when a batch is done. Cursors are
// byte offsets into the arena, not monotonic counters: the wraparound
// sentinel resets them to zero.
//
// Exactly one goroutine may produce and exactly one may consume.
type Buffer struct {
	arena    []byte
	capacity uint32

	// wake is called each time Allocate finds the arena full, so a
	// sleeping consumer cannot deadlock the producer.
	wake func()

	write atomic.Uint32
	_     [60]byte
	read  atomic.Uint32
	_     [60]byte
}

// NewBuffer returns a Buffer with the given arena capacity, which must
// be a multiple of four and large enough for any single record. wake is
// invoked from Allocate whenever the producer must wait for the
// consumer; it must be safe to call repeatedly.
func NewBuffer(capacity uint32, wake func()) *Buffer {
	if capacity%4 != 0 || capacity < MinBufferSize {
		panic(fmt.Sprintf("cmdq: invalid buffer capacity %d", capacity))
	}
	if wake == nil {
		wake = func() {}
	}
	return &Buffer{
		arena:    make([]byte, capacity),
		capacity: capacity,
		wake:     wake,
	}
}

// Capacity returns the arena size in bytes.
func (b *Buffer) Capacity() uint32 { return b.capacity }

// Allocate reserves a record of the given payload size and writes its
// header. The record is invisible to the consumer until Publish. If the
// arena is too full, Allocate wakes the consumer and spins until space
// opens up; a record too large for the arena as a whole panics.
func (b *Buffer) Allocate(t CommandType, payloadSize int) Record {
	size := alignUp4(HeaderSize + uint32(payloadSize))
	if size+HeaderSize > b.capacity {
		panic(fmt.Sprintf("cmdq: %s record of %d bytes exceeds buffer capacity %d", t, size, b.capacity))
	}
	for {
		writePtr := b.write.Load()
		readPtr := b.read.Load()
		if readPtr > writePtr {
			// Free space is the contiguous span up to the consumer.
			// Demand a strict gap so publishing never lands the write
			// cursor on the read cursor.
			if readPtr-writePtr < size+cursorGap {
				b.wake()
				runtime.Gosched()
				continue
			}
		} else if size+HeaderSize > b.capacity-writePtr {
			// Not enough room before the physical end to fit this
			// record and still leave header space for a successor.
			// Burn the tail with a wraparound sentinel and restart at
			// offset zero. Resetting the write cursor makes the
			// sentinel visible immediately: the consumer clamps a
			// smaller write cursor to the capacity and walks the tail.
			if readPtr == 0 {
				// With the consumer parked at zero, a reset would make
				// the cursors equal while records are still pending,
				// which reads as an empty queue. Wait for it to move.
				b.wake()
				runtime.Gosched()
				continue
			}
			putHeader(b.arena[writePtr:], b.capacity-writePtr, CmdWraparound)
			b.write.Store(0)
			continue
		}
		putHeader(b.arena[writePtr:], size, t)
		return Record{
			Type:    t,
			Payload: b.arena[writePtr+HeaderSize : writePtr+size],
			off:     writePtr,
			size:    size,
		}
	}
}

// Publish makes rec and everything allocated before it visible to the
// consumer. The caller must not touch rec's payload afterwards.
func (b *Buffer) Publish(rec Record) {
	if v := b.write.Add(rec.size); v > b.capacity {
		panic(fmt.Sprintf("cmdq: write cursor %d published past capacity %d", v, b.capacity))
	}
}

// PendingBytes returns how many published bytes the consumer has not
// yet acknowledged, including wraparound padding.
func (b *Buffer) PendingBytes() uint32 {
	writePtr := b.write.Load()
	readPtr := b.read.Load()
	if writePtr >= readPtr {
		return writePtr - readPtr
	}
	return b.capacity - readPtr + writePtr
}

// WriteCursor returns the producer's published cursor.
func (b *Buffer) WriteCursor() uint32 { return b.write.Load() }

// ReadCursor returns the consumer's acknowledged cursor.
func (b *Buffer) ReadCursor() uint32 { return b.read.Load() }

// RecordAt decodes the record headed at off. Only the consumer may
// call it, and only for offsets in [read, write).
func (b *Buffer) RecordAt(off uint32) Record {
	size := binary.LittleEndian.Uint32(b.arena[off:])
	t := CommandType(binary.LittleEndian.Uint32(b.arena[off+4:]))
	if size < HeaderSize || off+size > b.capacity {
		panic(fmt.Sprintf("cmdq: record at %d has impossible size %d", off, size))
	}
	return Record{
		Type:    t,
		Payload: b.arena[off+HeaderSize : off+size],
		off:     off,
		size:    size,
	}
}

// PublishRead releases everything before off back to the producer.
// The consumer calls it after a batch, and immediately when handling a
// wraparound or shutdown so the producer never waits on space the
// consumer has already drained.
func (b *Buffer) PublishRead(off uint32) {
	b.read.Store(off)
}
