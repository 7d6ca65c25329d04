// Package framebus provides a single-slot frame arbiter for fanning out the
// latest camera frame to any number of concurrent consumers. Only the most
// recent frame is retained; consumers that fall behind skip straight to it.
package framebus

import (
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by WaitNext after the bus has been closed.
var ErrClosed = errors.New("frame bus is closed")

// Frame is one published frame. Data is shared read-only between all
// consumers holding the frame; it must not be modified after Publish.
// For raw luma frames, Data is row-major at Width by Height.
type Frame struct {
	Seq       uint64
	Data      []byte
	Width     int
	Height    int
	Timestamp time.Time
}

// Bus holds the most recent frame and a strictly increasing sequence number.
// Publish never blocks; WaitNext blocks until a newer frame is available.
// The lock is held only for the slot swap and the broadcast, never during
// encoding or I/O.
type Bus struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  Frame
	closed bool
}

// New creates an empty Bus.
func New() *Bus {
	b := &Bus{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Publish replaces the current frame, assigns it the next sequence number and
// wakes every waiter. The previous frame is dropped; there is no queue.
// Returns the assigned sequence number.
func (b *Bus) Publish(f Frame) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return b.frame.Seq
	}

	f.Seq = b.frame.Seq + 1
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	b.frame = f
	b.cond.Broadcast()

	return f.Seq
}

// WaitNext blocks until a frame with a sequence number greater than lastSeq
// has been published, then returns it. Passing the sequence number of the
// previously returned frame guarantees a strictly increasing subsequence:
// never a duplicate, possibly skipping frames under load.
//
// Returns ErrClosed once the bus has been closed and no newer frame exists.
func (b *Bus) WaitNext(lastSeq uint64) (Frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.frame.Seq <= lastSeq && !b.closed {
		b.cond.Wait()
	}

	if b.frame.Seq <= lastSeq {
		return Frame{}, ErrClosed
	}

	return b.frame, nil
}

// Latest returns the current frame without blocking. The second return value
// is false if nothing has been published yet.
func (b *Bus) Latest() (Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.frame, b.frame.Seq > 0
}

// Seq returns the sequence number of the most recently published frame.
func (b *Bus) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.frame.Seq
}

// Close wakes all waiters and makes further publishes no-ops. It is safe to
// call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.cond.Broadcast()
}
