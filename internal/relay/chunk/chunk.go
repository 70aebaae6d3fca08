// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package chunk implements the bounded, in-memory byte-chunk pipe that
// couples one producer to one consumer for a single ticket. Capacity is
// measured in chunks, giving the registry's tier.Policy.CacheSize a direct
// meaning: how many chunks may sit in flight before the sender blocks.
package chunk

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Send once the pipe has been closed.
var ErrClosed = errors.New("chunk: pipe closed")

// Pipe is the shared state behind a Producer/Consumer pair. It is never
// exposed directly; callers only ever hold a Producer or Consumer handle.
type Pipe struct {
	mu       sync.Mutex
	ch       chan []byte
	closed   bool
	closedCh chan struct{}
}

// New allocates a pipe with room for capacity chunks (minimum 1) and
// returns a cloneable Producer and a single-owner Consumer.
func New(capacity int) (Producer, Consumer) {
	if capacity < 1 {
		capacity = 1
	}
	p := &Pipe{ch: make(chan []byte, capacity), closedCh: make(chan struct{})}
	return Producer{p: p}, Consumer{p: p}
}

// Cap reports the pipe's chunk capacity.
func (p *Pipe) Cap() int { return cap(p.ch) }

// Producer is a cloneable handle to the send side of a Pipe. The registry
// keeps one clone even while a handler holds another, so that Delete can
// always reach Close.
type Producer struct{ p *Pipe }

// Clone returns an independent handle to the same underlying pipe.
func (pr Producer) Clone() Producer { return Producer{p: pr.p} }

// Cap reports the pipe's chunk capacity; authenticated-tier upgrades use
// this to decide whether a channel has already been used (see
// registry.Upgrade).
func (pr Producer) Cap() int { return pr.p.Cap() }

// IsClosed reports whether Close has been called.
func (pr Producer) IsClosed() bool {
	pr.p.mu.Lock()
	defer pr.p.mu.Unlock()
	return pr.p.closed
}

// Send enqueues chunk, blocking until there is room, the pipe is closed, or
// ctx is done. An empty chunk is a valid sentinel value; Send does not
// interpret chunk contents.
func (pr Producer) Send(ctx context.Context, data []byte) error {
	pr.p.mu.Lock()
	if pr.p.closed {
		pr.p.mu.Unlock()
		return ErrClosed
	}
	ch := pr.p.ch
	pr.p.mu.Unlock()

	select {
	case ch <- data:
		return nil
	case <-pr.p.closedCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the pipe closed, idempotently. It never closes the data
// channel itself (sending on a closed channel panics); instead it flips a
// guarded flag and a signal channel that Send and Receive both select on.
// Any chunks already buffered remain readable by Receive afterward.
func (pr Producer) Close() {
	pr.p.mu.Lock()
	defer pr.p.mu.Unlock()
	if pr.p.closed {
		return
	}
	pr.p.closed = true
	close(pr.p.closedCh)
}

// Consumer is a single-owner handle to the receive side of a Pipe. It is
// moved out of the registry by BeginDownload, not cloned.
type Consumer struct{ p *Pipe }

// Receive returns the next chunk. ok is false once the pipe is closed and
// drained; ctx cancellation surfaces as a non-nil error.
func (c Consumer) Receive(ctx context.Context) (data []byte, ok bool, err error) {
	// Prefer any chunk already buffered over observing closedCh, so a
	// dropped producer doesn't discard bytes it successfully enqueued.
	select {
	case b := <-c.p.ch:
		return b, true, nil
	default:
	}

	select {
	case b := <-c.p.ch:
		return b, true, nil
	case <-c.p.closedCh:
		select {
		case b := <-c.p.ch:
			return b, true, nil
		default:
			return nil, false, nil
		}
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}
