// Copyright 2025 Tom Barlow
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

// Package limiter implements a keyed counting semaphore bounding how many
// flow runs a worker executes concurrently.
package limiter

import "sync"

// Limiter is a counting semaphore keyed by flow-run id. Acquire and release
// are keyed rather than anonymous so that tests and error paths can release
// a specific slot explicitly; releasing an id the limiter no longer tracks
// is a no-op, never an error.
type Limiter struct {
	mu        sync.Mutex
	capacity  int
	unlimited bool
	held      map[string]struct{}
}

// New returns a Limiter with the given capacity. A nil or non-positive
// capacity makes the limiter unlimited: AcquireOnBehalfOf always succeeds
// and bookkeeping is kept only so Release and Occupied stay accurate.
func New(capacity *int) *Limiter {
	l := &Limiter{held: make(map[string]struct{})}
	if capacity == nil || *capacity <= 0 {
		l.unlimited = true
		return l
	}
	l.capacity = *capacity
	return l
}

// AcquireOnBehalfOf attempts to reserve a slot for id without blocking. It
// reports false when the limiter is at capacity; callers must stop
// submitting further candidates in that cycle and revisit them next tick.
// Re-acquiring an id that already holds a slot is a no-op success.
func (l *Limiter) AcquireOnBehalfOf(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, already := l.held[id]; already {
		return true
	}
	if !l.unlimited && len(l.held) >= l.capacity {
		return false
	}
	l.held[id] = struct{}{}
	return true
}

// ReleaseOnBehalfOf releases the slot held for id, if any. Releasing an
// unknown or already-released id is a no-op.
func (l *Limiter) ReleaseOnBehalfOf(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, id)
}

// Occupied returns the number of slots currently held.
func (l *Limiter) Occupied() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// Capacity returns the configured capacity and whether the limiter is
// unlimited.
func (l *Limiter) Capacity() (capacity int, unlimited bool) {
	return l.capacity, l.unlimited
}
