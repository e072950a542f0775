// Package arena
//
// (C) Copyright Alex Gaetano Padula
//
// Licensed under the Mozilla Public License, v. 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.mozilla.org/en-US/MPL/2.0/
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package arena

import (
	"errors"
	"math"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// MaxCapacity is the largest number of slots an arena can address.
// Index+1 must fit in the low 32 bits of a ref.
const MaxCapacity = math.MaxUint32 - 1

var (
	ErrExhausted       = errors.New("arena: no free slots")
	ErrInvalidCapacity = errors.New("arena: capacity must be between 1 and MaxCapacity")
)

// slot is a fixed position in the arena
type slot[T any] struct {
	value T
	next  atomic.Uint32 // link of the successor, 0 at the end of a list
}

// Stack is a bounded lock-free LIFO stack over a preallocated slot arena.
//
// Slots move between two Treiber lists, items and free.  Each list head is
// a ref whose tag changes on every successful swap, so a stale head
// snapshot never matches even when its slot index is back on top.
type Stack[T any] struct {
	items list[T]
	_     cpu.CacheLinePad
	free  list[T]
	_     cpu.CacheLinePad
	count atomic.Int64
	slots []slot[T]
}

// New creates a new arena stack with room for capacity values
func New[T any](capacity int) (*Stack[T], error) {
	if capacity <= 0 || uint64(capacity) > MaxCapacity {
		return nil, ErrInvalidCapacity
	}

	s := &Stack[T]{
		slots: make([]slot[T], capacity),
	}

	// Lowest index ends up on top of the free list
	for i := capacity - 1; i >= 0; i-- {
		s.free.push(s.slots, uint32(i))
	}

	return s, nil
}

// Push adds a value to the stack.  It returns ErrExhausted when every slot
// is in use; the caller decides whether to retry.
func (s *Stack[T]) Push(value T) error {
	idx, ok := s.free.pop(s.slots)
	if !ok {
		return ErrExhausted
	}

	// The slot is exclusively ours until items.push publishes it
	s.slots[idx].value = value
	s.items.push(s.slots, idx)
	s.count.Add(1)
	return nil
}

// Pop removes and returns the top value.  ok is false if the stack was empty.
func (s *Stack[T]) Pop() (value T, ok bool) {
	idx, ok := s.items.pop(s.slots)
	if !ok {
		return value, false
	}
	s.count.Add(-1)

	var zero T
	value = s.slots[idx].value
	s.slots[idx].value = zero
	s.free.push(s.slots, idx)
	return value, true
}

// Drain pops until the stack is empty and returns the values in pop order
func (s *Stack[T]) Drain() []T {
	var values []T
	for {
		v, ok := s.Pop()
		if !ok {
			return values
		}
		values = append(values, v)
	}
}

// Len returns the number of values on the stack.  Pushes in flight may not
// be counted yet.
func (s *Stack[T]) Len() int {
	n := s.count.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Cap returns the number of slots in the arena
func (s *Stack[T]) Cap() int {
	return len(s.slots)
}

// IsEmpty checks if the stack is empty
func (s *Stack[T]) IsEmpty() bool {
	return s.items.empty()
}
