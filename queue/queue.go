// Package queue
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
package queue

import (
	"sync/atomic"
)

// Node represents a node in the queue
type Node[T any] struct {
	value T
	next  atomic.Pointer[Node[T]]
}

// Queue implements a concurrent non-blocking queue
type Queue[T any] struct {
	head atomic.Pointer[Node[T]]
	tail atomic.Pointer[Node[T]]
	size atomic.Int64
}

// New creates a new concurrent queue
func New[T any]() *Queue[T] {
	node := &Node[T]{}
	q := &Queue[T]{}
	q.head.Store(node)
	q.tail.Store(node)
	return q
}

// List returns a slice of all values in the queue
func (q *Queue[T]) List() []T {
	var result []T
	q.ForEach(func(item T) bool {
		result = append(result, item)
		return true
	})
	return result
}

// Enqueue adds a value to the queue
func (q *Queue[T]) Enqueue(value T) {
	node := &Node[T]{value: value}

	for {
		tail := q.tail.Load()
		next := tail.next.Load()

		// Check if tail is consistent
		if tail != q.tail.Load() {
			continue
		}

		if next == nil {
			// Try to link node at the end of the list
			if tail.next.CompareAndSwap(nil, node) {
				// Enqueue is done, try to swing tail to the inserted node
				q.tail.CompareAndSwap(tail, node)
				q.size.Add(1)
				return
			}
		} else {
			// Tail was not pointing to the last node, try to advance tail
			q.tail.CompareAndSwap(tail, next)
		}
	}
}

// Dequeue removes and returns the value at the front of the queue.
// ok is false if the queue is empty.
func (q *Queue[T]) Dequeue() (value T, ok bool) {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()

		// Check if head, tail, and next are consistent
		if head != q.head.Load() {
			continue
		}

		if head == tail {
			if next == nil {
				var zero T
				return zero, false
			}
			// Tail is falling behind. Try to advance it
			q.tail.CompareAndSwap(tail, next)
			continue
		}

		if next == nil {
			continue
		}

		// Read value before CAS, next becomes the new dummy afterwards
		v := next.value
		if q.head.CompareAndSwap(head, next) {
			q.size.Add(-1)
			return v, true
		}
	}
}

// IsEmpty returns true if the queue is empty
func (q *Queue[T]) IsEmpty() bool {
	return q.head.Load().next.Load() == nil
}

// Peek returns the value at the front of the queue without removing it
func (q *Queue[T]) Peek() (value T, ok bool) {
	next := q.head.Load().next.Load()
	if next == nil {
		return value, false
	}
	return next.value, true
}

// ForEach iterates over the queue and applies the function f to each item
func (q *Queue[T]) ForEach(f func(item T) bool) {
	next := q.head.Load().next.Load()
	for next != nil {
		if !f(next.value) {
			return
		}
		next = next.next.Load()
	}
}

// Size returns the number of items in the queue
func (q *Queue[T]) Size() int64 {
	return q.size.Load()
}
