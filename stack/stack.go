// Package stack
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
package stack

import (
	"sync/atomic"
)

// node is an element in the stack.  next is written only before the node
// is published through head and never changes afterwards.
type node[T any] struct {
	value T
	next  *node[T]
}

// Stack implements an unbounded lock-free LIFO stack.
//
// Popped nodes are never reused; the garbage collector frees a node only
// once no goroutine still holds it as a head snapshot, so a pending
// CompareAndSwap can never match a recycled node.  Do not pool nodes.
//
// The zero value is an empty stack ready to use.
type Stack[T any] struct {
	head atomic.Pointer[node[T]]
}

// New creates a new stack
func New[T any]() *Stack[T] {
	return &Stack[T]{}
}

// Push adds a value to the stack
func (s *Stack[T]) Push(value T) {
	newNode := &node[T]{value: value}

	for {
		oldHead := s.head.Load()

		newNode.next = oldHead

		// Linearization point
		if s.head.CompareAndSwap(oldHead, newNode) {
			return
		}

		// Another goroutine moved the head, retry against the new one
	}
}

// Pop removes and returns the top value from the stack.
// ok is false if the stack was empty.
func (s *Stack[T]) Pop() (value T, ok bool) {
	for {
		oldHead := s.head.Load()
		if oldHead == nil {
			return value, false
		}

		if s.head.CompareAndSwap(oldHead, oldHead.next) {
			return oldHead.value, true
		}
	}
}

// Peek returns the top value without removing it
func (s *Stack[T]) Peek() (value T, ok bool) {
	top := s.head.Load()
	if top == nil {
		return value, false
	}
	return top.value, true
}

// IsEmpty checks if the stack is empty
func (s *Stack[T]) IsEmpty() bool {
	return s.head.Load() == nil
}

// Size returns the number of elements in the stack.
// The count is exact only while no push or pop is in flight.
func (s *Stack[T]) Size() int {
	count := 0
	for current := s.head.Load(); current != nil; current = current.next {
		count++
	}
	return count
}

// Snapshot returns the values currently linked, top first, without
// removing them.
func (s *Stack[T]) Snapshot() []T {
	var values []T
	for current := s.head.Load(); current != nil; current = current.next {
		values = append(values, current.value)
	}
	return values
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
