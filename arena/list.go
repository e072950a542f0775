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

import "sync/atomic"

// ref packs a generation tag in the high 32 bits and a link (slot index
// + 1, 0 for none) in the low 32 bits.
type ref uint64

func makeRef(tag uint32, link uint32) ref {
	return ref(uint64(tag)<<32 | uint64(link))
}

func (r ref) tag() uint32 {
	return uint32(r >> 32)
}

func (r ref) link() uint32 {
	return uint32(r)
}

// list is a Treiber stack of slot indexes
type list[T any] struct {
	head atomic.Uint64 // ref
}

// push links slot idx on top of the list.  The caller owns idx.
func (l *list[T]) push(slots []slot[T], idx uint32) {
	for {
		old := ref(l.head.Load())
		slots[idx].next.Store(old.link())
		if l.head.CompareAndSwap(uint64(old), uint64(makeRef(old.tag()+1, idx+1))) {
			return
		}
	}
}

// pop unlinks the top slot and hands its ownership to the caller
func (l *list[T]) pop(slots []slot[T]) (uint32, bool) {
	for {
		old := ref(l.head.Load())
		if old.link() == 0 {
			return 0, false
		}

		idx := old.link() - 1

		// May be stale if idx was popped and relinked since the load; the
		// tag makes the swap below fail in that case.
		next := slots[idx].next.Load()

		if l.head.CompareAndSwap(uint64(old), uint64(makeRef(old.tag()+1, next))) {
			return idx, true
		}
	}
}

func (l *list[T]) empty() bool {
	return ref(l.head.Load()).link() == 0
}
