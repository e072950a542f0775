// Package stress
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
package stress

import (
	"math"
	"sync/atomic"
)

// idGenerator hands out the unique values pushed during a run, so any
// value popped twice or never pushed is detectable.
type idGenerator struct {
	lastID int64
}

func newIDGenerator() *idGenerator {
	return &idGenerator{}
}

// nextID returns the next id, wrapping to 1 after math.MaxInt64
func (g *idGenerator) nextID() int64 {
	for {
		last := atomic.LoadInt64(&g.lastID)
		next := last + 1
		if last == math.MaxInt64 {
			next = 1
		}

		if atomic.CompareAndSwapInt64(&g.lastID, last, next) {
			return next
		}
	}
}

// issued returns how many ids were handed out since the last wrap
func (g *idGenerator) issued() int64 {
	return atomic.LoadInt64(&g.lastID)
}
