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
	"fmt"

	"github.com/wildcatdb/lfstack/arena"
	"github.com/wildcatdb/lfstack/stack"
)

// target is the stack under test
type target interface {
	Push(value int64) error
	Pop() (int64, bool)
	Drain() []int64
}

// pointerTarget adapts stack.Stack, whose Push cannot fail
type pointerTarget struct {
	*stack.Stack[int64]
}

func (p pointerTarget) Push(value int64) error {
	p.Stack.Push(value)
	return nil
}

func newTarget(opts *Options) (target, error) {
	switch opts.Mode {
	case ModeArena:
		s, err := arena.New[int64](opts.Capacity)
		if err != nil {
			return nil, err
		}
		return s, nil
	case ModePointer:
		return pointerTarget{stack.New[int64]()}, nil
	default:
		return nil, fmt.Errorf("%w, got %q", ErrInvalidMode, opts.Mode)
	}
}
