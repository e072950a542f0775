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
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/wildcatdb/lfstack/arena"
	"github.com/wildcatdb/lfstack/queue"
)

// cancelCheckInterval is how many operations a worker runs between
// context checks
const cancelCheckInterval = 256

// Report is the outcome of a stress run, summed over all rounds
type Report struct {
	RunID      string
	Mode       Mode
	Seed       int64
	Rounds     int           // Rounds that ran, including a cancelled one
	Pushed     int64         // Successful pushes
	Popped     int64         // Values returned by concurrent pops
	Drained    int64         // Values left over and drained after each round
	Exhausted  int64         // Pushes rejected with arena.ErrExhausted
	Fabricated int           // Delivered values that were never pushed
	Duplicates int           // Values delivered more than once
	Lost       int           // Pushed values never delivered
	Elapsed    time.Duration // Wall time of the run
	Remaining  []int64       // Drained values of the last round, top first
}

// OK reports whether no round violated the stack invariants
func (r *Report) OK() bool {
	return r.Fabricated == 0 && r.Duplicates == 0 && r.Lost == 0
}

// round holds what the workers of one round recorded
type round struct {
	pushed    *queue.Queue[int64]
	popped    *queue.Queue[int64]
	exhausted atomic.Int64
	errOnce   sync.Once
	err       error
}

func (r *round) fail(err error) {
	r.errOnce.Do(func() {
		r.err = err
	})
}

// Run executes opts.Iterations rounds.  Each round runs opts.Workers
// goroutines doing a random mix of pushes and pops on a fresh stack, then
// drains it and checks every pushed value came out exactly once.
//
// Cancelling ctx stops workers between operations; the partial round is
// still verified and the report is returned along with ctx.Err().
func Run(ctx context.Context, opts *Options) (*Report, error) {
	if opts == nil {
		return nil, errors.New("options cannot be nil")
	}

	if err := opts.applyDefaults(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID: uuid.New().String(),
		Mode:  opts.Mode,
		Seed:  opts.Seed,
	}

	opts.log(fmt.Sprintf("Starting run %s: mode=%s workers=%d ops=%d pop_ratio=%.2f rounds=%d seed=%d",
		report.RunID, opts.Mode, opts.Workers, opts.OpsPerWorker, opts.PopRatio, opts.Iterations, opts.Seed))

	start := time.Now()
	ids := newIDGenerator()

	for i := 0; i < opts.Iterations; i++ {
		if ctx.Err() != nil {
			break
		}

		t, err := newTarget(opts)
		if err != nil {
			return nil, err
		}

		r := runRound(ctx, opts, t, ids, i)
		if r.err != nil {
			return nil, fmt.Errorf("round %d: %w", i, r.err)
		}

		remaining := t.Drain()
		report.add(r, remaining)

		opts.log(fmt.Sprintf("Round %d done: pushed=%d popped=%d remaining=%d exhausted=%d",
			i, r.pushed.Size(), r.popped.Size(), len(remaining), r.exhausted.Load()))
	}

	report.Elapsed = time.Since(start)

	opts.log(fmt.Sprintf("Run %s finished in %s after %d ids, ok=%v",
		report.RunID, report.Elapsed, ids.issued(), report.OK()))

	return report, ctx.Err()
}

// runRound runs the workers of one round against t
func runRound(ctx context.Context, opts *Options, t target, ids *idGenerator, iteration int) *round {
	r := &round{
		pushed: queue.New[int64](),
		popped: queue.New[int64](),
	}

	var wg sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			rng := rand.New(rand.NewSource(opts.Seed + int64(iteration*opts.Workers+id)))

			for i := 0; i < opts.OpsPerWorker; i++ {
				if i%cancelCheckInterval == 0 && ctx.Err() != nil {
					return
				}

				if rng.Float64() < opts.PopRatio {
					if v, ok := t.Pop(); ok {
						r.popped.Enqueue(v)
					}
					continue
				}

				v := ids.nextID()
				if err := t.Push(v); err != nil {
					if errors.Is(err, arena.ErrExhausted) {
						r.exhausted.Add(1)
						continue
					}
					r.fail(err)
					return
				}
				r.pushed.Enqueue(v)
			}
		}(w)
	}

	wg.Wait()
	return r
}

// add verifies one round and accumulates it into the report
func (r *Report) add(rnd *round, remaining []int64) {
	pushed := rnd.pushed.List()
	delivered := append(rnd.popped.List(), remaining...)

	fabricated, duplicates, lost := verify(pushed, delivered)

	r.Rounds++
	r.Pushed += int64(len(pushed))
	r.Popped += rnd.popped.Size()
	r.Drained += int64(len(remaining))
	r.Exhausted += rnd.exhausted.Load()
	r.Fabricated += fabricated
	r.Duplicates += duplicates
	r.Lost += lost
	r.Remaining = remaining
}

// verify compares the delivered values against the pushed ones
func verify(pushed, delivered []int64) (fabricated, duplicates, lost int) {
	inPushed := make(map[int64]struct{}, len(pushed))
	for _, v := range pushed {
		inPushed[v] = struct{}{}
	}

	seen := make(map[int64]struct{}, len(delivered))
	for _, v := range delivered {
		if _, ok := inPushed[v]; !ok {
			fabricated++
			continue
		}
		if _, ok := seen[v]; ok {
			duplicates++
			continue
		}
		seen[v] = struct{}{}
	}

	lost = len(inPushed) - len(seen)
	return fabricated, duplicates, lost
}
