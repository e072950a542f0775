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
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestRun_PushOnly(t *testing.T) {
	for _, mode := range []Mode{ModePointer, ModeArena} {
		t.Run(string(mode), func(t *testing.T) {
			opts := &Options{
				Mode:         mode,
				Workers:      8,
				OpsPerWorker: 500,
				PopRatio:     0,
				Capacity:     8 * 500,
				Seed:         1,
			}

			report, err := Run(context.Background(), opts)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}

			if !report.OK() {
				t.Fatalf("violations: %+v", report)
			}
			if report.Pushed != 8*500 {
				t.Errorf("expected %d pushes, got %d", 8*500, report.Pushed)
			}
			if report.Popped != 0 {
				t.Errorf("push only run popped %d", report.Popped)
			}
			if report.Drained != report.Pushed || len(report.Remaining) != 8*500 {
				t.Errorf("expected all %d values drained, got %d", report.Pushed, report.Drained)
			}
			if report.Exhausted != 0 {
				t.Errorf("unexpected exhaustion %d", report.Exhausted)
			}
		})
	}
}

func TestRun_Mixed(t *testing.T) {
	for _, mode := range []Mode{ModePointer, ModeArena} {
		t.Run(string(mode), func(t *testing.T) {
			logChannel := make(chan string, 100)
			opts := &Options{
				Mode:         mode,
				Workers:      16,
				OpsPerWorker: 2000,
				PopRatio:     0.5,
				Capacity:     64,
				Iterations:   5,
				Seed:         42,
				LogChannel:   logChannel,
			}

			report, err := Run(context.Background(), opts)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}

			if !report.OK() {
				t.Fatalf("violations: fabricated=%d duplicates=%d lost=%d",
					report.Fabricated, report.Duplicates, report.Lost)
			}
			if report.Rounds != 5 {
				t.Errorf("expected 5 rounds, got %d", report.Rounds)
			}
			if report.Popped+report.Drained != report.Pushed {
				t.Errorf("pushed %d, delivered %d", report.Pushed, report.Popped+report.Drained)
			}
			if report.RunID == "" {
				t.Error("missing run id")
			}

			close(logChannel)
			var messages []string
			for msg := range logChannel {
				messages = append(messages, msg)
			}
			// start, one per round, finish
			if len(messages) != 7 {
				t.Errorf("expected 7 log messages, got %d: %v", len(messages), messages)
			}
			if !strings.Contains(messages[0], report.RunID) {
				t.Errorf("first log message should name the run: %q", messages[0])
			}
		})
	}
}

func TestRun_ArenaExhaustion(t *testing.T) {
	opts := &Options{
		Mode:         ModeArena,
		Workers:      4,
		OpsPerWorker: 100,
		PopRatio:     0,
		Capacity:     10,
		Seed:         7,
	}

	report, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Pushed != 10 {
		t.Errorf("expected exactly capacity pushes, got %d", report.Pushed)
	}
	if report.Exhausted != 4*100-10 {
		t.Errorf("expected %d rejected pushes, got %d", 4*100-10, report.Exhausted)
	}
	if !report.OK() {
		t.Errorf("violations: %+v", report)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := Run(ctx, &Options{Iterations: 3})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report == nil {
		t.Fatal("expected a partial report")
	}
	if report.Rounds != 0 || report.Pushed != 0 {
		t.Errorf("cancelled run did work: %+v", report)
	}
}

func TestRun_InvalidOptions(t *testing.T) {
	if _, err := Run(context.Background(), nil); err == nil {
		t.Error("expected error for nil options")
	}

	if _, err := Run(context.Background(), &Options{Mode: "lockful"}); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("expected ErrInvalidMode, got %v", err)
	}

	if _, err := Run(context.Background(), &Options{PopRatio: 1.5}); !errors.Is(err, ErrInvalidPopRatio) {
		t.Errorf("expected ErrInvalidPopRatio, got %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	opts := &Options{}
	if err := opts.applyDefaults(); err != nil {
		t.Fatal(err)
	}

	if opts.Mode != DefaultMode || opts.Workers != DefaultWorkers || opts.OpsPerWorker != DefaultOpsPerWorker ||
		opts.Capacity != DefaultCapacity || opts.Iterations != DefaultIterations {
		t.Errorf("defaults not applied: %+v", opts)
	}
	if opts.Seed == 0 {
		t.Error("seed should be filled")
	}
	if opts.PopRatio != 0 {
		t.Errorf("explicit zero pop ratio must be kept, got %v", opts.PopRatio)
	}
}

func TestLoadOptions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stress.yaml")

	config := "mode: arena\nworkers: 3\ncapacity: 128\nseed: 99\n"
	if err := os.WriteFile(path, []byte(config), 0644); err != nil {
		t.Fatal(err)
	}

	opts, err := LoadOptions(path)
	if err != nil {
		t.Fatalf("LoadOptions: %v", err)
	}

	if opts.Mode != ModeArena || opts.Workers != 3 || opts.Capacity != 128 || opts.Seed != 99 {
		t.Errorf("unexpected options %+v", opts)
	}

	// Unset keys keep their defaults
	if opts.OpsPerWorker != DefaultOpsPerWorker || opts.PopRatio != DefaultPopRatio {
		t.Errorf("defaults lost: %+v", opts)
	}
}

func TestLoadOptions_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadOptions(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("mode: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOptions(bad); err == nil {
		t.Error("expected parse error")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("pop_ratio: -0.1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOptions(invalid); !errors.Is(err, ErrInvalidPopRatio) {
		t.Errorf("expected ErrInvalidPopRatio, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name                         string
		pushed, delivered            []int64
		fabricated, duplicates, lost int
	}{
		{"exact", []int64{1, 2, 3}, []int64{3, 2, 1}, 0, 0, 0},
		{"empty", nil, nil, 0, 0, 0},
		{"lost", []int64{1, 2, 3}, []int64{3}, 0, 0, 2},
		{"duplicate", []int64{1, 2}, []int64{2, 2, 1}, 0, 1, 0},
		{"fabricated", []int64{1}, []int64{1, 9}, 1, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, d, l := verify(tt.pushed, tt.delivered)
			if f != tt.fabricated || d != tt.duplicates || l != tt.lost {
				t.Errorf("verify = (%d, %d, %d); want (%d, %d, %d)", f, d, l, tt.fabricated, tt.duplicates, tt.lost)
			}
		})
	}
}

func TestNextID_ThreadSafety(t *testing.T) {
	g := newIDGenerator()
	const numGoroutines = 100
	const idsPerGoroutine = 100

	var wg sync.WaitGroup
	ids := make(chan int64, numGoroutines*idsPerGoroutine)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < idsPerGoroutine; j++ {
				ids <- g.nextID()
			}
		}()
	}

	wg.Wait()
	close(ids)

	idSet := make(map[int64]struct{})
	for id := range ids {
		if _, exists := idSet[id]; exists {
			t.Fatalf("Duplicate ID detected: %d", id)
		}
		idSet[id] = struct{}{}
	}

	if g.issued() != numGoroutines*idsPerGoroutine {
		t.Errorf("expected %d issued, got %d", numGoroutines*idsPerGoroutine, g.issued())
	}
}

func TestNextID_Wrap(t *testing.T) {
	g := &idGenerator{lastID: math.MaxInt64}
	if id := g.nextID(); id != 1 {
		t.Errorf("expected wrap to 1, got %d", id)
	}
}
