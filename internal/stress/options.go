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
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects the stack implementation under test
type Mode string

const (
	ModePointer Mode = "pointer" // stack.Stack, GC reclaimed nodes
	ModeArena   Mode = "arena"   // arena.Stack, generation tagged slots
)

// Defaults
const (
	DefaultMode         = ModePointer
	DefaultWorkers      = 8
	DefaultOpsPerWorker = 10000
	DefaultPopRatio     = 0.5
	DefaultCapacity     = 1 << 16
	DefaultIterations   = 1
)

var (
	ErrInvalidMode     = errors.New("mode must be pointer or arena")
	ErrInvalidPopRatio = errors.New("pop ratio must be between 0 and 1")
)

// Options represents the configuration of a stress run
type Options struct {
	Mode         Mode        `yaml:"mode"`           // Stack implementation
	Workers      int         `yaml:"workers"`        // Concurrent goroutines per round
	OpsPerWorker int         `yaml:"ops_per_worker"` // Push or pop attempts per goroutine
	PopRatio     float64     `yaml:"pop_ratio"`      // Share of pops, 0 is push only
	Capacity     int         `yaml:"capacity"`       // Arena slots, ignored in pointer mode
	Iterations   int         `yaml:"iterations"`     // Rounds, each on a fresh stack
	Seed         int64       `yaml:"seed"`           // 0 picks a time based seed
	LogChannel   chan string `yaml:"-"`              // Channel for logging
}

// DefaultOptions returns options with every field at its default
func DefaultOptions() *Options {
	return &Options{
		Mode:         DefaultMode,
		Workers:      DefaultWorkers,
		OpsPerWorker: DefaultOpsPerWorker,
		PopRatio:     DefaultPopRatio,
		Capacity:     DefaultCapacity,
		Iterations:   DefaultIterations,
	}
}

// LoadOptions reads a YAML config file on top of the defaults
func LoadOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	opts := DefaultOptions()
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return opts, opts.validate()
}

// applyDefaults fills unset fields and validates the rest
func (opts *Options) applyDefaults() error {
	if opts.Mode == "" {
		opts.Mode = DefaultMode
	}

	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	if opts.OpsPerWorker <= 0 {
		opts.OpsPerWorker = DefaultOpsPerWorker
	}

	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}

	if opts.Iterations <= 0 {
		opts.Iterations = DefaultIterations
	}

	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	return opts.validate()
}

func (opts *Options) validate() error {
	switch opts.Mode {
	case ModePointer, ModeArena, "":
	default:
		return fmt.Errorf("%w, got %q", ErrInvalidMode, opts.Mode)
	}

	if opts.PopRatio < 0 || opts.PopRatio > 1 {
		return fmt.Errorf("%w, got %v", ErrInvalidPopRatio, opts.PopRatio)
	}

	return nil
}

// log sends msg to the log channel if one is configured
func (opts *Options) log(msg string) {
	if opts.LogChannel != nil {
		opts.LogChannel <- msg
	}
}
