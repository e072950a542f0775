// Package main
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
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/wildcatdb/lfstack/internal/stress"
	"github.com/wildcatdb/lfstack/snapshot"
)

const usage = `usage:
  lfstack-stress [flags]          run a concurrent push/pop stress test
  lfstack-stress inspect <file>   print the contents of a snapshot file

flags:
`

// inspectLimit is how many top values inspect prints
const inspectLimit = 10

func main() {
	if len(os.Args) > 1 && os.Args[1] == "inspect" {
		if len(os.Args) != 3 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		if err := inspect(os.Stdout, os.Args[2]); err != nil {
			color.Red("inspect failed: %v", err)
			os.Exit(1)
		}
		return
	}

	ok, err := run(os.Args[1:])
	if err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}

// run parses flags, runs the harness and reports whether it passed
func run(args []string) (bool, error) {
	fs := flag.NewFlagSet("lfstack-stress", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}

	configPath := fs.String("config", "", "YAML config file, flags override its values")
	mode := fs.String("mode", string(stress.DefaultMode), "stack implementation: pointer or arena")
	workers := fs.Int("workers", stress.DefaultWorkers, "concurrent goroutines per round")
	ops := fs.Int("ops", stress.DefaultOpsPerWorker, "operations per goroutine")
	popRatio := fs.Float64("pop-ratio", stress.DefaultPopRatio, "share of pops, 0 for push only")
	capacity := fs.Int("capacity", stress.DefaultCapacity, "arena slots")
	iterations := fs.Int("iterations", stress.DefaultIterations, "rounds, each on a fresh stack")
	seed := fs.Int64("seed", 0, "random seed, 0 for time based")
	snapshotPath := fs.String("snapshot", "", "write the values left after the last round to this file")

	if err := fs.Parse(args); err != nil {
		return false, err
	}

	opts := stress.DefaultOptions()
	if *configPath != "" {
		loaded, err := stress.LoadOptions(*configPath)
		if err != nil {
			return false, err
		}
		opts = loaded
	}

	// Explicitly set flags win over the config file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			opts.Mode = stress.Mode(*mode)
		case "workers":
			opts.Workers = *workers
		case "ops":
			opts.OpsPerWorker = *ops
		case "pop-ratio":
			opts.PopRatio = *popRatio
		case "capacity":
			opts.Capacity = *capacity
		case "iterations":
			opts.Iterations = *iterations
		case "seed":
			opts.Seed = *seed
		}
	})

	logChannel := make(chan string, 64)
	opts.LogChannel = logChannel

	var logWg sync.WaitGroup
	logWg.Add(1)
	go func() {
		defer logWg.Done()
		for msg := range logChannel {
			color.HiBlack("%s", msg)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := stress.Run(ctx, opts)
	close(logChannel)
	logWg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return false, err
	}
	if err != nil {
		color.Yellow("interrupted, reporting completed work")
	}

	printReport(os.Stdout, report)

	if *snapshotPath != "" {
		if err := writeSnapshot(*snapshotPath, report.Remaining); err != nil {
			return false, err
		}
		color.Blue("wrote %d values to %s", len(report.Remaining), *snapshotPath)
	}

	return report.OK(), nil
}

func printReport(w io.Writer, report *stress.Report) {
	fmt.Fprintf(w, "run        %s\n", report.RunID)
	fmt.Fprintf(w, "mode       %s (seed %d)\n", report.Mode, report.Seed)
	fmt.Fprintf(w, "rounds     %d in %s\n", report.Rounds, report.Elapsed)
	fmt.Fprintf(w, "pushed     %d\n", report.Pushed)
	fmt.Fprintf(w, "popped     %d\n", report.Popped)
	fmt.Fprintf(w, "drained    %d\n", report.Drained)
	fmt.Fprintf(w, "exhausted  %d\n", report.Exhausted)

	if report.OK() {
		fmt.Fprintln(w, color.GreenString("PASS no lost, duplicated or fabricated values"))
		return
	}

	fmt.Fprintln(w, color.RedString("FAIL fabricated=%d duplicates=%d lost=%d",
		report.Fabricated, report.Duplicates, report.Lost))
}

func writeSnapshot(path string, values []int64) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}

	if err := snapshot.Write(f, values); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

// inspect prints the count and top values of a snapshot file
func inspect(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	values, err := snapshot.Read[int64](f)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: %d values\n", color.CyanString(path), len(values))
	for i, v := range values {
		if i == inspectLimit {
			fmt.Fprintf(w, "  ... %d more\n", len(values)-inspectLimit)
			break
		}
		fmt.Fprintf(w, "  %d\n", v)
	}

	return nil
}
