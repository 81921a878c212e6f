package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/joshuapare/kalloc/internal/config"
	"github.com/joshuapare/kalloc/internal/format"
	"github.com/joshuapare/kalloc/internal/sim"
	"github.com/joshuapare/kalloc/internal/trace"
)

var (
	replayProfile   string
	replayAllocator string
	replayRegion    string
	replayCheck     bool
	replayVerify    bool
	replayProgress  bool
)

// progressMinOps is the trace length from which --progress draws a bar.
const progressMinOps = 10000

func init() {
	cmd := newReplayCmd()
	cmd.Flags().StringVarP(&replayProfile, "profile", "p", "", "Machine profile (YAML)")
	cmd.Flags().StringVarP(&replayAllocator, "allocator", "a", "", "Override the profile allocator: list, pooled or early")
	cmd.Flags().StringVar(&replayRegion, "region", "", "Override the profile region size (e.g. 4M)")
	cmd.Flags().BoolVar(&replayCheck, "check", false, "Validate allocator invariants after every operation")
	cmd.Flags().BoolVar(&replayVerify, "verify", true, "Fill allocations and verify their contents on free")
	cmd.Flags().BoolVar(&replayProgress, "progress", false, "Show a progress bar for long traces")
	rootCmd.AddCommand(cmd)
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <trace>",
		Short: "Replay an allocation trace",
		Long: `The replay command builds a machine from a profile and replays an
allocation trace against it. Allocation failures are reported; trace errors,
overlapping allocations and invariant violations stop the replay.

Example:
  kallocctl replay boot.trace
  kallocctl replay boot.trace --profile early.yaml --check
  kallocctl replay boot.trace --allocator pooled --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), args)
		},
	}
	return cmd
}

func runReplay(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	tracePath := args[0]

	profile, err := loadProfile()
	if err != nil {
		return err
	}

	printVerbose("Reading trace: %s\n", tracePath)
	ops, err := trace.ParseFile(tracePath)
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}

	m, err := sim.NewMachine(profile)
	if err != nil {
		return fmt.Errorf("failed to build machine: %w", err)
	}
	defer m.Close()
	printVerbose("Machine: %s allocator, %d bytes at %#x\n",
		profile.Allocator, m.Bytes().TotalBytes(), m.Region().Base())

	opts := sim.Options{Check: replayCheck, Verify: replayVerify}
	var bar *progressbar.ProgressBar
	if replayProgress && !quiet && !jsonOut && len(ops) >= progressMinOps {
		bar = progressbar.NewOptions(len(ops),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("replaying"),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionEnableColorCodes(!noColor),
			progressbar.OptionClearOnFinish(),
		)
		opts.Progress = func(done int) { _ = bar.Set(done) }
	}

	start := time.Now()
	report, replayErr := sim.Replay(ctx, m, ops, opts)
	if bar != nil {
		_ = bar.Finish()
	}

	if jsonOut {
		if err := printJSON(report); err != nil {
			return err
		}
		return replayErr
	}
	printReport(report, time.Since(start))
	return replayErr
}

// loadProfile reads --profile (or the default profile) and applies the
// command-line overrides.
func loadProfile() (config.Profile, error) {
	profile := config.Default()
	if replayProfile != "" {
		p, err := config.Load(replayProfile)
		if err != nil {
			return config.Profile{}, err
		}
		profile = p
	}
	if replayAllocator != "" {
		profile.Allocator = config.Kind(replayAllocator)
	}
	if replayRegion != "" {
		size, err := format.ParseSize(replayRegion)
		if err != nil {
			return config.Profile{}, err
		}
		profile.RegionSize = config.Size(size)
	}
	return profile, profile.Validate()
}

func printReport(r *sim.Report, elapsed time.Duration) {
	printInfo("\nReplay Summary (%s, %s allocator):\n", r.Profile, r.Allocator)
	printInfo("  Operations:     %d\n", r.Ops)
	printInfo("  Allocations:    %d (%d failed)\n", r.Allocs, r.FailedAllocs)
	printInfo("  Frees:          %d (%d skipped)\n", r.Frees, r.SkippedFrees)
	if r.PageSize != 0 {
		printInfo("  Page runs:      %d (%d failed)\n", r.PageAllocs, r.FailedPageAllocs)
		printInfo("  Page frees:     %d (%d ignored)\n", r.PageFrees, r.IgnoredPageFrees)
	}
	if r.Grows > 0 {
		printInfo("  Grows:          %d\n", r.Grows)
	}
	if r.Checks > 0 {
		printInfo("  Checks:         %d\n", r.Checks)
	}

	printInfo("\nMemory:\n")
	printInfo("  Total:          %d bytes\n", r.TotalBytes)
	printInfo("  Used:           %d bytes\n", r.UsedBytes)
	printInfo("  Available:      %d bytes\n", r.AvailableBytes)
	printInfo("  Peak used:      %d bytes\n", r.PeakUsed)
	if r.PageSize != 0 {
		printInfo("  Pages:          %d used of %d (%d available, %d bytes each)\n",
			r.UsedPages, r.TotalPages, r.AvailablePages, r.PageSize)
	}
	printInfo("  Live:           %d allocations, %d pages\n", r.LiveAllocs, r.LivePages)
	printVerbose("  Touched:        %d pages in %d ranges\n", r.TouchedPages, len(r.Footprint))

	if len(r.Pools) > 0 {
		printInfo("\nPools (hit rate %.1f%%):\n", 100*r.PoolHitRate())
		printInfo("  %8s %6s %9s %9s %9s %6s\n", "size", "slots", "requests", "hits", "fallback", "live")
		for _, p := range r.Pools {
			printInfo("  %8s %6d %9d %9d %9d %6d\n",
				format.FormatSize(p.Size), p.Slots, p.Requests, p.Hits, p.Fallbacks, p.Live)
		}
	}

	printVerbose("\nAllocator:\n")
	printVerbose("  Splits:         %d\n", r.Stats.SplitCount)
	printVerbose("  Coalesces:      %d\n", r.Stats.CoalesceCount)
	if r.PageSize != 0 {
		printVerbose("  Bump allocs:    %d\n", r.Stats.BumpAllocs)
		printVerbose("  Rewinds:        %d\n", r.Stats.Rewinds)
	}
	for _, f := range r.Failures {
		printVerbose("  line %d: %s: %s\n", f.Line, f.Op, f.Err)
	}
	printVerbose("\nElapsed: %s\n", elapsed.Round(time.Microsecond))
}
