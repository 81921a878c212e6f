package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kalloc/internal/format"
	"github.com/joshuapare/kalloc/internal/trace"
)

var (
	genSeed       int64
	genOps        int
	genMaxSize    string
	genHot        string
	genFreeRatio  float64
	genPages      bool
	genCheckEvery int
	genOutput     string
)

func init() {
	cmd := newGenCmd()
	cmd.Flags().Int64Var(&genSeed, "seed", 1, "Random seed")
	cmd.Flags().IntVarP(&genOps, "ops", "n", 1000, "Number of operations")
	cmd.Flags().StringVar(&genMaxSize, "max-size", "4K", "Largest random allocation")
	cmd.Flags().StringVar(&genHot, "hot", "", "Comma-separated hot sizes picked for half of the allocations")
	cmd.Flags().Float64Var(&genFreeRatio, "free-ratio", 0.4, "Share of steps that free a live allocation")
	cmd.Flags().BoolVar(&genPages, "pages", false, "Mix in page runs (early allocator)")
	cmd.Flags().IntVar(&genCheckEvery, "check-every", 0, "Insert a check after every n operations")
	cmd.Flags().StringVarP(&genOutput, "output", "o", "", "Output file (default stdout)")
	rootCmd.AddCommand(cmd)
}

func newGenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a random allocation trace",
		Long: `The gen command writes a reproducible random trace. Every free refers
to a live allocation and everything is freed at the end, so a replay that
succeeds ends with zero bytes in use.

Example:
  kallocctl gen --ops 100000 --hot 32,128,512 -o hot.trace
  kallocctl gen --pages --check-every 100 -o early.trace`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen()
		},
	}
	return cmd
}

func runGen() error {
	maxSize, err := format.ParseSize(genMaxSize)
	if err != nil {
		return fmt.Errorf("--max-size: %w", err)
	}
	var hot []uintptr
	for _, s := range strings.Split(genHot, ",") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		n, err := format.ParseSize(s)
		if err != nil {
			return fmt.Errorf("--hot: %w", err)
		}
		hot = append(hot, n)
	}

	ops := trace.Generate(trace.GenOptions{
		Seed:       genSeed,
		Ops:        genOps,
		MaxSize:    maxSize,
		HotSizes:   hot,
		FreeRatio:  genFreeRatio,
		Pages:      genPages,
		CheckEvery: genCheckEvery,
	})

	var w io.Writer = os.Stdout
	if genOutput != "" {
		f, err := os.Create(genOutput)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	fmt.Fprintf(w, "# kallocctl gen --seed %d --ops %d\n", genSeed, genOps)
	if err := trace.Write(w, ops); err != nil {
		return err
	}
	if genOutput != "" {
		printVerbose("Wrote %d operations to %s\n", len(ops), genOutput)
	}
	return nil
}
