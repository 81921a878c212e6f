package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/internal/config"
)

var profileAllocator string

func init() {
	cmd := newProfileCmd()
	cmd.Flags().StringVarP(&profileAllocator, "allocator", "a", "list", "Allocator kind: list, pooled or early")
	rootCmd.AddCommand(cmd)
}

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Print a default machine profile",
		Long: `The profile command prints a machine profile in YAML, ready to be
edited and passed to replay --profile.

Example:
  kallocctl profile --allocator pooled > pooled.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfile()
		},
	}
	return cmd
}

func runProfile() error {
	p := config.Default()
	p.Allocator = config.Kind(profileAllocator)
	if p.Allocator == config.KindPooled {
		pools := alloc.DefaultPoolConfig
		p.Pools = &pools
	}
	if err := p.Validate(); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(p)
	}
	data, err := p.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}
