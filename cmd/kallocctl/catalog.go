package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kalloc/alloc"
	"github.com/joshuapare/kalloc/internal/config"
	"github.com/joshuapare/kalloc/internal/format"
)

var (
	catalogName    string
	catalogProfile string
)

// namedCatalogs are the built-in pool configurations.
var namedCatalogs = map[string]alloc.PoolConfig{
	"kernelhot": alloc.ConfigKernelHot,
	"compact":   alloc.ConfigCompact,
}

func init() {
	cmd := newCatalogCmd()
	cmd.Flags().StringVar(&catalogName, "config", "kernelhot", "Built-in catalog: kernelhot or compact")
	cmd.Flags().StringVarP(&catalogProfile, "profile", "p", "", "Print the catalog of a machine profile instead")
	rootCmd.AddCommand(cmd)
}

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Show a hot-size pool catalog",
		Long: `The catalog command prints the sizes served by the pooled allocator's
fast path, the slots reserved for each and the memory they take.

Example:
  kallocctl catalog
  kallocctl catalog --config compact --json
  kallocctl catalog --profile pooled.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog()
		},
	}
	return cmd
}

// catalogEntry is one class as printed by the catalog command.
type catalogEntry struct {
	Size     uintptr `json:"size"`
	Slots    int     `json:"slots"`
	Reserved uintptr `json:"reserved_bytes"`
}

type catalogOutput struct {
	Name     string         `json:"name"`
	Classes  []catalogEntry `json:"classes"`
	Reserved uintptr        `json:"reserved_bytes"`
}

func runCatalog() error {
	cfg, err := selectCatalog()
	if err != nil {
		return err
	}

	out := catalogOutput{Name: cfg.Name, Reserved: cfg.ReservedBytes()}
	for _, c := range cfg.Classes {
		out.Classes = append(out.Classes, catalogEntry{
			Size:     c.Size,
			Slots:    c.Slots,
			Reserved: uintptr(c.Slots) * (c.Size + alloc.HeaderSize),
		})
	}

	if jsonOut {
		return printJSON(out)
	}
	printInfo("\nPool catalog %s:\n", out.Name)
	printInfo("  %8s %6s %12s\n", "size", "slots", "reserved")
	for _, c := range out.Classes {
		printInfo("  %8s %6d %12d\n", format.FormatSize(c.Size), c.Slots, c.Reserved)
	}
	printInfo("  total reserved: %d bytes\n", out.Reserved)
	return nil
}

func selectCatalog() (alloc.PoolConfig, error) {
	if catalogProfile != "" {
		p, err := config.Load(catalogProfile)
		if err != nil {
			return alloc.PoolConfig{}, err
		}
		if p.Pools == nil {
			return alloc.DefaultPoolConfig, nil
		}
		return *p.Pools, nil
	}
	cfg, ok := namedCatalogs[strings.ToLower(catalogName)]
	if !ok {
		return alloc.PoolConfig{}, fmt.Errorf("unknown catalog %q (want kernelhot or compact)", catalogName)
	}
	return cfg, nil
}
