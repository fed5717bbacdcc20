package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by all subcommands.
type GlobalFlags struct {
	ConfigPath string
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}

	root := &cobra.Command{
		Use:   "fountd",
		Short: "Supervisor for the water/syrup dispensing appliance",
		Long: `fountd supervises a dispensing appliance driven by a networked
microcontroller: it exposes the dispense lifecycle over HTTP, tracks
controller liveness, and persists the dispense history.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "fountd.toml", "path to config file")

	root.AddCommand(createServeCommand(globalFlags))
	return root
}
