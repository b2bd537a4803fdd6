package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"LoadCast/internal/services/capability"
	applogger "LoadCast/pkg/logger"
)

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "Probe the optional model backends and print which are usable",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg := capability.Resolve(cfg.Capabilities, capability.DefaultProbes(), applogger.Nop())

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CAPABILITY\tAVAILABLE\tREASON")
		snap := reg.Snapshot()
		for _, name := range capability.Names() {
			fmt.Fprintf(w, "%s\t%t\t%s\n", name, snap[name], reg.Reason(name))
		}
		return w.Flush()
	},
}
