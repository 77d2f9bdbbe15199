package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/wms-catalog/internal/catalog"
)

func newResolveCmd() *cobra.Command {
	var f itemFlags

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Load capabilities and print every derived property",
		Long: `Load the capabilities document of a WMS service and print the resolved
item: derived URLs, rectangle, time intervals, and where each value came from.

The command exits non-zero when the load fails outright. Partial results
(missing layers, service block or time dimension) are printed with their
error messages.

Examples:
  catalogctl resolve -u https://maps.example.com/wms -l Rainfall
  catalogctl resolve -u https://maps.example.com/wms -l a,b -f caps.xml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			it := f.build(cmd.ErrOrStderr())
			m, err := load(cmd.Context(), it)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), it.Resolved()); err != nil {
				return err
			}
			if m.State() == catalog.Failed {
				return errors.New(m.ServiceErrorMessage())
			}
			return nil
		},
	}
	f.register(cmd)
	return cmd
}
