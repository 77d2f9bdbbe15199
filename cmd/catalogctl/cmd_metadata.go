package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/wms-catalog/internal/catalog"
)

func newMetadataCmd() *cobra.Command {
	var f itemFlags

	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Print the service and data source metadata trees",
		RunE: func(cmd *cobra.Command, args []string) error {
			it := f.build(cmd.ErrOrStderr())
			m, err := load(cmd.Context(), it)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), m); err != nil {
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
