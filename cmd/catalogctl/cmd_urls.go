package main

import (
	"github.com/spf13/cobra"
)

func newURLsCmd() *cobra.Command {
	var f itemFlags
	var timeParam string

	cmd := &cobra.Command{
		Use:   "urls",
		Short: "Print the derived URLs and imagery request without fetching anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			it := f.build(cmd.ErrOrStderr())
			return printJSON(cmd.OutOrStdout(), struct {
				DataURL     string `json:"dataUrl,omitempty"`
				MetadataURL string `json:"metadataUrl"`
				LegendURL   string `json:"legendUrl"`
				Imagery     any    `json:"imagery"`
			}{
				DataURL:     it.DataURL(),
				MetadataURL: it.MetadataURL(),
				LegendURL:   it.LegendURL(),
				Imagery:     it.ImageryRequest(timeParam),
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&timeParam, "time", "", "TIME value for the imagery request")
	return cmd
}
