package cli

import (
	"github.com/spf13/cobra"
)

var updateContext string

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fetch standings, store a new forecast and notify subscribers once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Update(cmd.Context(), updateContext)
	},
}

func init() {
	updateCmd.Flags().StringVar(&updateContext, "context", "", `What triggered the update, e.g. "Arsenal vs Chelsea"`)
}
