package cli

import (
	"github.com/spf13/cobra"

	"github.com/TheLoudSteve/epl-forecast/internal/app"
)

var showSeason string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the latest forecast table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Show(cmd.Context(), app.ShowOptions{Season: showSeason})
	},
}

func init() {
	showCmd.Flags().StringVar(&showSeason, "season", "", "Season to show (defaults to config)")
}
