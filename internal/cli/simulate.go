package cli

import (
	"github.com/spf13/cobra"

	"github.com/TheLoudSteve/epl-forecast/internal/app"
)

var simulateOpts app.SimulateOptions

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Push a hypothetical position change through the notification pipeline",
	Long: `simulate builds two synthetic forecast tables in which --team moves from
--from to --to and runs them through the same filtering, rate limiting and
delivery path as a real update.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Simulate(cmd.Context(), simulateOpts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateOpts.Team, "team", "", "Team that moves")
	simulateCmd.Flags().IntVar(&simulateOpts.PreviousPosition, "from", 0, "Previous forecast position (1-20)")
	simulateCmd.Flags().IntVar(&simulateOpts.NewPosition, "to", 0, "New forecast position (1-20)")
	simulateCmd.Flags().StringVar(&simulateOpts.Context, "context", "Simulated update", "Change context shown in notifications")
	_ = simulateCmd.MarkFlagRequired("team")
	_ = simulateCmd.MarkFlagRequired("from")
	_ = simulateCmd.MarkFlagRequired("to")
}
