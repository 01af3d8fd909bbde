package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheLoudSteve/epl-forecast/internal/app"
)

var (
	replayFrom string
	replayTo   string
	replayTeam string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Walk stored forecast history and print the notifications each change would produce",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayFrom == "" || replayTo == "" {
			return fmt.Errorf("--from and --to are required")
		}

		from, err := time.Parse(time.RFC3339, replayFrom)
		if err != nil {
			return fmt.Errorf("invalid --from value: %w", err)
		}
		to, err := time.Parse(time.RFC3339, replayTo)
		if err != nil {
			return fmt.Errorf("invalid --to value: %w", err)
		}
		if !to.After(from) {
			return fmt.Errorf("--to must be after --from")
		}

		return getApp().Replay(cmd.Context(), app.ReplayOptions{From: from, To: to, Team: replayTeam})
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayFrom, "from", "", "Start timestamp (RFC3339, inclusive)")
	replayCmd.Flags().StringVar(&replayTo, "to", "", "End timestamp (RFC3339, exclusive)")
	replayCmd.Flags().StringVar(&replayTeam, "team", "", "Only show changes for this team")
}
