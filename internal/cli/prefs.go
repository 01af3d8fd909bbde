package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/TheLoudSteve/epl-forecast/internal/app"
)

var (
	prefsUserID      string
	prefsTeam        string
	prefsEnabled     bool
	prefsTiming      string
	prefsSensitivity string
	prefsPushToken   string
	prefsEmail       string
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Inspect or change a user's notification preferences",
}

var prefsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print a user's notification preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().GetPrefs(cmd.Context(), prefsUserID)
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or update a user's notification preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		opts := app.PrefsOptions{
			UserID:      prefsUserID,
			Team:        changedString(flags, "team", prefsTeam),
			Timing:      changedString(flags, "timing", prefsTiming),
			Sensitivity: changedString(flags, "sensitivity", prefsSensitivity),
			PushToken:   changedString(flags, "push-token", prefsPushToken),
			Email:       changedString(flags, "email", prefsEmail),
		}
		if flags.Changed("enabled") {
			opts.Enabled = &prefsEnabled
		}
		return getApp().SetPrefs(cmd.Context(), opts)
	},
}

// changedString returns a pointer to v only when the flag was set explicitly.
func changedString(flags *pflag.FlagSet, name, v string) *string {
	if !flags.Changed(name) {
		return nil
	}
	return &v
}

func init() {
	prefsCmd.PersistentFlags().StringVar(&prefsUserID, "user", "", "User id")
	_ = prefsCmd.MarkPersistentFlagRequired("user")

	prefsSetCmd.Flags().StringVar(&prefsTeam, "team", "", "Favorite team")
	prefsSetCmd.Flags().BoolVar(&prefsEnabled, "enabled", true, "Enable notifications")
	prefsSetCmd.Flags().StringVar(&prefsTiming, "timing", "", "Delivery timing: immediate or end_of_day")
	prefsSetCmd.Flags().StringVar(&prefsSensitivity, "sensitivity", "", "Sensitivity: any_change or significant_only")
	prefsSetCmd.Flags().StringVar(&prefsPushToken, "push-token", "", "APNs device token (64 hex characters)")
	prefsSetCmd.Flags().StringVar(&prefsEmail, "email", "", "Contact email")

	prefsCmd.AddCommand(prefsGetCmd)
	prefsCmd.AddCommand(prefsSetCmd)
}
