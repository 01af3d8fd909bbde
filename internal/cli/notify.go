package cli

import (
	"github.com/spf13/cobra"
)

var notifyUserID string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show notification rate limit usage for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Stats(cmd.Context(), notifyUserID)
	},
}

var testNotifyCmd = &cobra.Command{
	Use:   "test-notify",
	Short: "Send a test notification to a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().TestNotify(cmd.Context(), notifyUserID)
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render sample notifications for a user without sending",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Preview(cmd.Context(), notifyUserID)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{statsCmd, testNotifyCmd, previewCmd} {
		cmd.Flags().StringVar(&notifyUserID, "user", "", "User id")
		_ = cmd.MarkFlagRequired("user")
	}
}
