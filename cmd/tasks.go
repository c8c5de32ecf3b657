package cmd

import (
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage background tasks on the server",
	Long:  `List, trigger and inspect background tasks such as JWKS refresh and policy sync. Requires an authenticated session (authcore login).`,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
