package cmd

import (
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Administrative audit commands",
	Long:  `View confirmation decisions recorded on the server. Requires an authenticated session (authcore login).`,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
