package cmd

import (
	"github.com/spf13/cobra"
)

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadConfig()
		if err != nil {
			return logError(err, "", "configuration is invalid")
		}
		logSuccess("configuration is valid (%d providers, %d rules)",
			len(cfg.Providers), len(cfg.Rules))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}
