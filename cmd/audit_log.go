package cmd

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ctyano/athenz-auth-core/pkg/client"
)

var (
	auditLogCorrelationID string
	auditLogDomain        string
	auditLogInstanceID    string
)

// auditLogCmd represents the audit log command
var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Retrieve and display audit log entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Info().Msg("Fetching audit log...")
		audits, correlation, err := cli.ListAudits(cmd.Context(), client.ListAuditsOpts{
			Limit:         uint(limit),
			CorrelationID: auditLogCorrelationID,
			Domain:        auditLogDomain,
			InstanceID:    auditLogInstanceID,
		})
		if err != nil {
			return logError(err, correlation, "failed to fetch audit log")
		}

		log.Info().Msgf("Retrieved %d audit entries", len(audits))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Time", "Action", "Identity", "Approved", "Provider", "Error",
		})

		for _, e := range audits {
			status := greenCheck
			if !e.Approved {
				status = redCross
			}

			identity := "(unknown)"
			if e.Domain != "" || e.Service != "" {
				identity = truncate(e.Domain+"."+e.Service, 35)
			}

			t.AppendRow(table.Row{
				e.Time.Format(time.RFC3339),
				e.Action,
				identity,
				status,
				e.Provider,
				e.Error,
			})
		}

		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditLogCmd)

	auditLogCmd.Flags().IntP("limit", "n", 25, "Number of audit entries to retrieve")
	auditLogCmd.Flags().StringVar(&auditLogCorrelationID, "correlation-id", "", "Filter by correlation id")
	auditLogCmd.Flags().StringVar(&auditLogDomain, "domain", "", "Filter by domain")
	auditLogCmd.Flags().StringVar(&auditLogInstanceID, "instance-id", "", "Filter by instance id")
}
