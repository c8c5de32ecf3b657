package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ctyano/athenz-auth-core/internal/core"
)

var (
	confirmProvider   string
	confirmDomain     string
	confirmService    string
	confirmToken      string
	confirmInstanceID string
	confirmSanDNS     string
	confirmSanURI     string
	confirmLocal      bool
)

var confirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Submit an instance confirmation request",
	Long: `Submits an instance confirmation request carrying an attestation token
and the certificate request details (SAN values, instance id). On approval
the server returns the certificate attributes it granted.

With --local the request is evaluated against a local config file instead
of a running server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		confirmation := &core.InstanceConfirmation{
			Provider:        confirmProvider,
			Domain:          confirmDomain,
			Service:         confirmService,
			AttestationData: confirmToken,
			Attributes:      map[string]string{},
		}
		if confirmInstanceID != "" {
			confirmation.Attributes[core.AttrInstanceID] = confirmInstanceID
		}
		if confirmSanDNS != "" {
			confirmation.Attributes[core.AttrSanDNS] = confirmSanDNS
		}
		if confirmSanURI != "" {
			confirmation.Attributes[core.AttrSanURI] = confirmSanURI
		}

		if confirmLocal {
			return confirmLocally(cmd, confirmation)
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Info().Msgf("Submitting confirmation for %s.%s...", confirmDomain, confirmService)
		result, correlation, err := cli.ConfirmInstance(cmd.Context(), confirmation)
		if err != nil {
			return logError(err, correlation, "instance confirmation rejected")
		}

		logSuccess("instance confirmed")
		printAttributes(result.Attributes)
		return nil
	},
}

func confirmLocally(cmd *cobra.Command, confirmation *core.InstanceConfirmation) error {
	providers, err := f.GetLocalProviders(cmd.Context())
	if err != nil {
		return err
	}
	prov, ok := providers[confirmation.Provider]
	if !ok {
		return fmt.Errorf("provider %q not found in config", confirmation.Provider)
	}

	result, err := prov.ConfirmInstance(cmd.Context(), confirmation)
	if err != nil {
		return logError(err, "", "instance confirmation rejected")
	}

	logSuccess("instance confirmed")
	printAttributes(result.Attributes)
	return nil
}

func printAttributes(attributes map[string]string) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Attribute", "Value"})
	for key, value := range attributes {
		t.AppendRow(table.Row{bold(key), value})
	}
	applyTableFormat(t)
	t.Render()
}

func init() {
	rootCmd.AddCommand(confirmCmd)

	confirmCmd.Flags().StringVar(&confirmProvider, "provider", "", "Provider name handling the request")
	confirmCmd.Flags().StringVar(&confirmDomain, "domain", "", "Domain of the requesting workload")
	confirmCmd.Flags().StringVar(&confirmService, "service", "", "Service of the requesting workload")
	confirmCmd.Flags().StringVar(&confirmToken, "token", "", "Attestation token (OIDC ID token)")
	confirmCmd.Flags().StringVar(&confirmInstanceID, "instance-id", "", "Instance id of the certificate request")
	confirmCmd.Flags().StringVar(&confirmSanDNS, "san-dns", "", "Comma-separated sanDNS entries of the certificate request")
	confirmCmd.Flags().StringVar(&confirmSanURI, "san-uri", "", "Comma-separated sanURI entries of the certificate request")
	confirmCmd.Flags().BoolVar(&confirmLocal, "local", false, "Evaluate locally against a config file instead of a server")
	f.bindConfigFlag(confirmCmd.Flags())

	_ = confirmCmd.MarkFlagRequired("provider")
	_ = confirmCmd.MarkFlagRequired("domain")
	_ = confirmCmd.MarkFlagRequired("service")
	_ = confirmCmd.MarkFlagRequired("token")
}
