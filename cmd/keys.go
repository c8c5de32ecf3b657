package cmd

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ctyano/athenz-auth-core/internal/keys"
)

var keysCmd = &cobra.Command{
	Use:   "keys JWKS_URI",
	Short: "Fetch and display the signing keys of a JWKS endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jwksURI := args[0]

		log.Info().Msgf("Fetching JWKS from %s...", jwksURI)
		resolver := keys.NewResolver(jwksURI, &http.Client{Timeout: 10 * time.Second})
		if err := resolver.Refresh(cmd.Context()); err != nil {
			return fmt.Errorf("fetching JWKS: %w", err)
		}

		kids := resolver.Keys()
		log.Info().Msgf("Endpoint serves %d signing keys", len(kids))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Key ID", "Type", "Size"})

		for _, kid := range kids {
			key, ok := resolver.ResolveKey(kid)
			if !ok {
				continue
			}

			keyType := "unknown"
			keySize := ""
			switch k := key.(type) {
			case *rsa.PublicKey:
				keyType = "RSA"
				keySize = fmt.Sprintf("%d bit", k.N.BitLen())
			case *ecdsa.PublicKey:
				keyType = "EC"
				keySize = k.Curve.Params().Name
			}

			t.AppendRow(table.Row{bold(kid), keyType, keySize})
		}

		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
}
