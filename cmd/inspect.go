package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ctyano/athenz-auth-core/internal/keys"
	tokenpkg "github.com/ctyano/athenz-auth-core/internal/token"
)

var (
	inspectJWKSURI  string
	inspectProvider string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [token]",
	Short: "Inspect an attestation token without contacting a server",
	Long: `Decodes an attestation token and displays its header and claims.
The signature is NOT verified unless --jwks-uri is given, in which case the
signing key is resolved from the given JWKS endpoint.`,
	Example: `  # Decode a token
  authcore inspect eyJhbGciOi...

  # Decode a token from stdin and verify its signature
  echo "$TOKEN" | authcore inspect --jwks-uri https://jenkins.example.com/oidc/jwks -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var token string

		if args[0] != "-" {
			token = args[0]
		} else {
			// read from stdin
			log.Debug().Msg("Reading token from stdin")

			data, err := os.ReadFile("/dev/stdin")
			if err != nil {
				return fmt.Errorf("failed to read token from stdin: %w", err)
			}
			token = strings.TrimSpace(string(data))
		}

		if token == "" {
			return fmt.Errorf("token cannot be empty")
		}

		parser := jwt.NewParser()
		claims := jwt.MapClaims{}
		parsed, _, err := parser.ParseUnverified(token, claims)
		if err != nil {
			return fmt.Errorf("parsing token: %w", err)
		}

		switch {
		case inspectProvider != "":
			if err := verifyAgainstProvider(cmd, token); err != nil {
				log.Error().Msgf("%s token validation failed: %v", redCross, err)
			} else {
				logSuccess("token passed the claims validation of provider %q", inspectProvider)
			}
		case inspectJWKSURI != "":
			if err := verifyAgainstJWKS(cmd.Context(), token, inspectJWKSURI); err != nil {
				log.Error().Msgf("%s signature verification failed: %v", redCross, err)
			} else {
				logSuccess("signature verified against %s", inspectJWKSURI)
			}
		default:
			log.Warn().Msg("signature NOT verified (pass --jwks-uri or --provider to verify)")
		}

		fmt.Println(bold("\n── Header ──"))
		printJSONTable(parsed.Header)

		fmt.Println(bold("\n── Claims ──"))
		printClaimsTable(claims)
		return nil
	},
}

// verifyAgainstProvider runs the full claims validation (signature against
// both trust sources, issuer, audience, freshness, subject) of a provider
// built from the local config file. The authorization stage is skipped;
// it needs a certificate request, not just a token.
func verifyAgainstProvider(cmd *cobra.Command, token string) error {
	providers, err := f.GetLocalProviders(cmd.Context())
	if err != nil {
		return err
	}
	p, ok := providers[inspectProvider]
	if !ok {
		return fmt.Errorf("provider %q not found in config", inspectProvider)
	}
	verifier, ok := p.(interface{ Validator() *tokenpkg.Validator })
	if !ok {
		return fmt.Errorf("provider %q does not support offline token validation", inspectProvider)
	}

	claims, err := verifier.Validator().Verify(token)
	if err != nil {
		return err
	}
	log.Info().Msgf("verified subject: %s (signed with key id %q)", claims.Subject, claims.KeyID)
	return nil
}

func verifyAgainstJWKS(ctx context.Context, token, jwksURI string) error {
	resolver := keys.NewResolver(jwksURI, &http.Client{Timeout: 10 * time.Second})
	if err := resolver.Refresh(ctx); err != nil {
		return fmt.Errorf("fetching JWKS: %w", err)
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{
		"RS256", "RS384", "RS512", "ES256", "ES384", "ES512",
	}))
	_, err := parser.Parse(token, resolver.Keyfunc)
	return err
}

func printJSONTable(values map[string]any) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t.AppendRow(table.Row{faint(name), formatClaimValue(name, values[name])})
	}
	applyTableFormat(t)
	t.Render()
}

func printClaimsTable(claims jwt.MapClaims) {
	printJSONTable(claims)
}

// formatClaimValue renders timestamps human-readable, everything else as JSON.
func formatClaimValue(name string, value any) string {
	switch name {
	case "iat", "exp", "nbf":
		if ts, ok := value.(float64); ok {
			at := time.Unix(int64(ts), 0).UTC()
			return fmt.Sprintf("%d (%s)", int64(ts), at.Format(time.RFC3339))
		}
	}
	marshalled, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(marshalled)
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVar(&inspectJWKSURI, "jwks-uri", "",
		"JWKS endpoint to verify the token signature against")
	inspectCmd.Flags().StringVar(&inspectProvider, "provider", "",
		"Run the claims validation of this configured provider (requires --config)")
	f.bindConfigFlag(inspectCmd.Flags())
}
