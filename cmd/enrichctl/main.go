// Command enrichctl submits discovery batches to the enrichment service or
// runs the pipeline locally against a JSON file.
package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"github.com/octobees/leads-generator/enricher/internal/client"
)

var (
	apiURL     string
	apiToken   string
	useIDToken bool
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "enrichctl",
		Short:         "Enrich scraped business listings with website contacts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&apiURL, "url", envOr("ENRICHER_URL", "http://localhost:8090"), "base URL of the enrichment API")
	root.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("ENRICHER_TOKEN"), "bearer token for the enrichment API")
	root.PersistentFlags().BoolVar(&useIDToken, "id-token", false, "authenticate with a Google ID token (Cloud Run IAM)")

	root.AddCommand(newEnrichCommand(), newDedupeCommand(), newTokenCommand(), newHashSecretCommand())
	return root
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newClient(ctx context.Context) (*client.Client, error) {
	opts := []client.Option{client.WithBearerToken(apiToken)}
	if useIDToken {
		opts = append(opts, client.WithIDToken(ctx))
	}
	return client.New(apiURL, opts...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
