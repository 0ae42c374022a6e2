package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/octobees/leads-generator/enricher/internal/auth"
	"github.com/octobees/leads-generator/enricher/internal/service"
)

func newTokenCommand() *cobra.Command {
	var clientID, secret string
	var mint bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Obtain a bearer token for the enrichment API",
		Long: `Exchanges client credentials at /auth/token, or with --mint signs an
admin token locally using JWT_SECRET.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mint {
				manager := auth.NewJWTManager(os.Getenv("JWT_SECRET"), 0)
				if !manager.Enabled() {
					return fmt.Errorf("JWT_SECRET must be set to mint tokens")
				}
				if clientID == "" {
					clientID = "enrichctl"
				}
				token, err := manager.GenerateToken(clientID, auth.RoleAdmin)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			}

			if clientID == "" || secret == "" {
				return fmt.Errorf("--client and --secret are required")
			}
			c, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := c.Token(cmd.Context(), clientID, secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.AccessToken)
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client", "", "client id")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("ENRICHER_CLIENT_SECRET"), "client secret")
	cmd.Flags().BoolVar(&mint, "mint", false, "sign an admin token locally with JWT_SECRET")
	return cmd
}

func newHashSecretCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret <secret>",
		Short: "Print the bcrypt hash to place in API_CLIENTS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := service.HashSecret(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
