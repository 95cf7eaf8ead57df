package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/viniciusnovato/finance-sub000/internal/auth"
	"github.com/viniciusnovato/finance-sub000/internal/config"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			authn, err := auth.New(cfg.JWTSecret, cfg.JWTIssuer)
			if err != nil {
				return err
			}

			token, err := authn.Issue(subject, auth.Role(role), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject, usually an email")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleViewer), "admin, analyst or viewer")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
