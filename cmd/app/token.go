package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"subscription-api/internal/infra/api"
)

// newTokenCmd mints an access token signed with the configured secret.
// It is meant for local development and smoke tests.
func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		rights []string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a bearer token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			tok, err := api.NewAuthenticator(cfg.Auth).Issue(args[0], rights, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&rights, "rights", nil, "permissions to embed, e.g. subscriptions:admin,billing:webhook")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
