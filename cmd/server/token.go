package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warp/frontdesk/api"
	"github.com/warp/frontdesk/cashdesk"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <staff-id>",
		Short: "Mint a bearer token for a staff member",
		Long: `Print a signed access token for a registered, active staff member.

The role claim is taken from the directory, not from the command line.`,
		Args: cobra.ExactArgs(1),
		RunE: runToken,
	}
	cmd.Flags().Duration("ttl", 0, "token lifetime (default: auth.token_ttl)")
	return cmd
}

func runToken(cmd *cobra.Command, args []string) error {
	if err := cfg.RequireSecret(); err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	staff, err := store.LookupStaff(cmd.Context(), cashdesk.StaffID(args[0]))
	if err != nil {
		return fmt.Errorf("staff %s: %w", args[0], err)
	}
	if !staff.Active {
		return fmt.Errorf("staff %s is inactive", staff.ID)
	}

	ttl, _ := cmd.Flags().GetDuration("ttl")
	if ttl <= 0 {
		ttl = cfg.Auth.TokenTTL
	}

	token, err := api.IssueToken(api.AuthConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
		TTL:    ttl,
	}, staff)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
