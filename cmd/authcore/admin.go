package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/authcore/jwt"
)

func newIssueCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "issue <username>",
		Short: "Issue a token for a user without a password check",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.loader(cmd))
			if err != nil {
				return err
			}
			defer a.Close()

			token, err := a.engine.IssueToken(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

type validateConfig struct {
	signatureOnly bool
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	cfg := &validateConfig{}

	cmd := &cobra.Command{
		Use:   "validate <token>",
		Short: "Validate a token and print its claims as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.loader(cmd))
			if err != nil {
				return err
			}
			defer a.Close()

			var claims *jwt.Claims
			if cfg.signatureOnly {
				claims, err = a.engine.ValidateToken(cmd.Context(), args[0], jwt.SignatureOnlyOptions())
			} else {
				claims, err = a.engine.ValidateTokenStrict(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(claims, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to format JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&cfg.signatureOnly, "signature-only", false, "verify the signature but skip lifetime, issuer and audience")

	return cmd
}

func newUnlockCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <username>",
		Short: "Reset a user's failed-attempt count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.loader(cmd))
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.engine.UnlockAccount(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unlocked %s\n", args[0])
			return nil
		},
	}
}
