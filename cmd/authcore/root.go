package main

import (
	"github.com/spf13/cobra"

	"github.com/MrEthical07/authcore/config"
)

type rootOptions struct {
	configFile string
	// env replaces the process environment when set; used by tests.
	env map[string]string
}

// NewRootCmd creates the root command for the authcore CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authcore",
		Short: "authcore - credential verification, lockout and token issuance",
		Long: `authcore verifies user credentials, enforces account lockout after repeated
failures and issues signed JWTs. Settings come from --config, AUTHCORE_*
environment variables and the flags below, in increasing precedence.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newIssueCmd(opts))
	cmd.AddCommand(newValidateCmd(opts))
	cmd.AddCommand(newUnlockCmd(opts))
	cmd.AddCommand(newHashPasswordCmd(opts))

	return cmd
}

func (o *rootOptions) loader(cmd *cobra.Command) config.Loader {
	return config.Loader{
		Path:  o.configFile,
		Flags: cmd.Root().PersistentFlags(),
		Env:   o.env,
	}
}
