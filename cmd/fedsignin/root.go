// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/fedsignin/signin"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

// Exit codes of the commands.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1

	// ExitCodeCancelled means the user cancelled the sign-in.
	ExitCodeCancelled = 2

	// ExitCodeSignInFailed means the sign-in ran and was refused: the
	// consent provider is unavailable, scopes were not granted or the
	// identity API rejected the exchange.
	ExitCodeSignInFailed = 3
)

type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd(open urlOpener) *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "fedsignin",
		Short: "Federated native sign-in",
		Long: `fedsignin signs you in with your identity platform's consent page and
exchanges the platform token for a session credential issued by the
identity API.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate(`{{printf "fedsignin version %s\n" .Version}}`)
	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to the YAML configuration file")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")
	cmd.AddCommand(newLoginCmd(g, open))
	return cmd
}

func execute(ctx context.Context, args []string, open urlOpener) int {
	cmd := newRootCmd(open)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
		return exitCode(err)
	}
	return ExitCodeSuccess
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.Is(err, signin.ErrUserCancelled):
		return ExitCodeCancelled
	case errors.Is(err, signin.ErrCapabilityUnavailable),
		errors.Is(err, signin.ErrScopesNotGranted),
		errors.Is(err, signin.ErrExchangeFailed),
		errors.Is(err, signin.ErrSignInFailed):
		return ExitCodeSignInFailed
	default:
		return ExitCodeError
	}
}

func newLogger(level string, w io.Writer) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "fedsignin",
		Level:  hclog.LevelFromString(level),
		Output: w,
	})
}
