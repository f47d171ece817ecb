// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/fedsignin/exchange"
	"github.com/hashicorp/fedsignin/native"
	"github.com/hashicorp/fedsignin/native/loopback"
	"github.com/hashicorp/fedsignin/signin"
	"github.com/hashicorp/fedsignin/signin/sqlitestore"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

const (
	resolutionRequestCode = 1001
	consentRequestCode    = 1002
)

type loginFlags struct {
	issuer      string
	clientID    string
	scopes      []string
	target      string
	store       string
	timeout     time.Duration
	forcePrompt bool
	resume      bool
	printClaims bool
}

func newLoginCmd(g *globalFlags, open urlOpener) *cobra.Command {
	f := &loginFlags{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and print the session credential",
		Long: `Sign in through the identity platform's consent page in your browser,
check the granted scopes and exchange the platform token for a session
credential. The credential is printed to stdout as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := loadConfig(g.configPath)
			if err != nil {
				return err
			}
			f.apply(cmd, c)
			if err := c.validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger := newLogger(g.logLevel, cmd.ErrOrStderr())
			cred, err := login(cmd.Context(), c, loginIO{errOut: cmd.ErrOrStderr(), open: open, resume: f.resume}, logger)
			if err != nil {
				return err
			}
			return printCredential(cmd.OutOrStdout(), cmd.ErrOrStderr(), cred, f.printClaims)
		},
	}
	bindLoginFlags(cmd, f)
	return cmd
}

func bindLoginFlags(cmd *cobra.Command, f *loginFlags) {
	flags := cmd.Flags()
	flags.StringVar(&f.issuer, "issuer", "", "OIDC issuer of the identity platform (overrides issuer)")
	flags.StringVar(&f.clientID, "client-id", "", "OIDC client id (overrides client_id)")
	flags.StringSliceVar(&f.scopes, "scopes", nil, "comma separated scopes the user must grant (overrides scopes)")
	flags.StringVar(&f.target, "target", "", "identity API connection to exchange the token with (overrides exchange.target)")
	flags.StringVar(&f.store, "store", "", "SQLite database sessions are persisted in (overrides binding_store)")
	flags.DurationVar(&f.timeout, "timeout", 0, "how long to wait for the sign-in (overrides timeout)")
	flags.BoolVar(&f.forcePrompt, "select-account", false, "ask to select an account instead of reusing the last login")
	flags.BoolVar(&f.resume, "resume", false, "resume the sign-in persisted in the store, if any")
	flags.BoolVar(&f.printClaims, "print-claims", false, "print the claims of the issued ID token to stderr")
}

// apply overrides c with the flags which were set.
func (f *loginFlags) apply(cmd *cobra.Command, c *config) {
	changed := cmd.Flags().Changed
	if changed("issuer") {
		c.Issuer = f.issuer
	}
	if changed("client-id") {
		c.ClientID = f.clientID
	}
	if changed("scopes") {
		c.Scopes = f.scopes
	}
	if changed("target") {
		c.Exchange.Target = f.target
	}
	if changed("store") {
		c.BindingStore = f.store
	}
	if changed("timeout") {
		c.Timeout = f.timeout
	}
	if changed("select-account") {
		remember := !f.forcePrompt
		c.RememberLastLogin = &remember
	}
	c.setDefaults()
}

type loginIO struct {
	errOut io.Writer
	open   urlOpener
	resume bool
}

// login runs one sign-in flow to its outcome.
func login(ctx context.Context, c *config, lio loginIO, logger hclog.Logger) (*exchange.Credential, error) {
	const op = "login"
	lc, err := c.loopbackConfig()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	client, err := c.exchangeClient(logger.Named("exchange"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// orch is set before any platform is created, so before the handler can
	// be called
	var orch *signin.Orchestrator
	onRedirect := func(ctx context.Context, payload native.Payload) {
		if !orch.Resume(ctx, consentRequestCode, native.ResultOK, payload) {
			logger.Warn("sign-in redirect was not consumed")
		}
	}
	gf := native.ConsentGatewayFactory(
		loopback.Factory(lc, loopback.WithLogger(logger.Named("loopback")), loopback.WithResultHandler(onRedirect)),
		native.WithLogger(logger.Named("gateway")),
	)
	sc, err := signin.NewConfig(gf, client,
		signin.WithTarget(c.Exchange.Target),
		signin.WithScopes(c.Scopes...),
		signin.WithRememberLastLogin(*c.RememberLastLogin),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := []signin.Option{signin.WithLogger(logger.Named("signin"))}
	if c.BindingStore != "" {
		store, err := sqlitestore.Open(ctx, c.BindingStore, sqlitestore.WithLogger(logger.Named("store")))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		defer store.Close()
		if n, err := store.DeleteExpired(ctx, time.Now()); err != nil {
			logger.Warn("unable to delete expired sessions", "error", err)
		} else if n > 0 {
			logger.Debug("deleted expired sessions", "count", n)
		}
		opts = append(opts, signin.WithBindingStore(store))
	}
	orch, err = signin.NewOrchestrator(sc, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	successCh := make(chan *exchange.Credential, 1)
	failedCh := make(chan error, 1)
	recoveryCh := make(chan *native.RecoveryAction, 1)
	cb := signin.CallbackFuncs{
		Success:  func(cred *exchange.Credential) { successCh <- cred },
		Failure:  func(err error) { failedCh <- err },
		Recovery: func(a *native.RecoveryAction) { recoveryCh <- a },
	}
	host := native.HostFunc(func(_ context.Context, _ int, req *native.LaunchRequest) error {
		if req.Kind != native.LaunchConsent {
			return nil
		}
		fmt.Fprintf(lio.errOut, "Complete the sign-in in your browser. Launching browser to:\n\n    %s\n\n", req.URL)
		if err := lio.open(req.URL); err != nil {
			fmt.Fprintf(lio.errOut, "Error attempting to automatically open browser: '%s'.\nPlease visit the URL manually.\n", err)
		}
		return nil
	})

	resumed := false
	if lio.resume && c.BindingStore != "" {
		if resumed, err = orch.Reattach(ctx, host, cb); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if resumed {
			fmt.Fprintln(lio.errOut, "Resumed the previous sign-in, complete it in your browser.")
		}
	}
	if !resumed {
		if err := orch.Start(ctx, host, cb, resolutionRequestCode, consentRequestCode); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	keep := false
	defer func() {
		if keep {
			// frees the redirect listener for the resuming process
			orch.Suspend()
			return
		}
		if err := orch.Clear(context.Background()); err != nil {
			logger.Warn("unable to clear sign-in", "error", err)
		}
	}()

	timeout := time.NewTimer(c.Timeout)
	defer timeout.Stop()
	recoveries := 0
	for {
		select {
		case cred := <-successCh:
			return cred, nil
		case err := <-failedCh:
			return nil, err
		case a := <-recoveryCh:
			if recoveries >= c.MaxRecoveries {
				fmt.Fprintf(lio.errOut, "Sign-in provider unavailable (%s), giving up.\n", a.Status)
				orch.Resume(ctx, a.RequestCode, native.ResultCanceled, nil)
				continue
			}
			recoveries++
			fmt.Fprintf(lio.errOut, "Sign-in provider unavailable (%s), retrying in %s.\n", a.Status, c.RetryDelay)
			time.AfterFunc(c.RetryDelay, func() {
				orch.Resume(ctx, a.RequestCode, native.ResultOK, nil)
			})
		case <-ctx.Done():
			// a persisted session can be resumed later
			keep = c.BindingStore != ""
			return nil, fmt.Errorf("%s: interrupted: %w", op, ctx.Err())
		case <-timeout.C:
			return nil, fmt.Errorf("%s: timed out waiting for the sign-in to complete", op)
		}
	}
}

func printCredential(out, errOut io.Writer, cred *exchange.Credential, withClaims bool) error {
	const op = "printCredential"
	data, err := json.MarshalIndent(cred, "", "    ")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	fmt.Fprintf(out, "%s\n", data)
	if !withClaims || cred.IDToken == "" {
		return nil
	}
	claims, err := cred.IDTokenClaims()
	if err != nil {
		fmt.Fprintf(errOut, "IDToken claims: error parsing: %s\n", err)
		return nil
	}
	claimData, err := json.MarshalIndent(claims, "", "    ")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	fmt.Fprintf(errOut, "IDToken claims:%s\n", claimData)
	return nil
}
