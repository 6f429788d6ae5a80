package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/authfront/internal/config"
	"github.com/vango-dev/authfront/pkg/auth/sessionauth"
	"github.com/vango-dev/authfront/pkg/backend"
)

func checkCmd() *cobra.Command {
	var (
		path   string
		cookie string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Dry-run the request gate for a path",
		Long: `Evaluate the request gate for a path and optional session cookie
value, exactly as the web app would, and print the decision.`,
		Example: `  authfront check --path /protected
  authfront check --path "/login?redirect=/protected" --cookie "$TOKEN"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client, err := backend.New(cfg.APIURL)
			if err != nil {
				return err
			}
			return runCheck(cmd.Context(), cmd.OutOrStdout(), cfg, client, path, cookie)
		},
	}

	cmd.Flags().StringVar(&path, "path", "/", "Request path, with optional query")
	cmd.Flags().StringVar(&cookie, "cookie", "", "Session cookie value")

	return cmd
}

func newGate(cfg *config.Config, validator sessionauth.Validator) *sessionauth.Gate {
	policy := sessionauth.DefaultPolicy()
	policy.Protected = cfg.ProtectedRoutes
	policy.AuthOnly = cfg.AuthRoutes
	return sessionauth.New(validator,
		sessionauth.WithCookieName(cfg.SessionCookieName),
		sessionauth.WithRefreshCookieName(cfg.RefreshCookieName),
		sessionauth.WithPolicy(policy),
		sessionauth.WithTimeout(cfg.ValidateTimeout),
	)
}

func runCheck(ctx context.Context, out io.Writer, cfg *config.Config, validator sessionauth.Validator, path, cookie string) error {
	target, err := url.ParseRequestURI(path)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	gate := newGate(cfg, validator)
	var session *http.Cookie
	if cookie != "" {
		session = &http.Cookie{Name: gate.CookieName(), Value: cookie}
	}

	d := gate.Evaluate(ctx, target, session)

	fmt.Fprintf(out, "path:          %s\n", d.Path)
	fmt.Fprintf(out, "class:         %s\n", d.Class)
	fmt.Fprintf(out, "validation:    %s\n", d.Validation)
	fmt.Fprintf(out, "authenticated: %t\n", d.Verdict.Authenticated)
	if d.Verdict.User != nil {
		fmt.Fprintf(out, "user:          %s\n", d.Verdict.User.Email)
	}
	fmt.Fprintf(out, "action:        %s\n", d.Action)
	if d.Location != "" {
		fmt.Fprintf(out, "location:      %s\n", d.Location)
	}
	if d.ClearCookies {
		fmt.Fprintf(out, "clear cookies: %s, %s\n", cfg.SessionCookieName, cfg.RefreshCookieName)
	}
	if d.Err != nil {
		fmt.Fprintf(out, "error:         %v\n", d.Err)
	}
	if d.Validation != sessionauth.ValidationSkipped {
		fmt.Fprintf(out, "elapsed:       %s\n", d.Elapsed.Round(time.Millisecond))
	}
	return nil
}
