package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/spendsense/operator-console/internal/auth"
	"github.com/spendsense/operator-console/internal/config"
)

func newLoginCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an operator token",
		Long: `Store the operator bearer token used for every API call and realtime
channel. Pass --token - to read it from stdin.

A running dashboard picks up the new token without a restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "-" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read token from stdin: %w", err)
				}
				token = line
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return errors.New("a token is required: spendsense login --token <token>")
			}

			e, err := loadEnv(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := e.tokens.Save(token); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, successStyle.Render("✅ Token saved"))
			if claims, err := auth.ParseClaims(token); err == nil {
				if claims.Subject != "" {
					fmt.Fprintf(out, "   Operator: %s\n", claims.Subject)
				}
				if claims.Expired(time.Now()) {
					fmt.Fprintln(out, errorStyle.Render("   Warning: this token has already expired"))
				}
			}
			if e.tokens.FromEnvironment() {
				fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("   Note: %s is set and takes precedence over the saved token", config.EnvToken)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Operator bearer token, or - to read stdin")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored operator token",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := e.tokens.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✅ Logged out"))
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and authentication status",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, titleStyle.Render("📊 SpendSense Console Status"))

	// Authentication status
	token := e.tokens.Token()
	switch {
	case token == "":
		fmt.Fprintln(out, "🔐 Authentication: ❌ Not logged in")
		fmt.Fprintln(out, "   Run 'spendsense login --token <token>' to authenticate")
	default:
		source := "token file"
		if e.tokens.FromEnvironment() {
			source = config.EnvToken
		}
		fmt.Fprintf(out, "🔐 Authentication: ✅ Token from %s\n", source)
		claims, err := auth.ParseClaims(token)
		if err != nil {
			fmt.Fprintln(out, dimStyle.Render("   Opaque token (no readable claims)"))
			break
		}
		if claims.Subject != "" {
			fmt.Fprintf(out, "   Operator: %s\n", claims.Subject)
		}
		if !claims.ExpiresAt.IsZero() {
			if claims.Expired(time.Now()) {
				fmt.Fprintln(out, errorStyle.Render("   Expired "+humanize.Time(claims.ExpiresAt)))
			} else {
				fmt.Fprintf(out, "   Expires %s\n", humanize.Time(claims.ExpiresAt))
			}
		}
	}
	fmt.Fprintln(out)

	// Backend
	fmt.Fprintf(out, "🌐 API: %s\n", e.cfg.APIOrigin)
	if token != "" {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if st, err := e.client().GetStats(ctx); err != nil {
			fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("   Unreachable: %v", explain(err))))
		} else {
			fmt.Fprintf(out, "   Reachable, %s pending recommendations\n", humanize.Comma(int64(st.Pending)))
		}
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "📁 Config file: %s\n", e.paths.ConfigFile)
	fmt.Fprintf(out, "📝 Logs:        %s\n", e.paths.LogDir)
	return nil
}
