package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/saarzint/AI-Agents-Geoferry/internal/app"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/shutdown"
	"github.com/saarzint/AI-Agents-Geoferry/internal/services"
)

var (
	rootCmd = &cobra.Command{
		Use:          "ledgerctl",
		Short:        "Operate the admissions ledger and summaries from the command line",
		SilenceUsage: true,
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		RunE:  runMigrate,
	}
	balanceCmd = &cobra.Command{
		Use:   "balance [user-id]",
		Short: "Print a user's token balance",
		Args:  cobra.ExactArgs(1),
		RunE:  runBalance,
	}
	grantCmd = &cobra.Command{
		Use:   "grant [user-id] [tokens]",
		Short: "Credit tokens to a user's ledger",
		Args:  cobra.ExactArgs(2),
		RunE:  runGrant,
	}
	verifyCmd = &cobra.Command{
		Use:   "verify-ledger [user-id]",
		Short: "Replay usage entries and compare against the stored balance",
		Long:  `Replays the append-only usage log for one user, or every user with --all, and reports any ledger whose stored balance diverges.`,
		Args:  cobra.MaximumNArgs(1),
		RunE:  runVerify,
	}
	recomputeCmd = &cobra.Command{
		Use:   "recompute [user-id]",
		Short: "Rebuild the admissions summary for one user, or all with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRecompute,
	}
	tokenCmd = &cobra.Command{
		Use:   "agent-token [agent-name]",
		Short: "Issue a bearer token for an agent (requires AGENT_JWT_SECRET)",
		Args:  cobra.ExactArgs(1),
		RunE:  runAgentToken,
	}

	grantReason string
	allUsers    bool
	tokenTTL    time.Duration
	tokenRoles  []string
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(grantCmd)
	grantCmd.Flags().StringVar(&grantReason, "reason", "manual grant", "Reason recorded on the usage entry")
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().BoolVar(&allUsers, "all", false, "Verify every ledger")
	rootCmd.AddCommand(recomputeCmd)
	recomputeCmd.Flags().BoolVar(&allUsers, "all", false, "Recompute every cached summary")
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", services.DefaultAgentTokenTTL, "Token lifetime")
	tokenCmd.Flags().StringSliceVar(&tokenRoles, "role", nil, "Grant a role (operator, reviewer); repeatable")
}

func main() {
	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// withApp wires the application without starting the HTTP server or watchers.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	log, err := app.NewLogger()
	if err != nil {
		return err
	}
	cfg := app.LoadConfig(log)
	a, err := app.NewWithConfig(cmd.Context(), log, cfg)
	if err != nil {
		log.Sync()
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(_ context.Context, a *app.App) error {
		a.Log.Info("Migrations applied", "driver", a.Cfg.DB.Driver)
		return nil
	})
}

func runBalance(cmd *cobra.Command, args []string) error {
	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		balance, err := a.Services.Ledger.Balance(ctx, userID)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"user_id": userID, "balance": balance})
	})
}

func runGrant(cmd *cobra.Command, args []string) error {
	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	tokens, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("tokens: %w", err)
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		out, err := a.Services.Ledger.Grant(ctx, services.GrantInput{UserID: userID, Tokens: tokens, Reason: grantReason})
		if err != nil {
			return err
		}
		return printJSON(out)
	})
}

func runVerify(cmd *cobra.Command, args []string) error {
	if !allUsers && len(args) == 0 {
		return fmt.Errorf("pass a user id or --all")
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if allUsers {
			out, err := a.Services.Ledger.VerifyAll(ctx)
			if perr := printJSON(out); perr != nil {
				return perr
			}
			return err
		}
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		out, err := a.Services.Ledger.Verify(ctx, userID)
		if perr := printJSON(out); perr != nil {
			return perr
		}
		return err
	})
}

func runRecompute(cmd *cobra.Command, args []string) error {
	if !allUsers && len(args) == 0 {
		return fmt.Errorf("pass a user id or --all")
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if allUsers {
			changed, err := a.Services.Summaries.RecomputeAll(ctx)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"changed": changed})
		}
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		out, err := a.Services.Summaries.Recompute(ctx, userID)
		if err != nil {
			return err
		}
		return printJSON(out)
	})
}

func runAgentToken(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(_ context.Context, a *app.App) error {
		if !a.Services.AgentAuth.Enabled() {
			return fmt.Errorf("AGENT_JWT_SECRET is not set")
		}
		token, err := a.Services.AgentAuth.IssueToken(args[0], tokenTTL, tokenRoles...)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	})
}

func parseUserID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return uint(id), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
