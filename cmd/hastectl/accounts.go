package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harshite737-crypto/haste/internal/config"
	"github.com/harshite737-crypto/haste/internal/identity"
	"github.com/harshite737-crypto/haste/internal/model"
	"github.com/harshite737-crypto/haste/internal/plans"
	"github.com/harshite737-crypto/haste/internal/quota"
	"github.com/harshite737-crypto/haste/internal/services"
	"github.com/harshite737-crypto/haste/internal/session"
	"github.com/harshite737-crypto/haste/internal/store"
	"github.com/harshite737-crypto/haste/internal/store/factory"
)

// backend is the service layer over the configured store, without HTTP.
type backend struct {
	accounts *services.AccountService
	usage    *services.UsageService
	close    func() error
}

func newBackend(st store.Store, catalog *plans.Catalog) *backend {
	grants := session.NewGrants()
	accounts := services.NewAccountService(st.Accounts(), catalog)
	q := quota.NewManager(st.Usage(), grants, zerolog.Nop())
	return &backend{
		accounts: accounts,
		usage:    services.NewUsageService(accounts, q, grants),
		close:    func() error { return nil },
	}
}

// openBackend reads the same HASTE_* environment as the server.
func openBackend(ctx context.Context) (*backend, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	st, closeFn, err := factory.NewStore(ctx, cfg, zerolog.Nop())
	if err != nil {
		return nil, err
	}
	catalog, err := plans.Load(cfg.PlansFile, cfg.DefaultPlan)
	if err != nil {
		_ = closeFn()
		return nil, err
	}
	b := newBackend(st, catalog)
	b.close = closeFn
	return b, nil
}

func withBackend(fn func(ctx context.Context, b *backend) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = b.close() }()
	return fn(ctx, b)
}

func runPlans(b *backend, out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PLAN\tMESSAGES/DAY\tMEDIA/DAY\tDELAY")
	for _, p := range b.accounts.Plans() {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, limit(p.MessagesPerDay), limit(p.MediaPerDay), delay(p))
	}
	return tw.Flush()
}

func limit(n int) string {
	if n == model.Unbounded {
		return "unlimited"
	}
	return fmt.Sprint(n)
}

func delay(p model.Plan) string {
	if p.DelayMax == 0 {
		return "none"
	}
	return fmt.Sprintf("%s-%s", p.DelayMin, p.DelayMax)
}

func runUsage(ctx context.Context, b *backend, id string, out io.Writer) error {
	v, err := b.usage.Usage(ctx, model.Identity(id))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runUpgrade(ctx context.Context, b *backend, id, plan string, out io.Writer) error {
	if err := b.accounts.Upgrade(ctx, model.Identity(id), plan); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%s upgraded to %s\n", id, plan)
	return nil
}

func runToken(secret, account, role string, ttl time.Duration, out io.Writer) error {
	if secret == "" {
		return fmt.Errorf("HASTE_JWT_SECRET is not set")
	}
	tok, err := identity.NewResolver(secret, "", 0, false).Issue(account, role, ttl)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, tok)
	return nil
}

func init() {
	plansCmd := &cobra.Command{
		Use:   "plans",
		Short: "List the plan catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(_ context.Context, b *backend) error {
				return runPlans(b, os.Stdout)
			})
		},
	}
	rootCmd.AddCommand(plansCmd)

	usageCmd := &cobra.Command{
		Use:   "usage IDENTITY",
		Short: "Show today's usage of an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(ctx context.Context, b *backend) error {
				return runUsage(ctx, b, args[0], os.Stdout)
			})
		},
	}
	rootCmd.AddCommand(usageCmd)

	upgradeCmd := &cobra.Command{
		Use:   "upgrade IDENTITY PLAN",
		Short: "Bind an identity to a plan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(func(ctx context.Context, b *backend) error {
				return runUpgrade(ctx, b, args[0], args[1], os.Stdout)
			})
		},
	}
	rootCmd.AddCommand(upgradeCmd)

	var role string
	var ttl time.Duration
	tokenCmd := &cobra.Command{
		Use:   "token ACCOUNT_ID",
		Short: "Issue a bearer token for an account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account := ""
			if len(args) == 1 {
				account = args[0]
			}
			if account == "" && role != identity.RoleOwner {
				return fmt.Errorf("ACCOUNT_ID required unless --role %s", identity.RoleOwner)
			}
			return runToken(os.Getenv("HASTE_JWT_SECRET"), account, role, ttl, os.Stdout)
		},
	}
	tokenCmd.Flags().StringVarP(&role, "role", "r", "", "Token role (\"owner\" lifts all limits)")
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
