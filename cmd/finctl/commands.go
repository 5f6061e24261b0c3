package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/subcommands"

	"finview/internal/auth"
	"finview/internal/cli"
	"finview/internal/config"
	"finview/internal/core"
	"finview/internal/log"
	"finview/internal/view"
)

var commands = []subcommands.Command{
	&totalsCmd{},
	&ledgerCmd{},
	&estimateCmd{},
	&trendCmd{},
}

// env is what every command needs: the parsed ledger and a view builder.
type env struct {
	ledger *core.Ledger
	views  view.Builder
}

func loadEnv(ctx context.Context) (*env, error) {
	logger := log.New(log.Config{Level: slog.LevelWarn, Output: os.Stderr})
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reader, err := cli.NewLedgerReader(cfg, logger)
	if err != nil {
		return nil, err
	}
	token, err := accessToken(ctx, cfg)
	if err != nil {
		return nil, err
	}
	raw, err := reader.ReadLedger(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	tax, hourly, err := cfg.Rates()
	if err != nil {
		return nil, err
	}
	est, err := core.NewEstimator(tax, hourly)
	if err != nil {
		return nil, err
	}
	money, err := core.NewMoneyFormatter(cfg.Currency)
	if err != nil {
		return nil, err
	}
	return &env{ledger: core.NewLedger(raw), views: view.NewBuilder(est, money)}, nil
}

// accessToken returns the development token for the memory backend and the
// keyring token otherwise, refreshing it when expired.
func accessToken(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.DataBackend == "memory" {
		return auth.DevToken, nil
	}
	tok, err := auth.LoadToken()
	if errors.Is(err, auth.ErrNoStoredToken) {
		return "", errors.New("no stored token: run oauth-init first")
	}
	if err != nil {
		return "", err
	}
	if tok.Valid() || cfg.GoogleOAuthClientID == "" {
		return tok.AccessToken, nil
	}

	provider, err := auth.NewGoogleProvider(auth.GoogleConfig{
		ClientID:     cfg.GoogleOAuthClientID,
		ClientSecret: cfg.GoogleOAuthClientSecret,
		RedirectURL:  cfg.GoogleOAuthRedirectURL,
	})
	if err != nil {
		return "", err
	}
	fresh, err := provider.Refresh(ctx, tok)
	if err != nil {
		return "", err
	}
	if err := auth.SaveToken(fresh); err != nil {
		return "", fmt.Errorf("store refreshed token: %w", err)
	}
	return fresh.AccessToken, nil
}

func fail(w io.Writer, err error) subcommands.ExitStatus {
	fmt.Fprintln(w, styles.negative.Render("error:"), err)
	return subcommands.ExitFailure
}

type totalsCmd struct{}

func (*totalsCmd) Name() string     { return "totals" }
func (*totalsCmd) Synopsis() string { return "show the spending, savings and giving balances" }
func (*totalsCmd) Usage() string {
	return `finctl totals

  Prints the three category balances from the ledger's totals row.
`
}
func (*totalsCmd) SetFlags(*flag.FlagSet) {}

func (*totalsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := loadEnv(ctx)
	if err != nil {
		return fail(os.Stderr, err)
	}
	renderTotals(os.Stdout, e.views.Money, e.ledger.Totals())
	return subcommands.ExitSuccess
}

type ledgerCmd struct {
	category string
	query    string
	limit    int
}

func (*ledgerCmd) Name() string     { return "ledger" }
func (*ledgerCmd) Synopsis() string { return "list the ledger rows of a category, most recent first" }
func (*ledgerCmd) Usage() string {
	return `finctl ledger [-c <category>] [-q <search>] [-n <limit>]

  Lists rows with a non-zero amount in the category. The search term
  matches row names case-insensitively.
`
}

func (c *ledgerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.category, "c", "spending", "Category to list (spending, savings, giving).")
	f.StringVar(&c.query, "q", "", "Only show rows whose name contains this text.")
	f.IntVar(&c.limit, "n", 0, "Maximum number of rows to print (0 for all).")
}

func (c *ledgerCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cat, err := core.ParseCategory(c.category)
	if err != nil {
		return fail(os.Stderr, err)
	}
	e, err := loadEnv(ctx)
	if err != nil {
		return fail(os.Stderr, err)
	}
	renderLedger(os.Stdout, e.views.Ledger(e.ledger, cat, c.query), c.limit)
	return subcommands.ExitSuccess
}

type estimateCmd struct {
	price string
}

func (*estimateCmd) Name() string     { return "estimate" }
func (*estimateCmd) Synopsis() string { return "check whether a purchase fits the spending balance" }
func (*estimateCmd) Usage() string {
	return `finctl estimate -p <price>

  Adds sales tax to the sticker price and compares the total against the
  spending balance, expressing the cost in hours of work.
`
}

func (c *estimateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.price, "p", "", "Sticker price, e.g. 49.99 or $1,200.")
}

func (c *estimateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	price := core.ParseAmount(c.price)
	if !price.IsPositive() {
		return fail(os.Stderr, errors.New("price must be greater than zero"))
	}
	e, err := loadEnv(ctx)
	if err != nil {
		return fail(os.Stderr, err)
	}
	renderEstimate(os.Stdout, e.views.Estimate(price, e.ledger.Totals().Spending))
	return subcommands.ExitSuccess
}

type trendCmd struct {
	category string
}

func (*trendCmd) Name() string     { return "trend" }
func (*trendCmd) Synopsis() string { return "print the running balance of a category, oldest first" }
func (*trendCmd) Usage() string {
	return `finctl trend [-c <category>]
`
}

func (c *trendCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.category, "c", "spending", "Category to chart (spending, savings, giving).")
}

func (c *trendCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cat, err := core.ParseCategory(c.category)
	if err != nil {
		return fail(os.Stderr, err)
	}
	e, err := loadEnv(ctx)
	if err != nil {
		return fail(os.Stderr, err)
	}
	renderTrend(os.Stdout, view.BuildTrend(e.ledger, cat))
	return subcommands.ExitSuccess
}
