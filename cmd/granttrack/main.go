// Command granttrack is the operator CLI for grants, chart of accounts,
// forecasts and actual expenses.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"granttrack/internal/amqp"
	"granttrack/internal/cli"
	"granttrack/internal/config"
	applog "granttrack/internal/log"
	"granttrack/internal/services"
	"granttrack/internal/storage"
)

// app holds what every subcommand needs. It is filled in by the root
// command's PersistentPreRunE, before any RunE executes.
type app struct {
	cfg    *config.Config
	logger *applog.Logger
	store  *storage.Store
	amqp   *amqp.Client

	grants     *services.GrantService
	chart      *services.ChartService
	forecast   *services.ForecastService
	expenses   *services.ExpenseService
	reconciler *services.Reconciler
}

func (a *app) open(ctx context.Context, stderr io.Writer, dbPath, level string) error {
	cli.LoadEnvFile()

	cfg := config.Load()
	if dbPath != "" {
		cfg.DataBackend = "sqlite"
		cfg.SQLiteDBPath = dbPath
	}
	if level != "" {
		cfg.LogLevel = level
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	lvl := applog.ParseLevel(cfg.LogLevel)
	a.logger = applog.New(applog.Config{
		Level:     lvl,
		Component: applog.ComponentApp,
		Handler:   slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: lvl}),
	})
	applog.SetDefault(a.logger)

	store, err := storage.Open(ctx, cli.StorageConfig(cfg))
	if err != nil {
		return err
	}
	a.store = store

	client, events, err := cli.OpenEvents(a.logger, cfg)
	if err != nil {
		a.logger.Warn("AMQP unavailable, continuing without events", "error", err)
	}
	a.amqp = client

	a.reconciler = services.NewReconciler(store)
	a.grants = services.NewGrantService(store, a.reconciler, events)
	a.chart = services.NewChartService(store, nil)
	a.forecast = services.NewForecastService(store, events)
	a.expenses = services.NewExpenseService(store, events)
	return nil
}

func (a *app) close() {
	if a.amqp != nil {
		_ = a.amqp.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

func newRootCmd(a *app) *cobra.Command {
	var dbPath, logLevel string

	root := &cobra.Command{
		Use:   "granttrack",
		Short: "Track grant budgets, monthly forecasts and actual spend.",
		Long: `granttrack manages grants, their budget line items and a QuickBooks-style
chart of accounts. It spreads each line item's allocation evenly over the
grant's months, records actual expenses and reconciles spend against budget.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context(), cmd.ErrOrStderr(), dbPath, logLevel)
		},
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides SQLITE_DB_PATH and DATA_BACKEND)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (overrides LOG_LEVEL)")

	root.AddCommand(
		newFunderCmd(a),
		newGrantCmd(a),
		newLineItemCmd(a),
		newCategoryCmd(a),
		newSubcategoryCmd(a),
		newCodeCmd(a),
		newChartCmd(a),
		newMapCmd(a),
		newForecastCmd(a),
		newExpenseCmd(a),
		newSummaryCmd(a),
	)
	return root
}

// run executes the CLI with args and releases the store afterwards.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}
