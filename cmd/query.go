// Package cmd provides the trafficslice command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"trafficslice/bootstrap"
	"trafficslice/config"
	"trafficslice/core"
	"trafficslice/search"
	"trafficslice/storage"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags for query commands
var (
	outputJSON bool
	outputYAML bool
	configFile string
	noColor    bool
	quiet      bool
)

const defaultTimeout = 2 * time.Minute

// timeParser resolves --since, --start and --end
var timeParser = search.NewTimeRangeParser(nil)

// NewQueryCmd returns the "query" command tree.
func NewQueryCmd() *cobra.Command {
	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Query alerts and alert analytics",
		Long: `Query the alert store directly, without going through the HTTP API.

Filters match case-insensitive substrings on text fields and exact or minimum
values on severity. Results print as a table, or as JSON/YAML for scripting.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				color.NoColor = true
			}
			if outputJSON && outputYAML {
				return fmt.Errorf("--json and --yaml cannot be combined")
			}
			return nil
		},
	}

	queryCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	queryCmd.PersistentFlags().BoolVar(&outputYAML, "yaml", false, "Output in YAML format")
	queryCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path (default: ./config.yaml or ./config/config.yaml)")
	queryCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	queryCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")

	queryCmd.AddCommand(newAlertsCmd())
	queryCmd.AddCommand(newAnalyticsCmd())
	queryCmd.AddCommand(newCountCmd())
	queryCmd.AddCommand(newLookupCmd("applications", "List applications that raised alerts", lookupApplications))
	queryCmd.AddCommand(newLookupCmd("destinations", "List alert destination domains", lookupDestinations))
	queryCmd.AddCommand(newLookupCmd("types", "List alert types", lookupTypes))
	queryCmd.AddCommand(newSeedCmd())

	return queryCmd
}

// predicateFlags are the row filters shared by alerts and analytics
type predicateFlags struct {
	alertName    string
	message      string
	application  string
	destination  string
	alertType    string
	severity     int
	minSeverity  int
	minTimestamp string
}

func (p *predicateFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&p.alertName, "alert-name", "", "Substring of the alert name")
	f.StringVar(&p.message, "message", "", "Substring of the alert message")
	f.StringVar(&p.application, "application", "", "Substring of the source application")
	f.StringVar(&p.destination, "destination", "", "Substring of the destination domain")
	f.StringVar(&p.alertType, "type", "", "Substring of the alert type")
	f.IntVar(&p.severity, "severity", 0, "Exact severity (1-5)")
	f.IntVar(&p.minSeverity, "min-severity", 0, "Minimum severity (1-5)")
	f.StringVar(&p.minTimestamp, "since", "", "Only alerts at or after this time (ISO-8601, \"last 24h\", \"now\")")
}

func (p *predicateFlags) predicates() (core.AlertPredicates, error) {
	for name, v := range map[string]int{"severity": p.severity, "min-severity": p.minSeverity} {
		if v != 0 && !core.ValidSeverity(v) {
			return core.AlertPredicates{}, fmt.Errorf("--%s must be between %d and %d, got %d",
				name, core.MinSeverity, core.MaxSeverity, v)
		}
	}
	since, err := timeParser.ResolveBound(p.minTimestamp)
	if err != nil {
		return core.AlertPredicates{}, fmt.Errorf("--since: %w", err)
	}
	return core.AlertPredicates{
		AlertName:         p.alertName,
		Message:           p.message,
		ApplicationFrom:   p.application,
		DestinationDomain: p.destination,
		Type:              p.alertType,
		Severity:          p.severity,
		MinSeverity:       p.minSeverity,
		MinTimestamp:      since,
	}, nil
}

// newAlertsCmd creates the 'alerts' subcommand
func newAlertsCmd() *cobra.Command {
	var (
		preds    predicateFlags
		offset   int
		pageSize int
		limit    int
		cursor   int
		orderBy  string
		order    string
	)

	cmd := &cobra.Command{
		Use:     "alerts",
		Aliases: []string{"ls"},
		Short:   "List alerts matching a filter",
		Long: `Display one page of alerts. Results are ordered by the chosen column, then by
timestamp descending. --limit/--cursor are accepted for older scripts and
cannot be combined with --offset/--page-size.`,
		Example: `  trafficslice query alerts --application billing --min-severity 4
  trafficslice query alerts --order-by timestamp --order asc --page-size 20 --offset 40`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := core.NewAlertFilter()
			var err error
			if filter.AlertPredicates, err = preds.predicates(); err != nil {
				return err
			}
			if orderBy != "" {
				filter.OrderBy = orderBy
			}
			if order != "" {
				filter.Order = strings.ToLower(order)
			}

			flags := cmd.Flags()
			if flags.Changed("offset") {
				filter.Offset = offset
			}
			if flags.Changed("page-size") {
				filter.SetPageSize(pageSize)
			}
			var legacy core.LegacyPagination
			if flags.Changed("limit") {
				legacy.Limit = &limit
			}
			if flags.Changed("cursor") {
				legacy.Cursor = &cursor
			}
			if err := filter.ApplyLegacy(legacy, flags.Changed("offset") || flags.Changed("page-size")); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			session, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer session.close()

			alerts, err := withSpinner(cmd, " Querying alerts...", func() ([]core.Alert, error) {
				return session.services.Alerts.GetAlerts(ctx, filter)
			})
			if err != nil {
				return fmt.Errorf("failed to fetch alerts: %w", err)
			}
			if alerts == nil {
				alerts = []core.Alert{}
			}

			if handled, err := outputStructured(cmd, alerts); handled {
				return err
			}
			renderAlertsTable(cmd.OutOrStdout(), alerts, filter)
			return nil
		},
	}

	preds.register(cmd)
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of alerts to skip")
	cmd.Flags().IntVar(&pageSize, "page-size", core.MaxAlerts, "Alerts per page")
	cmd.Flags().IntVar(&limit, "limit", 0, "Legacy alias of --page-size")
	cmd.Flags().IntVar(&cursor, "cursor", 0, "Legacy alias of --offset")
	cmd.Flags().StringVar(&orderBy, "order-by", core.FieldSeverity, "Sort column: "+strings.Join(core.AlertFields, ", "))
	cmd.Flags().StringVar(&order, "order", "desc", "Sort direction: asc or desc")

	return cmd
}

// newAnalyticsCmd creates the 'analytics' subcommand
func newAnalyticsCmd() *cobra.Command {
	var (
		preds     predicateFlags
		timeAxis  string
		dimension string
		startDate string
		endDate   string
	)

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Count alerts grouped by time bucket and dimension",
		Example: `  trafficslice query analytics --time day
  trafficslice query analytics --time month --dimension application --since 2024-01-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tg, err := core.ParseTimeGroupBy(timeAxis)
			if err != nil {
				return err
			}
			dg, err := core.ParseDimensionGroupBy(dimension)
			if err != nil {
				return err
			}
			start, err := timeParser.ResolveBound(startDate)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			end, err := timeParser.ResolveBound(endDate)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			filter := &core.AnalyticsFilter{
				TimeGroupBy:      tg,
				DimensionGroupBy: dg,
				StartDate:        start,
				EndDate:          end,
			}
			if filter.AlertPredicates, err = preds.predicates(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			session, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer session.close()

			points, err := withSpinner(cmd, " Aggregating alerts...", func() ([]core.AnalyticsDataPoint, error) {
				return session.services.Analytics.GetAlertAnalytics(ctx, filter)
			})
			if err != nil {
				return fmt.Errorf("failed to fetch alert analytics: %w", err)
			}
			if points == nil {
				points = []core.AnalyticsDataPoint{}
			}

			if handled, err := outputStructured(cmd, points); handled {
				return err
			}
			renderDataPointsTable(cmd.OutOrStdout(), points, filter)
			return nil
		},
	}

	preds.register(cmd)
	cmd.Flags().StringVar(&timeAxis, "time", string(core.TimeGroupByDay), "Time bucket: day, month or hour")
	cmd.Flags().StringVar(&dimension, "dimension", string(core.DimensionNone),
		"Second axis: application, type, severity, alert_name, destination or none")
	cmd.Flags().StringVar(&startDate, "start", "", "Inclusive lower timestamp bound (ISO-8601 or \"last 7d\")")
	cmd.Flags().StringVar(&endDate, "end", "", "Inclusive upper timestamp bound (ISO-8601 or \"now\")")

	return cmd
}

// newCountCmd creates the 'count' subcommand
func newCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the total number of stored alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			session, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer session.close()

			count, err := session.services.Lookups.GetTotalAlertCount(ctx)
			if err != nil {
				return fmt.Errorf("failed to count alerts: %w", err)
			}

			if handled, err := outputStructured(cmd, map[string]int64{"count": count}); handled {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		},
	}
}

type lookupFunc func(ctx context.Context, s *bootstrap.Services) ([]string, error)

func lookupApplications(ctx context.Context, s *bootstrap.Services) ([]string, error) {
	return s.Lookups.ListApplications(ctx)
}

func lookupDestinations(ctx context.Context, s *bootstrap.Services) ([]string, error) {
	return s.Lookups.ListDestinations(ctx)
}

func lookupTypes(ctx context.Context, s *bootstrap.Services) ([]string, error) {
	return s.Lookups.ListAlertTypes(ctx)
}

// newLookupCmd creates a subcommand printing one distinct-value list
func newLookupCmd(name, short string, lookup lookupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			session, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer session.close()

			values, err := lookup(ctx, session.services)
			if err != nil {
				return fmt.Errorf("failed to list %s: %w", name, err)
			}
			if values == nil {
				values = []string{}
			}

			if handled, err := outputStructured(cmd, values); handled {
				return err
			}
			renderList(cmd.OutOrStdout(), strings.ToUpper(name), values)
			return nil
		},
	}
}

// withSpinner runs fn behind a progress spinner on stderr when output is
// meant for a human.
func withSpinner[T any](cmd *cobra.Command, suffix string, fn func() (T, error)) (T, error) {
	if outputJSON || outputYAML || quiet {
		return fn()
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
	s.Suffix = suffix
	s.Start()
	defer s.Stop()
	return fn()
}

// querySession holds the services a command runs against.
type querySession struct {
	services *bootstrap.Services
	store    *storage.InstrumentedStore
	close    func()
}

// openSession loads configuration and connects the store and caches.
// The returned session must be closed.
func openSession(ctx context.Context) (*querySession, error) {
	cfg, err := config.LoadConfigFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Only errors reach the terminal; stdout carries results
	logger, sugar, err := bootstrap.InitLogger("error")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	tracer, tracerShutdown, err := bootstrap.InitTracer(cfg.Tracing, os.Stderr)
	if err != nil {
		return nil, err
	}

	store, err := bootstrap.InitStore(ctx, cfg, tracer, sugar)
	if err != nil {
		_ = tracerShutdown(ctx)
		return nil, err
	}
	cache := bootstrap.InitCache(ctx, cfg, sugar)

	cleanup := func() {
		if cache != nil {
			if err := cache.Close(); err != nil {
				sugar.Warnw("Failed to close Redis cache during cleanup", "error", err)
			}
		}
		if err := store.Close(); err != nil {
			sugar.Warnw("Failed to close store during cleanup", "error", err)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerShutdown(shutdownCtx); err != nil {
			sugar.Debugw("Failed to flush spans during cleanup", "error", err)
		}
		syncLogger(logger)
	}

	return &querySession{
		services: bootstrap.InitServices(store, cache, cfg, sugar),
		store:    store,
		close:    cleanup,
	}, nil
}

// syncLogger flushes logger; sync errors on terminals are expected and ignored
func syncLogger(logger *zap.Logger) {
	_ = logger.Sync()
}
