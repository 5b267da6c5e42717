package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"moneymoved/internal/config"
	"moneymoved/internal/dataset"
	"moneymoved/internal/prompt"
	"moneymoved/internal/query"
	"moneymoved/internal/services/analytics"
	"moneymoved/internal/services/matcher"
	"moneymoved/internal/services/storage"
)

// environment is the analytics stack the query commands run against.
type environment struct {
	cfg     *config.Config
	catalog *config.Catalog
	store   *storage.Storage
	svc     *analytics.Service
}

// loadConfig applies the global flags over the MM_* environment.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if dataDir != "" {
		cfg.DataDirectory = dataDir
		cfg.CatalogFile = filepath.Join(dataDir, "catalog.yaml")
		cfg.AssetsFile = filepath.Join(dataDir, "assets.yaml")
	}
	if catalogFile != "" {
		cfg.CatalogFile = catalogFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openEnvironment registers the named catalogue datasets, or all of them
// when names is empty. A sealed data directory is unlocked first.
func openEnvironment(ctx context.Context, names ...string) (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cat, err := config.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	store, err := storage.New(cfg.DataDirectory)
	if err != nil {
		return nil, err
	}
	if store.IsSealed() {
		pass, err := prompt.Resolve(cfg.DataPassword)
		if err != nil {
			return nil, err
		}
		if err := store.Unlock(pass); err != nil {
			return nil, err
		}
	}

	sources := cat.Datasets
	if len(names) > 0 {
		sources = make(map[string]dataset.Source, len(names))
		for _, name := range names {
			if src, ok := cat.Datasets[name]; ok {
				sources[name] = src
			}
		}
	}

	opts := cfg.Options(cat)
	loader := dataset.NewFileLoader(store, opts.Calendar, logger.Named("loader"))
	svc := analytics.New(dataset.NewRegistry(loader, logger.Named("registry")), opts, logger.Named("analytics"))
	if err := svc.RegisterAll(ctx, sources); err != nil {
		return nil, err
	}
	logger.Debug("datasets registered", zap.Strings("datasets", svc.Datasets()))
	return &environment{cfg: cfg, catalog: cat, store: store, svc: svc}, nil
}

// assets loads the asset registry, empty when the file is missing.
func (e *environment) assets() (*matcher.AssetRegistry, error) {
	if _, err := os.Stat(e.cfg.AssetsFile); os.IsNotExist(err) {
		return matcher.NewAssetRegistry(), nil
	}
	return matcher.LoadAssetRegistry(e.cfg.AssetsFile, e.cfg.AssetsDirectory)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// chartFlags are shared by the chart commands.
type chartFlags struct {
	dataset string
	fy      int
	amount  string
	filters []string
}

func (f *chartFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.dataset, "dataset", "", "Dataset (default: the catalog's money moved dataset)")
	cmd.Flags().IntVar(&f.fy, "fy", 0, "Fiscal year (default: latest)")
	cmd.Flags().StringVar(&f.amount, "amount", "", "Amount selector: actual, cf or a column name")
	cmd.Flags().StringArrayVar(&f.filters, "filter", nil, "Extra filter column:op[:value], repeatable")
}

// chartRequest is the resolved form of chartFlags.
type chartRequest struct {
	env     *environment
	dataset string
	fy      int
	amount  analytics.Amount
	extra   []query.Clause
	filters []query.Clause
}

func (f *chartFlags) resolve(ctx context.Context, defaultDataset func(*config.Catalog) string) (*chartRequest, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cat, err := config.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	name := f.dataset
	if name == "" {
		name = defaultDataset(cat)
	}

	env, err := openEnvironment(ctx, name)
	if err != nil {
		return nil, err
	}
	req := &chartRequest{env: env, dataset: name, fy: f.fy}

	schema, err := env.svc.Schema(name)
	if err != nil {
		return nil, err
	}
	req.extra, err = parseFilters(schema, f.filters)
	if err != nil {
		return nil, err
	}
	req.amount, err = env.svc.Amount(f.amount)
	if err != nil {
		return nil, err
	}
	if req.fy == 0 {
		if years, err := env.svc.FiscalYears(name); err == nil && len(years) > 0 {
			req.fy = years[0]
		}
	}
	req.filters = append(env.svc.MoneyMovedFilters(req.fy), req.extra...)
	return req, nil
}

func moneyMoved(cat *config.Catalog) string { return cat.MoneyMoved }
func flowDataset(cat *config.Catalog) string { return cat.Flow }

func parseFilters(schema *dataset.Schema, raw []string) ([]query.Clause, error) {
	clauses := make([]query.Clause, 0, len(raw))
	for _, r := range raw {
		c, err := query.ParseFilter(schema, r)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", r, err)
		}
		clauses = append(clauses, c)
	}
	return clauses, nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func addQueryCommands(root *cobra.Command) {
	root.AddCommand(datasetsCmd(), describeCmd(), valuesCmd(), rowsCmd())
	root.AddCommand(cumulativeCmd(), trendCmd(), groupedCmd(), rankingCmd(), flowCmd(), calendarCmd(), overviewCmd())
	root.AddCommand(matchCmd())
}

func datasetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List the catalog datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			env, err := openEnvironment(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			pathWidth := prompt.Width(out, 120) / 3
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tROWS\tCOLUMNS\tPATH\tLOADED")
			for _, name := range env.svc.Datasets() {
				info, err := env.svc.Describe(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					info.Name,
					humanize.Comma(int64(info.Rows)),
					len(info.Columns),
					shorten(info.Path, pathWidth),
					humanize.Time(info.LoadedAt))
			}
			return w.Flush()
		},
	}
}

// shorten keeps the tail of s within width runes.
func shorten(s string, width int) string {
	r := []rune(s)
	if width < 4 || len(r) <= width {
		return s
	}
	return "..." + string(r[len(r)-width+3:])
}

func describeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe DATASET",
		Short: "Print the schema of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			env, err := openEnvironment(ctx, args[0])
			if err != nil {
				return err
			}
			info, err := env.svc.Describe(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}
}

func valuesCmd() *cobra.Command {
	var desc, count bool
	cmd := &cobra.Command{
		Use:   "values DATASET COLUMN",
		Short: "Print the distinct values of a column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			env, err := openEnvironment(ctx, args[0])
			if err != nil {
				return err
			}
			if count {
				n, err := env.svc.UniqueCount(args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			}
			values, err := env.svc.UniqueValues(args[0], args[1], desc)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), values)
		},
	}
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	cmd.Flags().BoolVar(&count, "count", false, "Print the distinct count, null included")
	return cmd
}

func rowsCmd() *cobra.Command {
	var (
		filters []string
		columns []string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "rows DATASET",
		Short: "Print the rows matching the filters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			env, err := openEnvironment(ctx, args[0])
			if err != nil {
				return err
			}
			schema, err := env.svc.Schema(args[0])
			if err != nil {
				return err
			}
			clauses, err := parseFilters(schema, filters)
			if err != nil {
				return err
			}
			frame, err := env.svc.Query(args[0], clauses, columns)
			if err != nil {
				return err
			}
			view, err := frame.Collect()
			if err != nil {
				return err
			}
			records := view.Records()
			if limit >= 0 && limit < len(records) {
				records = records[:limit]
			}
			return printJSON(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "Filter column:op[:value], repeatable")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Columns to keep, in order")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows to print; negative prints all")
	return cmd
}

func cumulativeCmd() *cobra.Command {
	var (
		f      chartFlags
		target float64
	)
	cmd := &cobra.Command{
		Use:   "cumulative",
		Short: "Cumulative progress towards the fundraising target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			req, err := f.resolve(ctx, moneyMoved)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("target") {
				target = req.amount.Target
			}
			out, err := req.env.svc.CumulativeSeries(req.dataset, req.filters, req.amount.Column, target)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	f.bind(cmd)
	cmd.Flags().Float64Var(&target, "target", 0, "Target (default: the amount's configured target)")
	return cmd
}

func trendCmd() *cobra.Command {
	var (
		f     chartFlags
		split string
	)
	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Monthly totals, optionally split by a column",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			req, err := f.resolve(ctx, moneyMoved)
			if err != nil {
				return err
			}
			out, err := req.env.svc.TrendSeries(req.dataset, req.filters, req.amount.Column, split)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&split, "split", "", "Column to split the series by")
	return cmd
}

func groupedCmd() *cobra.Command {
	var (
		f     chartFlags
		group string
	)
	cmd := &cobra.Command{
		Use:   "grouped",
		Short: "Monthly recurring versus one-time totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			req, err := f.resolve(ctx, moneyMoved)
			if err != nil {
				return err
			}
			out, err := req.env.svc.GroupedSeries(req.dataset, req.filters, req.amount.Column, group)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&group, "group", "", "Frequency column (default: the configured one)")
	return cmd
}

func rankingCmd() *cobra.Command {
	var (
		f     chartFlags
		prior int
		topN  int
	)
	cmd := &cobra.Command{
		Use:   "ranking",
		Short: "Top entities of a fiscal year against the prior one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			req, err := f.resolve(ctx, moneyMoved)
			if err != nil {
				return err
			}
			if prior == 0 {
				prior = req.fy - 1
			}
			assets, err := req.env.assets()
			if err != nil {
				return err
			}
			out, err := req.env.svc.TopNRanking(req.dataset, analytics.RankingRequest{
				Filters:      req.extra,
				AmountColumn: req.amount.Column,
				Current:      req.fy,
				Prior:        prior,
				TopN:         topN,
				Assets:       assets,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	f.bind(cmd)
	cmd.Flags().IntVar(&prior, "prior-fy", 0, "Fiscal year to compare against (default: fy-1)")
	cmd.Flags().IntVar(&topN, "top-n", 0, "Entities to keep (default: configured; negative keeps all)")
	return cmd
}

func flowCmd() *cobra.Command {
	var (
		dataset string
		fy      int
		mode    string
		target  float64
		filters []string
	)
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Entity to frequency to outcome flow of active pledges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dataset == "" {
				cat, err := config.LoadCatalog(cfg.CatalogFile)
				if err != nil {
					return err
				}
				dataset = flowDataset(cat)
			}
			env, err := openEnvironment(ctx, dataset)
			if err != nil {
				return err
			}
			schema, err := env.svc.Schema(dataset)
			if err != nil {
				return err
			}
			extra, err := parseFilters(schema, filters)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("target") {
				target = env.svc.Options().FlowAmount.Target
			}
			out, err := env.svc.FlowAggregation(dataset, append(env.svc.FlowYearFilters(fy), extra...), mode, target)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", "", "Dataset (default: the catalog's flow dataset)")
	cmd.Flags().IntVar(&fy, "fy", 0, "Pledge start fiscal year (default: all)")
	cmd.Flags().StringVar(&mode, "mode", "actual", "actual or target")
	cmd.Flags().Float64Var(&target, "target", 0, "Target (default: the configured ARR target)")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "Extra filter column:op[:value], repeatable")
	return cmd
}

func calendarCmd() *cobra.Command {
	var f chartFlags
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Day of week by fiscal week heatmap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			req, err := f.resolve(ctx, moneyMoved)
			if err != nil {
				return err
			}
			out, err := req.env.svc.CalendarPivot(req.dataset, req.filters, req.amount.Column)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	f.bind(cmd)
	return cmd
}

func overviewCmd() *cobra.Command {
	var f chartFlags
	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Headline KPIs, progress and heatmap for a fiscal year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			req, err := f.resolve(ctx, moneyMoved)
			if err != nil {
				return err
			}
			out, err := req.env.svc.Overview(ctx, req.dataset, req.fy, req.amount.Key)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	f.bind(cmd)
	return cmd
}

func matchCmd() *cobra.Command {
	var fallback bool
	cmd := &cobra.Command{
		Use:   "match NAME...",
		Short: "Resolve entity names against the asset registry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			env := &environment{cfg: cfg}
			reg, err := env.assets()
			if err != nil {
				return err
			}
			m := matcher.Heuristic{UseFallback: fallback}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tASSET\tSTRATEGY")
			for _, name := range args {
				res, ok := m.Match(name, reg)
				if !ok {
					fmt.Fprintf(w, "%s\t-\t-\n", name)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, res.Asset, strings.ToLower(string(res.Strategy)))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&fallback, "fallback", false, "Return an initials placeholder when nothing matches")
	return cmd
}
