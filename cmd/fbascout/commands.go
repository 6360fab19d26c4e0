package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/guarzo/fbascout/internal/analysis"
	"github.com/guarzo/fbascout/internal/api"
	"github.com/guarzo/fbascout/internal/bulk"
	"github.com/guarzo/fbascout/internal/fees"
	"github.com/guarzo/fbascout/internal/history"
	"github.com/guarzo/fbascout/internal/identifier"
	"github.com/guarzo/fbascout/internal/model"
	"github.com/guarzo/fbascout/internal/monitoring"
	"github.com/guarzo/fbascout/internal/progress"
	"github.com/guarzo/fbascout/internal/report"
	"github.com/guarzo/fbascout/internal/schedule"
)

// saveTimeout bounds report writes that happen after the run context may
// already be cancelled.
const saveTimeout = 10 * time.Second

func runBatch(ctx context.Context, args []string, out io.Writer) error {
	fs, g := newFlagSet("batch")
	file := fs.String("file", "", "read identifiers from file, one per line ('-' for stdin)")
	csvPath := fs.String("csv", "", "write results as CSV to path")
	xlsxPath := fs.String("xlsx", "", "write results as an Excel workbook to path")
	save := fs.Bool("save", false, "store the run in the run history database")
	quiet := fs.Bool("quiet", false, "suppress the progress bar")
	cost := fs.Float64("cost", 0, "product cost per pack (overrides config)")
	units := fs.Int("units", 0, "units per pack (overrides config)")
	fresh := fs.Bool("fresh", false, "clear cached lookups before the run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := g.setup()
	if err != nil {
		return err
	}

	ids := fs.Args()
	switch *file {
	case "":
	case "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		ids = append(ids, identifier.Parse(string(data))...)
	default:
		more, err := schedule.FileSource(*file)()
		if err != nil {
			return err
		}
		ids = append(ids, more...)
	}

	profile := cfg.Costs
	if *cost > 0 {
		profile.ProductCost = *cost
	}
	if *units > 0 {
		profile.UnitsPerPack = *units
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := a.processor.Check(ids); err != nil {
		return err
	}
	if *fresh {
		if err := a.cache.Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
	}

	indicator := progress.ForBatch(os.Stderr, len(ids), *quiet)
	indicator.Start()
	rep, err := a.processor.RunBatch(ctx, ids, profile, indicator.Observe)
	if err != nil {
		return err
	}

	report.PrintBulkTable(out, rep)
	stats := a.analytics.Stats()
	slog.Debug("analytics cache", "hits", stats.Hits, "misses", stats.Misses, "items", stats.Items, "hit_rate", stats.HitRate())

	if *csvPath != "" {
		if err := writeFile(*csvPath, func(w io.Writer) error { return report.WriteBulkCSV(w, rep.Items) }); err != nil {
			return err
		}
		slog.Info("wrote csv", "path", *csvPath, "rows", len(rep.Items))
	}
	if *xlsxPath != "" {
		if err := writeFile(*xlsxPath, func(w io.Writer) error { return report.WriteBulkXLSX(w, rep.Items) }); err != nil {
			return err
		}
		slog.Info("wrote xlsx", "path", *xlsxPath, "rows", len(rep.Items))
	}
	if *save {
		store, err := a.openStore()
		if err != nil {
			return err
		}
		saveCtx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := store.SaveReport(saveCtx, rep); err != nil {
			return err
		}
		slog.Info("run saved", "id", rep.ID)
	}
	return nil
}

func runFees(_ context.Context, args []string, out io.Writer) error {
	fs, g := newFlagSet("fees")
	var in model.FeeInputs
	fs.Float64Var(&in.SellPrice, "price", 0, "selling price")
	fs.Float64Var(&in.ProductCost, "cost", 0, "product cost per pack")
	fs.Float64Var(&in.ShippingCost, "shipping", 0, "inbound shipping per pack")
	fs.Float64Var(&in.PrepCost, "prep", 0, "prep cost per pack")
	fs.IntVar(&in.UnitsPerPack, "units", 1, "units per pack")
	fs.Float64Var(&in.Weight, "weight", 0, "item weight in pounds")
	fs.Float64Var(&in.Length, "length", 0, "length in inches")
	fs.Float64Var(&in.Width, "width", 0, "width in inches")
	fs.Float64Var(&in.Height, "height", 0, "height in inches")
	fs.Float64Var(&in.TaxRate, "tax", 0, "sales tax rate as a fraction")
	fs.Float64Var(&in.CustomFees, "custom", 0, "other per-unit fees")
	category := fs.String("category", "", "product category")
	useProfile := fs.Bool("profile", false, "take unset cost flags from the configured cost profile")
	asJSON := fs.Bool("json", false, "print the result as JSON")
	why := fs.Bool("why", false, "explain the fee inputs and the opportunity score")
	rank := fs.Int64("rank", 0, "sales rank, for the --why score")
	offers := fs.Int("offers", 0, "competing offers, for the --why score")
	if err := fs.Parse(args); err != nil {
		return err
	}
	in.Category = model.ParseCategory(*category)

	if *useProfile {
		cfg, err := g.setup()
		if err != nil {
			return err
		}
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		fillFromProfile(&in, cfg.Costs, set)
	}

	result, err := fees.ComputeChecked(in)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if *why {
		billable := math.Max(in.Weight, in.Length*in.Width*in.Height/fees.DimensionalDivisor)
		fmt.Fprintf(out, "category: %s (referral %.0f%%)\n", in.Category, fees.ReferralRate(in.Category)*100)
		fmt.Fprintf(out, "billable weight: %.2f lb\n", billable)
		fmt.Fprintf(out, "oversize: %t\n", fees.IsOversize(in.Length, in.Width, in.Height))
		b := analysis.Explain(model.AnalyticsRecord{
			Category:    in.Category,
			BuyBoxPrice: in.SellPrice,
			SalesRank:   *rank,
			OfferCount:  *offers,
			Fees:        result,
		})
		fmt.Fprintf(out, "score: %.1f (%s)\n", b.Total, b)
	}
	report.PrintFees(out, result)
	return nil
}

func fillFromProfile(in *model.FeeInputs, p model.CostProfile, set map[string]bool) {
	if !set["cost"] {
		in.ProductCost = p.ProductCost
	}
	if !set["shipping"] {
		in.ShippingCost = p.ShippingCost
	}
	if !set["prep"] {
		in.PrepCost = p.PrepCost
	}
	if !set["units"] {
		in.UnitsPerPack = p.UnitsPerPack
	}
	if !set["tax"] {
		in.TaxRate = p.TaxRate
	}
	if !set["custom"] {
		in.CustomFees = p.CustomFees
	}
}

func runClassify(_ context.Context, args []string, out io.Writer) error {
	fs, _ := newFlagSet("classify")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ids := fs.Args()
	if len(ids) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		ids = identifier.Parse(string(data))
	}

	table := tablewriter.NewWriter(out)
	table.Header("Input", "Kind", "Normalized")
	for _, raw := range ids {
		kind, id := identifier.Classify(raw)
		table.Append(raw, kind.String(), id)
	}
	table.Render()
	return nil
}

type historyOutput struct {
	ASIN      string               `json:"asin,omitempty"`
	Points    []model.HistoryPoint `json:"points"`
	Summary   history.Summary      `json:"summary"`
	Anomalies []string             `json:"anomalies,omitempty"`
}

func runHistory(ctx context.Context, args []string, out io.Writer) error {
	fs, g := newFlagSet("history")
	feedPath := fs.String("feed", "", "decode a raw feed JSON file instead of fetching from Keepa")
	primary := fs.String("primary", "", "channel whose offsets become timestamps (default: first non-empty)")
	asJSON := fs.Bool("json", false, "print points, summary and anomalies as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := g.setup()
	if err != nil {
		return err
	}

	var (
		feed history.RawFeed
		asin string
	)
	if *feedPath != "" {
		data, err := os.ReadFile(*feedPath)
		if err != nil {
			return fmt.Errorf("read feed: %w", err)
		}
		if err := json.Unmarshal(data, &feed); err != nil {
			return fmt.Errorf("parse feed %s: %w", *feedPath, err)
		}
	} else {
		if fs.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "history: exactly one ASIN or --feed is required")
			return errUsage
		}
		kind, id := identifier.Classify(fs.Arg(0))
		if kind != identifier.ASIN {
			return fmt.Errorf("history: %q is not an ASIN", fs.Arg(0))
		}
		asin = id

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer closeApp(a)
		if feed, err = a.keepa.FetchRawHistoryFeed(ctx, asin); err != nil {
			return err
		}
	}

	points := history.Decoder{Primary: history.Channel(*primary)}.Decode(feed)
	result := historyOutput{
		ASIN:    asin,
		Points:  points,
		Summary: history.Summarize(points, time.Now()),
	}
	for _, a := range history.Inspect(feed) {
		result.Anomalies = append(result.Anomalies, a.String())
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	for _, a := range result.Anomalies {
		fmt.Fprintf(out, "warning: %s\n", a)
	}
	report.PrintHistorySummary(out, result.Summary)
	return nil
}

func runServe(ctx context.Context, args []string, _ io.Writer) error {
	fs, g := newFlagSet("serve")
	addr := fs.String("addr", "", "listen address (overrides config)")
	watch := fs.Bool("watch", false, "also run the watchlist on its schedule")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := g.setup()
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer closeApp(a)

	store, err := a.openStore()
	if err != nil {
		return err
	}

	if *watch {
		w := newWatcher(a, cfg.Watch.File, os.Stdout, "")
		if err := w.Start(ctx, cfg.Watch.Schedule); err != nil {
			return err
		}
		defer w.Stop()
	}

	srv := api.NewServer(api.Options{
		Processor: a.processor,
		Profile:   cfg.Costs,
		Store:     store,
		Feeds:     a.keepa,
		Metrics:   a.metrics,
		JobTTL:    cfg.HTTP.JobTTL,
	})
	return srv.ListenAndServe(ctx, cfg.HTTP.Addr)
}

func runWatch(ctx context.Context, args []string, out io.Writer) error {
	fs, g := newFlagSet("watch")
	once := fs.Bool("once", false, "run the watchlist once and exit")
	file := fs.String("file", "", "watchlist file (overrides config)")
	spec := fs.String("schedule", "", "cron schedule (overrides config)")
	alertsCSV := fs.String("alerts-csv", "", "write each run's alert report as CSV to path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := g.setup()
	if err != nil {
		return err
	}
	if *file != "" {
		cfg.Watch.File = *file
	}
	if *spec != "" {
		cfg.Watch.Schedule = *spec
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer closeApp(a)

	w := newWatcher(a, cfg.Watch.File, out, *alertsCSV)
	if *once {
		_, _, err := w.RunOnce(ctx)
		return err
	}

	if err := w.Start(ctx, cfg.Watch.Schedule); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

// newWatcher builds a watcher over the watchlist file that prints each run's
// summary and alerts to out. Stored runs seed the first comparison.
func newWatcher(a *app, file string, out io.Writer, alertsCSV string) *schedule.Watcher {
	var store schedule.ReportStore
	if s, err := a.openStore(); err != nil {
		slog.Warn("run history unavailable; alerts start from the first run", "err", err)
	} else {
		store = s
	}

	alertCfg := a.cfg.Watch.Alerts
	w := schedule.NewWatcher(a.processor, store, schedule.FileSource(file), a.cfg.Costs, alertCfg)
	w.OnRun(func(rep *bulk.Report, alerts []monitoring.Alert) {
		a.metrics.ObserveReport(rep)
		fmt.Fprintf(out, "%s run %s: %s\n", rep.FinishedAt.Format(time.RFC3339), rep.ID, rep.Summary())
		for _, alert := range alerts {
			fmt.Fprint(out, monitoring.FormatAlert(alert))
		}

		if alertsCSV == "" {
			return
		}
		ar := monitoring.NewAlertReport(rep, alerts, alertCfg)
		if err := writeFile(alertsCSV, ar.WriteCSV); err != nil {
			slog.Error("alert report not written", "path", alertsCSV, "err", err)
		}
	})
	return w
}

func runRuns(ctx context.Context, args []string, out io.Writer) error {
	fs, g := newFlagSet("runs")
	limit := fs.Int("limit", 20, "number of runs to list")
	show := fs.String("show", "", "print the items of one run")
	asin := fs.String("asin", "", "list the analytics recorded for one ASIN across runs")
	prune := fs.Duration("prune", 0, "delete runs older than this age")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := g.setup()
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer closeApp(a)

	store, err := a.openStore()
	if err != nil {
		return err
	}

	switch {
	case *prune > 0:
		n, err := store.Prune(ctx, time.Now().Add(-*prune))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "pruned %d runs\n", n)
		return nil

	case *show != "":
		rep, err := store.GetReport(ctx, *show)
		if err != nil {
			return err
		}
		report.PrintBulkTable(out, rep)
		return nil

	case *asin != "":
		kind, id := identifier.Classify(*asin)
		if kind != identifier.ASIN {
			return fmt.Errorf("runs: %q is not an ASIN", *asin)
		}
		records, err := store.ASINHistory(ctx, id, *limit)
		if err != nil {
			return err
		}
		table := tablewriter.NewWriter(out)
		table.Header("Fetched", "Buy Box", "Rank", "Offers", "Score", "Net")
		for _, rec := range records {
			table.Append(
				rec.FetchedAt.Local().Format("2006-01-02 15:04"),
				fmt.Sprintf("%.2f", rec.BuyBoxPrice),
				fmt.Sprintf("%d", rec.SalesRank),
				fmt.Sprintf("%d", rec.OfferCount),
				fmt.Sprintf("%.1f", rec.Score),
				fmt.Sprintf("%.2f", rec.Fees.NetProfit),
			)
		}
		table.Render()
		return nil
	}

	reps, err := store.ListReports(ctx, *limit)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(out)
	table.Header("ID", "Started", "State", "Result")
	for _, rep := range reps {
		table.Append(rep.ID, rep.StartedAt.Local().Format("2006-01-02 15:04"), string(rep.State), rep.Summary())
	}
	table.Render()
	return nil
}

func runUPC(_ context.Context, args []string, out io.Writer) error {
	fs, g := newFlagSet("upc")
	asin := fs.String("asin", "", "only mappings that resolve to this ASIN")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := g.setup()
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer closeApp(a)

	mappings := a.upcDB.All()
	if *asin != "" {
		mappings = a.upcDB.ByASIN(*asin)
	}

	table := tablewriter.NewWriter(out)
	table.Header("UPC", "ASIN", "Source", "Updated")
	for _, m := range mappings {
		table.Append(m.UPC, m.ASIN, m.Source, m.UpdatedAt.Local().Format("2006-01-02"))
	}
	table.Render()

	stats := a.upcDB.Stats()
	fmt.Fprintf(out, "%d mappings, %d distinct ASINs\n", stats.Mappings, stats.ASINs)
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func closeApp(a *app) {
	if err := a.Close(); err != nil {
		slog.Warn("shutdown", "err", err)
	}
}
