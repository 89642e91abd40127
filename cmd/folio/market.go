package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/bobmcallan/folio-portal/internal/chart"
	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/handlers"
	"github.com/bobmcallan/folio-portal/internal/store"
)

type searchCmd struct{}

func (*searchCmd) Name() string             { return "search" }
func (*searchCmd) Synopsis() string         { return "search the market by symbol or name" }
func (*searchCmd) Usage() string            { return "folio search <query>\n" }
func (*searchCmd) SetFlags(f *flag.FlagSet) {}

func (*searchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	query := strings.TrimSpace(strings.Join(f.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "Error: a search query is required")
		return subcommands.ExitUsageError
	}

	e, err := openEnv()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	ws, ctx, err := e.workspace(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	results, err := ws.Assets.Search(ctx, query)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Results for %q\n\n", query)
	b.WriteString("| Symbol | Name | Category | Price |\n|---|---|---|---:|\n")
	for _, a := range results {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", a.Symbol, a.Name, a.Category, common.FormatMoney(a.CurrentPrice, ""))
	}
	if len(results) == 0 {
		b.WriteString("\nNo matches.\n")
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}

type metricsCmd struct {
	period string
}

func (*metricsCmd) Name() string     { return "metrics" }
func (*metricsCmd) Synopsis() string { return "show derived metrics of a symbol" }
func (*metricsCmd) Usage() string {
	return `folio metrics [-period 1W|1M|3M|6M|1Y|ALL] <symbol>

  Prints return, range, volatility, drawdown, ATR and OBV trend over the
  period's price history.
`
}

func (c *metricsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", "ALL", "History period")
}

func (c *metricsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one symbol is required")
		return subcommands.ExitUsageError
	}
	symbol := strings.ToUpper(f.Arg(0))
	period, err := chart.ParsePeriod(c.period)
	if err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}

	e, err := openEnv()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	ws, ctx, err := e.workspace(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	m, ok, err := ws.Assets.Metrics(ctx, symbol, period)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	if !ok {
		fmt.Printf("Not enough price history for %s over %s\n", symbol, period)
		return subcommands.ExitSuccess
	}

	d := handlers.DisplayMetrics(m)
	var b strings.Builder
	fmt.Fprintf(&b, "# %s (%s)\n\n| Metric | Value |\n|---|---:|\n", symbol, period)
	for _, row := range [][2]string{
		{"Total return", d["total_return"]},
		{"Period high", d["period_high"]},
		{"Period low", d["period_low"]},
		{"Best day", d["max_gain"]},
		{"Worst day", d["max_loss"]},
		{"Volatility", d["volatility"]},
		{"Max drawdown", d["max_drawdown"]},
		{"ATR", d["atr"]},
		{"OBV trend", d["obv_trend"]},
	} {
		fmt.Fprintf(&b, "| %s | %s |\n", row[0], row[1])
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}

type chartCmd struct {
	period     string
	output     string
	width      int
	height     int
	theme      string
	indicators string
}

func (*chartCmd) Name() string     { return "chart" }
func (*chartCmd) Synopsis() string { return "render a price chart to a PNG file" }
func (*chartCmd) Usage() string {
	return `folio chart [-period <period>] [-o <file>] [-w <px>] [-h <px>] [-theme light|dark] [-indicators sma20,ema50,bbands20] <symbol>
`
}

func (c *chartCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", "ALL", "History period")
	f.StringVar(&c.output, "o", "", "Output file (default <symbol>.png)")
	f.IntVar(&c.width, "w", 0, "Width in pixels (default from config)")
	f.IntVar(&c.height, "h", 0, "Height in pixels (default from config)")
	f.StringVar(&c.theme, "theme", "", "light or dark (default from config)")
	f.StringVar(&c.indicators, "indicators", "", "Comma separated overlays")
}

func (c *chartCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one symbol is required")
		return subcommands.ExitUsageError
	}
	symbol := strings.ToUpper(f.Arg(0))
	period, err := chart.ParsePeriod(c.period)
	if err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}
	indicators, err := chart.ParseIndicators(c.indicators)
	if err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}

	e, err := openEnv()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	opts := chart.Options{Width: e.cfg.Chart.Width, Height: e.cfg.Chart.Height}
	if c.width > 0 {
		opts.Width = c.width
	}
	if c.height > 0 {
		opts.Height = c.height
	}
	themeName := c.theme
	if themeName == "" {
		themeName = e.cfg.Chart.Theme
	}
	if opts.Theme, err = chart.ParseTheme(themeName); err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}

	ws, ctx, err := e.workspace(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	path := c.output
	if path == "" {
		path = symbol + ".png"
	}
	out, err := os.Create(path)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	err = ws.Assets.Chart(ctx, store.ChartRequest{
		Symbol:     symbol,
		Period:     period,
		Indicators: indicators,
		Options:    opts,
	}, out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		fail(err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Wrote %s\n", path)
	return subcommands.ExitSuccess
}
