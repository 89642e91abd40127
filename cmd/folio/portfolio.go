package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/ledger"
	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/store"
)

type portfoliosCmd struct {
	filter store.PortfolioFilter
	sel    string
}

func (*portfoliosCmd) Name() string     { return "portfolios" }
func (*portfoliosCmd) Synopsis() string { return "list portfolios" }
func (*portfoliosCmd) Usage() string {
	return `folio portfolios [-search <text>] [-risk <level>] [-sort <key>] [-order asc|desc] [-select <id>]

  Lists the portfolios of the logged-in user. -select makes a portfolio the
  default of new transactions.
`
}

func (c *portfoliosCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.filter.Search, "search", "", "Match name or description")
	f.StringVar(&c.filter.Risk, "risk", "", "Risk tolerance (conservative, moderate, aggressive)")
	f.StringVar(&c.filter.Visibility, "visibility", "", "public or private")
	f.StringVar(&c.filter.Sort, "sort", "", "Sort key")
	f.StringVar(&c.filter.Order, "order", "", "asc or desc")
	f.StringVar(&c.sel, "select", "", "Select the portfolio with this id")
}

func (c *portfoliosCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	if c.sel != "" {
		id := models.ID(c.sel)
		if _, err := ws.Portfolios.Get(ctx, id); err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		sess, err := e.sessions.Select(ctx, ws.SessionID, id)
		if err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		e.registry.Get(sess)
	}

	items, err := ws.Portfolios.View(c.filter)
	if err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}
	selected := ws.Session().SelectedPortfolioID

	var b strings.Builder
	b.WriteString("# Portfolios\n\n")
	b.WriteString("| | ID | Name | Risk | Visibility | Initial cash | Target |\n")
	b.WriteString("|---|---|---|---|---|---:|---:|\n")
	for _, p := range items {
		mark := ""
		if p.ID == selected {
			mark = "*"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			mark, p.ID, p.Name, p.RiskTolerance, p.Visibility(),
			common.FormatMoney(p.InitialCash, ""), common.FormatPct(p.TargetReturn))
	}
	fmt.Fprintf(&b, "\n%d of %d portfolios\n", len(items), ws.Portfolios.List().Len())
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}

type transactionsCmd struct {
	filter store.TransactionFilter
	limit  int
}

func (*transactionsCmd) Name() string     { return "transactions" }
func (*transactionsCmd) Synopsis() string { return "list transactions with totals" }
func (*transactionsCmd) Usage() string {
	return `folio transactions [-search <text>] [-portfolio <id>] [-type <type>] [-range <range>] [-sort <key>] [-order asc|desc] [-n <limit>]

  Lists transactions across all portfolios, newest first by default, with
  debit, credit and fee totals and the shares held over the matching rows.
`
}

func (c *transactionsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.filter.Search, "search", "", "Match symbol, notes or portfolio name")
	f.StringVar(&c.filter.Portfolio, "portfolio", "", "Portfolio id")
	f.StringVar(&c.filter.Type, "type", "", "Transaction type")
	f.StringVar(&c.filter.Range, "range", "", "Date range (all, today, week, month, quarter, year)")
	f.StringVar(&c.filter.Sort, "sort", "", "Sort key")
	f.StringVar(&c.filter.Order, "order", "", "asc or desc")
	f.IntVar(&c.limit, "n", 0, "Show at most n rows (totals cover all matches)")
}

func (c *transactionsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	ws, _, err := e.workspace(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	items, err := ws.Transactions.View(c.filter)
	if err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}
	totals := store.Summarize(items)
	held := ledger.Positions(items)
	if c.limit > 0 && len(items) > c.limit {
		items = items[:c.limit]
	}

	var b strings.Builder
	b.WriteString("# Transactions\n\n")
	b.WriteString("| Date | Portfolio | Type | Symbol | Quantity | Price | Fees | Total |\n")
	b.WriteString("|---|---|---|---|---:|---:|---:|---:|\n")
	for _, tx := range items {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			tx.Date.Format("2006-01-02"), orDash(tx.PortfolioName), tx.Type, tx.Symbol,
			decimal.NewFromFloat(tx.Quantity).String(),
			common.FormatMoney(tx.Price, ""), common.FormatMoney(tx.Fees, ""),
			ledger.DisplayTotal(tx.TotalAmount, tx.Type, ""))
	}
	fmt.Fprintf(&b, "\n**%d transactions.** Debits %s, credits %s, fees %s, net %s\n",
		totals.Count,
		common.FormatMoney(totals.Debits, ""), common.FormatMoney(totals.Credits, ""),
		common.FormatMoney(totals.Fees, ""), common.FormatSignedMoney(totals.Net, ""))
	if len(held) > 0 {
		symbols := make([]string, 0, len(held))
		for symbol := range held {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		b.WriteString("\n| Symbol | Held |\n|---|---:|\n")
		for _, symbol := range symbols {
			fmt.Fprintf(&b, "| %s | %s |\n", symbol, held[symbol].String())
		}
	}
	if err := ws.Transactions.List().LastError(); err != nil {
		fmt.Fprintf(&b, "\n> Showing the last loaded list: %v\n", err)
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}

type totalCmd struct {
	typ      string
	quantity string
	price    string
	fees     string
	currency string
}

func (*totalCmd) Name() string     { return "total" }
func (*totalCmd) Synopsis() string { return "compute a transaction total offline" }
func (*totalCmd) Usage() string {
	return `folio total -type <type> [-q <quantity>] [-price <price>] [-fees <fees>] [-currency <code>]

  Prints the total the entry form would show. Buy, sell, dividend and
  transfers total quantity x price + fees; other types total their fees.
`
}

func (c *totalCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.typ, "type", "", "Transaction type")
	f.StringVar(&c.quantity, "q", "0", "Quantity")
	f.StringVar(&c.price, "price", "0", "Price per unit")
	f.StringVar(&c.fees, "fees", "0", "Fees")
	f.StringVar(&c.currency, "currency", "", "ISO currency code of the display")
}

func (c *totalCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	typ, err := models.ParseTransactionType(c.typ)
	if err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}
	values := make([]decimal.Decimal, 3)
	for i, raw := range []string{c.quantity, c.price, c.fees} {
		v, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil || v.IsNegative() {
			fmt.Fprintf(os.Stderr, "Error: %q must be a non-negative number\n", raw)
			return subcommands.ExitUsageError
		}
		values[i] = v
	}

	total := ledger.Total(typ, values[0], values[1], values[2]).Round(2).InexactFloat64()
	fmt.Printf("%s (%s)\n", ledger.DisplayTotal(total, typ, c.currency), ledger.DirectionOf(typ))
	return subcommands.ExitSuccess
}
