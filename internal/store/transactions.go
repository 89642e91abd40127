package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio-portal/internal/interfaces"
	"github.com/bobmcallan/folio-portal/internal/ledger"
	"github.com/bobmcallan/folio-portal/internal/listview"
	"github.com/bobmcallan/folio-portal/internal/models"
)

// TransactionPageSize is the limit of the transaction list fetch.
const TransactionPageSize = 100

// TransactionSorters are the sort keys of the transaction list.
var TransactionSorters = listview.Sorters[models.Transaction]{
	"date":      listview.ByTime(func(t models.Transaction) time.Time { return t.Date }),
	"amount":    listview.By(func(t models.Transaction) float64 { return t.TotalAmount }),
	"symbol":    listview.ByFold(func(t models.Transaction) string { return t.Symbol }),
	"type":      listview.By(func(t models.Transaction) string { return string(t.Type) }),
	"portfolio": listview.ByFold(func(t models.Transaction) string { return t.PortfolioName }),
	"quantity":  listview.By(func(t models.Transaction) float64 { return t.Quantity }),
	"price":     listview.By(func(t models.Transaction) float64 { return t.Price }),
}

// TransactionFilter is the query string of the transaction list.
type TransactionFilter struct {
	Search    string
	Portfolio string // id or name
	Type      string
	Range     string
	Sort      string
	Order     string
}

// Query resolves the filter into a listview query evaluated at now.
func (f TransactionFilter) Query(now time.Time) (listview.Query[models.Transaction], error) {
	q := listview.Query[models.Transaction]{
		Search: f.Search,
		SearchFields: []func(models.Transaction) string{
			func(t models.Transaction) string { return t.Symbol },
			func(t models.Transaction) string { return t.PortfolioName },
			func(t models.Transaction) string { return t.Notes },
		},
		Descending: listview.IsDescending(f.Order),
	}

	if typ := strings.TrimSpace(f.Type); typ != "" && !strings.EqualFold(typ, "all") {
		parsed, err := models.ParseTransactionType(typ)
		if err != nil {
			return q, err
		}
		q.Filters = append(q.Filters, listview.FieldEquals(string(parsed), func(t models.Transaction) string { return string(t.Type) }))
	}
	q.Filters = append(q.Filters, ByPortfolio(f.Portfolio))

	r, err := listview.ParseDateRange(f.Range)
	if err != nil {
		return q, err
	}
	q.Filters = append(q.Filters, listview.InDateRange(r, now, func(t models.Transaction) time.Time { return t.Date }))

	sort, err := lookupSort(TransactionSorters, f.Sort)
	if err != nil {
		return q, err
	}
	q.Sort = sort
	return q, nil
}

// ByPortfolio keeps transactions whose portfolio id or name equals want.
func ByPortfolio(want string) listview.Filter[models.Transaction] {
	byID := listview.FieldEquals(want, func(t models.Transaction) string { return t.PortfolioID.String() })
	byName := listview.FieldEquals(want, func(t models.Transaction) string { return t.PortfolioName })
	if byID == nil {
		return nil
	}
	return func(t models.Transaction) bool { return byID(t) || byName(t) }
}

// Transactions is the transaction list of one workspace.
type Transactions struct {
	*scope
	api   interfaces.TransactionAPI
	list  *Container[models.Transaction]
	names func(models.ID) string
	now   func() time.Time
}

func newTransactions(s *scope, api interfaces.TransactionAPI, names func(models.ID) string) *Transactions {
	t := &Transactions{scope: s, api: api, names: names, now: time.Now}
	fetch := func(ctx context.Context) ([]models.Transaction, error) {
		txs, err := api.ListTransactions(ctx, models.TransactionListOptions{
			Limit:   TransactionPageSize,
			OrderBy: "transaction_date",
			Order:   "desc",
		})
		if err != nil {
			return nil, err
		}
		txs = slices.Clone(txs)
		for i := range txs {
			t.label(&txs[i])
		}
		return txs, nil
	}
	t.list = NewContainer("transactions", fetch,
		func(tx models.Transaction) models.ID { return tx.ID }, s.feed, s.life, s.logger)
	return t
}

// label fills the portfolio name and derived total when the server
// omitted them.
func (t *Transactions) label(tx *models.Transaction) {
	if tx.PortfolioName == "" && t.names != nil {
		tx.PortfolioName = t.names(tx.PortfolioID)
	}
	if tx.TotalAmount == 0 {
		tx.TotalAmount = ledger.TotalFloat(tx.Type, tx.Quantity, tx.Price, tx.Fees)
	}
}

// List exposes the underlying container.
func (t *Transactions) List() *Container[models.Transaction] { return t.list }

// View returns the filtered transaction list.
func (t *Transactions) View(f TransactionFilter) ([]models.Transaction, error) {
	q, err := f.Query(t.now())
	if err != nil {
		return nil, err
	}
	return t.list.View(q), nil
}

// ForPortfolio fetches the transactions of one portfolio directly.
func (t *Transactions) ForPortfolio(ctx context.Context, id models.ID) ([]models.Transaction, error) {
	txs, err := t.api.ListPortfolioTransactions(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range txs {
		t.label(&txs[i])
	}
	return txs, nil
}

// Create validates the form and records the transaction.
func (t *Transactions) Create(ctx context.Context, form ledger.Form) (*models.Transaction, error) {
	in, err := form.Input()
	if err != nil {
		return nil, err
	}
	return mutate(ctx, t.scope, "create transaction",
		func(ctx context.Context) (*models.Transaction, error) { return t.api.CreateTransaction(ctx, in) },
		func(tx *models.Transaction) {
			t.label(tx)
			t.list.Prepend(*tx)
		},
		func(tx *models.Transaction) string {
			return fmt.Sprintf("Recorded %s %s for %s", tx.Type, tx.Symbol, ledger.DisplayTotal(tx.TotalAmount, tx.Type, ""))
		})
}

// Update validates the form and updates transaction id.
func (t *Transactions) Update(ctx context.Context, id models.ID, form ledger.Form) (*models.Transaction, error) {
	in, err := form.Input()
	if err != nil {
		return nil, err
	}
	return mutate(ctx, t.scope, "update transaction "+id.String(),
		func(ctx context.Context) (*models.Transaction, error) {
			tx, err := t.api.UpdateTransaction(ctx, id, in)
			if err == nil && tx != nil && tx.ID.IsZero() {
				tx.ID = id
			}
			return tx, err
		},
		func(tx *models.Transaction) {
			t.label(tx)
			t.list.Replace(*tx)
		},
		func(tx *models.Transaction) string { return fmt.Sprintf("Transaction %s updated", tx.ID) })
}

// Delete removes transaction id after confirmation.
func (t *Transactions) Delete(ctx context.Context, id models.ID, confirmed bool) error {
	if !confirmed {
		return ErrUnconfirmed
	}
	_, err := mutate(ctx, t.scope, "delete transaction "+id.String(),
		func(ctx context.Context) (struct{}, error) { return struct{}{}, t.api.DeleteTransaction(ctx, id) },
		func(struct{}) { t.list.Remove(id) },
		func(struct{}) string { return fmt.Sprintf("Transaction %s deleted", id) })
	return err
}

// Totals sums a transaction view by cash-flow direction.
type Totals struct {
	Count   int     `json:"count"`
	Debits  float64 `json:"debits"`
	Credits float64 `json:"credits"`
	Fees    float64 `json:"fees"`
	Net     float64 `json:"net"`
}

// Summarize totals txs with decimal arithmetic.
func Summarize(txs []models.Transaction) Totals {
	var debits, credits, fees decimal.Decimal
	for _, tx := range txs {
		total := decimal.NewFromFloat(tx.TotalAmount)
		switch ledger.DirectionOf(tx.Type) {
		case ledger.Debit:
			debits = debits.Add(total)
		case ledger.Credit:
			credits = credits.Add(total)
		}
		fees = fees.Add(decimal.NewFromFloat(tx.Fees))
	}
	return Totals{
		Count:   len(txs),
		Debits:  debits.Round(2).InexactFloat64(),
		Credits: credits.Round(2).InexactFloat64(),
		Fees:    fees.Round(2).InexactFloat64(),
		Net:     credits.Sub(debits).Round(2).InexactFloat64(),
	}
}
