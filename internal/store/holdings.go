package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio-portal/internal/interfaces"
	"github.com/bobmcallan/folio-portal/internal/ledger"
	"github.com/bobmcallan/folio-portal/internal/listview"
	"github.com/bobmcallan/folio-portal/internal/models"
)

// HoldingSorters are the sort keys of the holdings list.
var HoldingSorters = listview.Sorters[models.UserAsset]{
	"symbol":   listview.ByFold(func(a models.UserAsset) string { return a.Symbol }),
	"quantity": listview.By(func(a models.UserAsset) float64 { return a.Quantity }),
	"value":    listview.By(func(a models.UserAsset) float64 { return a.MarketValue() }),
	"pnl":      listview.By(func(a models.UserAsset) float64 { return a.UnrealizedPnL() }),
	"date":     listview.ByTime(func(a models.UserAsset) time.Time { return a.PurchaseDate }),
}

// HoldingFilter is the query string of the holdings list.
type HoldingFilter struct {
	Search   string
	Category string
	Sort     string
	Order    string
}

// Query resolves the filter into a listview query.
func (f HoldingFilter) Query() (listview.Query[models.UserAsset], error) {
	q := listview.Query[models.UserAsset]{
		Search: f.Search,
		SearchFields: []func(models.UserAsset) string{
			func(a models.UserAsset) string { return a.Symbol },
			func(a models.UserAsset) string { return a.Name },
		},
		Filters: []listview.Filter[models.UserAsset]{
			listview.FieldEquals(f.Category, func(a models.UserAsset) string { return a.Category }),
		},
		Descending: listview.IsDescending(f.Order),
	}
	sort, err := lookupSort(HoldingSorters, f.Sort)
	if err != nil {
		return q, err
	}
	q.Sort = sort
	return q, nil
}

// HoldingTotals aggregates a holdings view.
type HoldingTotals struct {
	Count         int     `json:"count"`
	MarketValue   float64 `json:"market_value"`
	CostBasis     float64 `json:"cost_basis"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	ReturnPct     float64 `json:"return_pct"`
}

// SumHoldings totals holdings with decimal arithmetic.
func SumHoldings(items []models.UserAsset) HoldingTotals {
	var value, cost decimal.Decimal
	for _, a := range items {
		q := decimal.NewFromFloat(a.Quantity)
		value = value.Add(q.Mul(decimal.NewFromFloat(a.CurrentPrice)))
		cost = cost.Add(q.Mul(decimal.NewFromFloat(a.PurchasePrice)))
	}
	pnl := value.Sub(cost)
	t := HoldingTotals{
		Count:         len(items),
		MarketValue:   value.Round(2).InexactFloat64(),
		CostBasis:     cost.Round(2).InexactFloat64(),
		UnrealizedPnL: pnl.Round(2).InexactFloat64(),
	}
	if cost.IsPositive() {
		t.ReturnPct = pnl.Div(cost).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	}
	return t
}

// Holdings is the user-asset list of one workspace.
type Holdings struct {
	*scope
	api  interfaces.HoldingAPI
	list *Container[models.UserAsset]
	now  func() time.Time
}

func newHoldings(s *scope, api interfaces.HoldingAPI) *Holdings {
	return &Holdings{
		scope: s,
		api:   api,
		list: NewContainer("holdings", api.ListUserAssets,
			func(a models.UserAsset) models.ID { return a.ID }, s.feed, s.life, s.logger),
		now: time.Now,
	}
}

// List exposes the underlying container.
func (h *Holdings) List() *Container[models.UserAsset] { return h.list }

// View returns the filtered holdings list.
func (h *Holdings) View(f HoldingFilter) ([]models.UserAsset, error) {
	q, err := f.Query()
	if err != nil {
		return nil, err
	}
	return h.list.View(q), nil
}

// Create validates the form and adds a holding.
func (h *Holdings) Create(ctx context.Context, form ledger.HoldingForm) (*models.UserAsset, error) {
	in, err := form.Input(h.now())
	if err != nil {
		return nil, err
	}
	return mutate(ctx, h.scope, "create holding",
		func(ctx context.Context) (*models.UserAsset, error) { return h.api.CreateUserAsset(ctx, in) },
		func(a *models.UserAsset) { h.list.Prepend(*a) },
		func(a *models.UserAsset) string { return fmt.Sprintf("Holding %s added", a.Symbol) })
}

// Update validates the form and updates holding id.
func (h *Holdings) Update(ctx context.Context, id models.ID, form ledger.HoldingForm) (*models.UserAsset, error) {
	in, err := form.Input(h.now())
	if err != nil {
		return nil, err
	}
	return mutate(ctx, h.scope, "update holding "+id.String(),
		func(ctx context.Context) (*models.UserAsset, error) {
			a, err := h.api.UpdateUserAsset(ctx, id, in)
			if err == nil && a != nil && a.ID.IsZero() {
				a.ID = id
			}
			return a, err
		},
		func(a *models.UserAsset) { h.list.Replace(*a) },
		func(a *models.UserAsset) string { return fmt.Sprintf("Holding %s updated", a.Symbol) })
}

// Delete removes holding id after confirmation.
func (h *Holdings) Delete(ctx context.Context, id models.ID, confirmed bool) error {
	if !confirmed {
		return ErrUnconfirmed
	}
	_, err := mutate(ctx, h.scope, "delete holding "+id.String(),
		func(ctx context.Context) (struct{}, error) { return struct{}{}, h.api.DeleteUserAsset(ctx, id) },
		func(struct{}) { h.list.Remove(id) },
		func(struct{}) string { return fmt.Sprintf("Holding %s deleted", id) })
	return err
}
