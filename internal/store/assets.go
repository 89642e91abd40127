package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/bobmcallan/folio-portal/internal/chart"
	"github.com/bobmcallan/folio-portal/internal/debounce"
	"github.com/bobmcallan/folio-portal/internal/interfaces"
	"github.com/bobmcallan/folio-portal/internal/listview"
	"github.com/bobmcallan/folio-portal/internal/models"
)

// ErrSuperseded is returned to a debounced search replaced by a newer
// query in the same field before it fired.
var ErrSuperseded = errors.New("search superseded by a newer query")

// AssetSorters are the sort keys of the market catalog.
var AssetSorters = listview.Sorters[models.Asset]{
	"symbol":   listview.ByFold(func(a models.Asset) string { return a.Symbol }),
	"name":     listview.ByFold(func(a models.Asset) string { return a.Name }),
	"category": listview.ByFold(func(a models.Asset) string { return a.Category }),
	"price":    listview.By(func(a models.Asset) float64 { return a.CurrentPrice }),
}

// AssetFilter is the query string of the market catalog.
type AssetFilter struct {
	Search   string
	Category string
	MinPrice *float64
	MaxPrice *float64
	Sort     string
	Order    string
}

// Query resolves the filter into a listview query.
func (f AssetFilter) Query() (listview.Query[models.Asset], error) {
	q := listview.Query[models.Asset]{
		Search: f.Search,
		SearchFields: []func(models.Asset) string{
			func(a models.Asset) string { return a.Symbol },
			func(a models.Asset) string { return a.Name },
			func(a models.Asset) string { return a.Exchange },
		},
		Filters: []listview.Filter[models.Asset]{
			ByCategory(f.Category),
			ByPriceRange(f.MinPrice, f.MaxPrice),
		},
		Descending: listview.IsDescending(f.Order),
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return q, fmt.Errorf("min_price %g is above max_price %g", *f.MinPrice, *f.MaxPrice)
	}
	sort, err := lookupSort(AssetSorters, f.Sort)
	if err != nil {
		return q, err
	}
	q.Sort = sort
	return q, nil
}

// ByCategory keeps assets of one category.
func ByCategory(category string) listview.Filter[models.Asset] {
	return listview.FieldEquals(category, func(a models.Asset) string { return a.Category })
}

// ByPriceRange keeps assets priced within [lo, hi].
func ByPriceRange(lo, hi *float64) listview.Filter[models.Asset] {
	return listview.ValueBetween(lo, hi, func(a models.Asset) float64 { return a.CurrentPrice })
}

// ChartRequest selects what the chart surface shows.
type ChartRequest struct {
	Symbol     string
	Period     chart.Period
	Indicators []chart.Indicator
	Options    chart.Options
	// Resize reflows the current chart to Options' size instead of
	// rebuilding it.
	Resize bool
}

// Assets is the market catalog view of one workspace.
type Assets struct {
	*scope
	api      interfaces.MarketAPI
	list     *Container[models.Asset]
	debounce *debounce.Keyed

	chartMu     sync.Mutex
	surface     *chart.Surface
	chartSymbol string
	chartPeriod chart.Period
}

func newAssets(s *scope, api interfaces.MarketAPI, opts models.AssetListOptions, keyed *debounce.Keyed) *Assets {
	fetch := func(ctx context.Context) ([]models.Asset, error) {
		return api.ListAssets(ctx, opts)
	}
	return &Assets{
		scope:    s,
		api:      api,
		list:     NewContainer("assets", fetch, func(a models.Asset) models.ID { return a.ID }, s.feed, s.life, s.logger),
		debounce: keyed,
		surface:  chart.NewSurface(s.logger),
	}
}

// List exposes the underlying container.
func (a *Assets) List() *Container[models.Asset] { return a.list }

// View returns the filtered catalog.
func (a *Assets) View(f AssetFilter) ([]models.Asset, error) {
	q, err := f.Query()
	if err != nil {
		return nil, err
	}
	return a.list.View(q), nil
}

// Categories lists the distinct categories of the catalog, sorted.
func (a *Assets) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, asset := range a.list.Items() {
		c := strings.TrimSpace(asset.Category)
		if c == "" {
			continue
		}
		if _, ok := seen[strings.ToLower(c)]; ok {
			continue
		}
		seen[strings.ToLower(c)] = struct{}{}
		out = append(out, c)
	}
	slices.SortFunc(out, func(x, y string) int { return strings.Compare(strings.ToLower(x), strings.ToLower(y)) })
	return out
}

// Resolve finds a catalog asset by symbol, case-insensitively.
func (a *Assets) Resolve(symbol string) (models.Asset, bool) {
	symbol = strings.TrimSpace(symbol)
	for _, asset := range a.list.Items() {
		if strings.EqualFold(asset.Symbol, symbol) {
			return asset, true
		}
	}
	return models.Asset{}, false
}

// Search queries folio-server for symbols matching query. An empty query
// matches nothing and makes no call.
func (a *Assets) Search(ctx context.Context, query string) ([]models.Asset, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	ctx, cancel := a.life.Bind(ctx)
	defer cancel()

	assets, err := a.api.SearchAssets(ctx, query)
	if err != nil {
		if !a.life.Alive() {
			return nil, ErrClosed
		}
		a.logger.Warn().Str("query", query).Err(err).Msg("asset search failed")
		a.feed.Failure("search", err)
		return nil, err
	}
	if !a.life.Alive() {
		return nil, ErrClosed
	}
	a.feed.Success("search", "%d assets match %q", len(assets), query)
	return assets, nil
}

// SearchDebounced waits out the debounce window for field and then
// searches. A newer query for the same field replaces this one, which
// returns ErrSuperseded without reaching folio-server.
func (a *Assets) SearchDebounced(ctx context.Context, field, query string) ([]models.Asset, error) {
	type result struct {
		assets []models.Asset
		err    error
	}
	ch := make(chan result, 1)
	a.debounce.Schedule(field,
		func() {
			if err := ctx.Err(); err != nil {
				ch <- result{err: err}
				return
			}
			assets, err := a.Search(ctx, query)
			ch <- result{assets: assets, err: err}
		},
		func() { ch <- result{err: ErrSuperseded} })

	select {
	case r := <-ch:
		return r.assets, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.life.Done():
		return nil, ErrClosed
	}
}

// Quote fetches the current price of symbol.
func (a *Assets) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	return a.api.Price(ctx, strings.ToUpper(strings.TrimSpace(symbol)))
}

// History fetches, cleans and windows the price series of symbol.
func (a *Assets) History(ctx context.Context, symbol string, period chart.Period) ([]models.PricePoint, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}
	raw, err := a.api.History(ctx, symbol, string(period))
	if err != nil {
		return nil, err
	}
	return chart.Window(chart.Coerce(raw, a.logger), period), nil
}

// Metrics computes the derived metrics of symbol over period. ok is false
// when the series has fewer than two points.
func (a *Assets) Metrics(ctx context.Context, symbol string, period chart.Period) (m chart.Metrics, ok bool, err error) {
	points, err := a.History(ctx, symbol, period)
	if err != nil {
		return chart.Metrics{}, false, err
	}
	m, ok = chart.Compute(points)
	return m, ok, nil
}

// Chart brings the workspace chart surface up to date with req and
// renders it as PNG.
func (a *Assets) Chart(ctx context.Context, req ChartRequest, w io.Writer) error {
	a.chartMu.Lock()
	defer a.chartMu.Unlock()

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Resize && a.surface.Builds() > 0 && symbol == a.chartSymbol && req.Period == a.chartPeriod {
		a.surface.Resize(req.Options.Width, req.Options.Height)
		return a.surface.Render(w)
	}

	points, err := a.History(ctx, req.Symbol, req.Period)
	if err != nil {
		return err
	}
	var overlays chart.Overlays
	for _, ind := range req.Indicators {
		series, err := ind.Compute(points)
		if err != nil {
			return err
		}
		for _, s := range series {
			overlays.Set(s)
		}
	}
	opts := req.Options
	if opts.Title == "" {
		opts.Title = fmt.Sprintf("%s %s", symbol, req.Period)
	}
	if !a.life.Alive() {
		return ErrClosed
	}
	a.surface.Update(points, overlays.Series(), opts)
	a.chartSymbol, a.chartPeriod = symbol, req.Period
	return a.surface.Render(w)
}

// ChartBuilds reports how often the chart surface was rebuilt.
func (a *Assets) ChartBuilds() int { return a.surface.Builds() }

func (a *Assets) close() {
	a.surface.Close()
}
