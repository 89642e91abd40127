package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/folio-portal/internal/interfaces"
	"github.com/bobmcallan/folio-portal/internal/ledger"
	"github.com/bobmcallan/folio-portal/internal/listview"
	"github.com/bobmcallan/folio-portal/internal/models"
)

// PortfolioSorters are the sort keys of the portfolio list.
var PortfolioSorters = listview.Sorters[models.Portfolio]{
	"name":    listview.ByFold(func(p models.Portfolio) string { return p.Name }),
	"cash":    listview.By(func(p models.Portfolio) float64 { return p.InitialCash }),
	"target":  listview.By(func(p models.Portfolio) float64 { return p.TargetReturn }),
	"created": listview.ByTime(func(p models.Portfolio) time.Time { return p.CreatedAt }),
	"updated": listview.ByTime(func(p models.Portfolio) time.Time { return p.UpdatedAt }),
}

// PortfolioFilter is the query string of the portfolio list.
type PortfolioFilter struct {
	Search     string
	Risk       string
	Visibility string
	Sort       string
	Order      string
}

// Query resolves the filter into a listview query.
func (f PortfolioFilter) Query() (listview.Query[models.Portfolio], error) {
	q := listview.Query[models.Portfolio]{
		Search: f.Search,
		SearchFields: []func(models.Portfolio) string{
			func(p models.Portfolio) string { return p.Name },
			func(p models.Portfolio) string { return p.Description },
		},
		Filters: []listview.Filter[models.Portfolio]{
			listview.FieldEquals(f.Risk, func(p models.Portfolio) string { return string(p.RiskTolerance) }),
			listview.FieldEquals(f.Visibility, func(p models.Portfolio) string { return string(p.Visibility()) }),
		},
		Descending: listview.IsDescending(f.Order),
	}
	sort, err := lookupSort(PortfolioSorters, f.Sort)
	if err != nil {
		return q, err
	}
	q.Sort = sort
	return q, nil
}

// Portfolios is the portfolio list of one workspace.
type Portfolios struct {
	*scope
	api       interfaces.PortfolioAPI
	list      *Container[models.Portfolio]
	onDeleted func(ctx context.Context, id models.ID) error
}

func newPortfolios(s *scope, api interfaces.PortfolioAPI, onDeleted func(context.Context, models.ID) error) *Portfolios {
	return &Portfolios{
		scope: s,
		api:   api,
		list: NewContainer("portfolios", api.ListPortfolios,
			func(p models.Portfolio) models.ID { return p.ID }, s.feed, s.life, s.logger),
		onDeleted: onDeleted,
	}
}

// List exposes the underlying container.
func (p *Portfolios) List() *Container[models.Portfolio] { return p.list }

// View returns the filtered portfolio list.
func (p *Portfolios) View(f PortfolioFilter) ([]models.Portfolio, error) {
	q, err := f.Query()
	if err != nil {
		return nil, err
	}
	return p.list.View(q), nil
}

// Name resolves a portfolio id to its name, or "" when unknown.
func (p *Portfolios) Name(id models.ID) string {
	if pf, ok := p.list.Find(id); ok {
		return pf.Name
	}
	return ""
}

// Get returns one portfolio, preferring the fetched list.
func (p *Portfolios) Get(ctx context.Context, id models.ID) (*models.Portfolio, error) {
	if pf, ok := p.list.Find(id); ok {
		return &pf, nil
	}
	return p.api.GetPortfolio(ctx, id)
}

// Summary fetches the server-computed summary block.
func (p *Portfolios) Summary(ctx context.Context, id models.ID) (*models.PortfolioSummary, error) {
	return p.api.PortfolioSummary(ctx, id)
}

// Create validates the form and creates the portfolio.
func (p *Portfolios) Create(ctx context.Context, form ledger.PortfolioForm) (*models.Portfolio, error) {
	in, err := form.Input()
	if err != nil {
		return nil, err
	}
	return mutate(ctx, p.scope, "create portfolio",
		func(ctx context.Context) (*models.Portfolio, error) { return p.api.CreatePortfolio(ctx, in) },
		func(pf *models.Portfolio) { p.list.Prepend(*pf) },
		func(pf *models.Portfolio) string { return fmt.Sprintf("Portfolio %q created", pf.Name) })
}

// Update validates the form and updates portfolio id.
func (p *Portfolios) Update(ctx context.Context, id models.ID, form ledger.PortfolioForm) (*models.Portfolio, error) {
	in, err := form.Input()
	if err != nil {
		return nil, err
	}
	return mutate(ctx, p.scope, "update portfolio "+id.String(),
		func(ctx context.Context) (*models.Portfolio, error) {
			pf, err := p.api.UpdatePortfolio(ctx, id, in)
			if err == nil && pf != nil && pf.ID.IsZero() {
				pf.ID = id
			}
			return pf, err
		},
		func(pf *models.Portfolio) { p.list.Replace(*pf) },
		func(pf *models.Portfolio) string { return fmt.Sprintf("Portfolio %q updated", pf.Name) })
}

// Delete removes portfolio id. confirmed must be true; destructive
// actions are never issued without an explicit confirmation. A deleted
// selected portfolio is deselected.
func (p *Portfolios) Delete(ctx context.Context, id models.ID, confirmed bool) error {
	if !confirmed {
		return ErrUnconfirmed
	}
	name := p.Name(id)
	if name == "" {
		name = id.String()
	}
	_, err := mutate(ctx, p.scope, "delete portfolio "+id.String(),
		func(ctx context.Context) (struct{}, error) { return struct{}{}, p.api.DeletePortfolio(ctx, id) },
		func(struct{}) { p.list.Remove(id) },
		func(struct{}) string { return fmt.Sprintf("Portfolio %q deleted", name) })
	if err != nil {
		return err
	}
	if p.onDeleted != nil {
		if err := p.onDeleted(context.WithoutCancel(ctx), id); err != nil {
			p.logger.Warn().Str("portfolio", id.String()).Err(err).Msg("failed to clear selection after delete")
		}
	}
	return nil
}

func lookupSort[T any](s listview.Sorters[T], key string) (listview.Compare[T], error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	cmp := s.Lookup(key)
	if cmp == nil {
		return nil, fmt.Errorf("unknown sort key %q (want one of %s)", key, strings.Join(s.Keys(), ", "))
	}
	return cmp, nil
}
