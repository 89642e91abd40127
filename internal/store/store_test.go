package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio-portal/internal/chart"
	"github.com/bobmcallan/folio-portal/internal/ledger"
	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/session"
)

var errDown = errors.New("folio-server unavailable")

type fakeAPI struct {
	mu         sync.Mutex
	portfolios []models.Portfolio
	txs        []models.Transaction
	assets     []models.Asset
	holdings   []models.UserAsset
	history    []models.RawPricePoint
	listErr    error
	mutateErr  error
	calls      []string
	searches   []string
	gate       chan struct{} // when set, calls wait for it to close
}

func (f *fakeAPI) record(call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return nil
}

func (f *fakeAPI) called(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAPI) errs() (list, mutate error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listErr, f.mutateErr
}

func (f *fakeAPI) ListPortfolios(ctx context.Context) ([]models.Portfolio, error) {
	f.record("ListPortfolios")
	if err, _ := f.errs(); err != nil {
		return nil, err
	}
	return f.portfolios, nil
}

func (f *fakeAPI) GetPortfolio(ctx context.Context, id models.ID) (*models.Portfolio, error) {
	f.record("GetPortfolio")
	return &models.Portfolio{ID: id, Name: "fetched"}, nil
}

func (f *fakeAPI) CreatePortfolio(ctx context.Context, in models.PortfolioInput) (*models.Portfolio, error) {
	f.record("CreatePortfolio")
	if _, err := f.errs(); err != nil {
		return nil, err
	}
	return &models.Portfolio{ID: "new", Name: in.Name, RiskTolerance: in.RiskTolerance}, nil
}

func (f *fakeAPI) UpdatePortfolio(ctx context.Context, id models.ID, in models.PortfolioInput) (*models.Portfolio, error) {
	f.record("UpdatePortfolio")
	if _, err := f.errs(); err != nil {
		return nil, err
	}
	return &models.Portfolio{Name: in.Name}, nil
}

func (f *fakeAPI) DeletePortfolio(ctx context.Context, id models.ID) error {
	f.record("DeletePortfolio")
	_, err := f.errs()
	return err
}

func (f *fakeAPI) PortfolioSummary(ctx context.Context, id models.ID) (*models.PortfolioSummary, error) {
	f.record("PortfolioSummary")
	return &models.PortfolioSummary{PortfolioID: id, TotalValue: 10}, nil
}

func (f *fakeAPI) ListTransactions(ctx context.Context, opts models.TransactionListOptions) ([]models.Transaction, error) {
	f.record("ListTransactions")
	if err, _ := f.errs(); err != nil {
		return nil, err
	}
	return f.txs, nil
}

func (f *fakeAPI) ListPortfolioTransactions(ctx context.Context, id models.ID) ([]models.Transaction, error) {
	f.record("ListPortfolioTransactions")
	var out []models.Transaction
	for _, tx := range f.txs {
		if tx.PortfolioID == id {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeAPI) CreateTransaction(ctx context.Context, in models.TransactionInput) (*models.Transaction, error) {
	f.record("CreateTransaction")
	if _, err := f.errs(); err != nil {
		return nil, err
	}
	return &models.Transaction{
		ID: "tx-new", PortfolioID: in.PortfolioID, Type: in.Type, Symbol: in.Symbol,
		Quantity: in.Quantity, Price: in.Price, Fees: in.Fees, TotalAmount: in.TotalAmount, Date: in.Date,
	}, nil
}

func (f *fakeAPI) UpdateTransaction(ctx context.Context, id models.ID, in models.TransactionInput) (*models.Transaction, error) {
	f.record("UpdateTransaction")
	if _, err := f.errs(); err != nil {
		return nil, err
	}
	return &models.Transaction{ID: id, PortfolioID: in.PortfolioID, Type: in.Type, Symbol: in.Symbol, TotalAmount: in.TotalAmount}, nil
}

func (f *fakeAPI) DeleteTransaction(ctx context.Context, id models.ID) error {
	f.record("DeleteTransaction")
	_, err := f.errs()
	return err
}

func (f *fakeAPI) ListAssets(ctx context.Context, opts models.AssetListOptions) ([]models.Asset, error) {
	f.record("ListAssets")
	if err, _ := f.errs(); err != nil {
		return nil, err
	}
	return f.assets, nil
}

func (f *fakeAPI) SearchAssets(ctx context.Context, query string) ([]models.Asset, error) {
	f.record("SearchAssets")
	f.mu.Lock()
	f.searches = append(f.searches, query)
	f.mu.Unlock()
	return []models.Asset{{ID: "1", Symbol: query}}, nil
}

func (f *fakeAPI) Price(ctx context.Context, symbol string) (*models.Quote, error) {
	f.record("Price")
	return &models.Quote{Symbol: symbol, Price: 1}, nil
}

func (f *fakeAPI) History(ctx context.Context, symbol, period string) ([]models.RawPricePoint, error) {
	f.record("History")
	return f.history, nil
}

func (f *fakeAPI) ListUserAssets(ctx context.Context) ([]models.UserAsset, error) {
	f.record("ListUserAssets")
	if err, _ := f.errs(); err != nil {
		return nil, err
	}
	return f.holdings, nil
}

func (f *fakeAPI) CreateUserAsset(ctx context.Context, in models.UserAssetInput) (*models.UserAsset, error) {
	f.record("CreateUserAsset")
	if _, err := f.errs(); err != nil {
		return nil, err
	}
	return &models.UserAsset{ID: "h-new", AssetID: in.AssetID, Symbol: in.Symbol, Quantity: in.Quantity, PurchasePrice: in.PurchasePrice}, nil
}

func (f *fakeAPI) UpdateUserAsset(ctx context.Context, id models.ID, in models.UserAssetInput) (*models.UserAsset, error) {
	f.record("UpdateUserAsset")
	return &models.UserAsset{ID: id, Symbol: in.Symbol, Quantity: in.Quantity}, nil
}

func (f *fakeAPI) DeleteUserAsset(ctx context.Context, id models.ID) error {
	f.record("DeleteUserAsset")
	_, err := f.errs()
	return err
}

func (f *fakeAPI) Login(ctx context.Context, c models.Credentials) (string, *models.User, error) {
	return "", nil, errDown
}

func (f *fakeAPI) Register(ctx context.Context, c models.Credentials) (string, *models.User, error) {
	return "", nil, errDown
}

func (f *fakeAPI) Logout(ctx context.Context) error                                 { return nil }
func (f *fakeAPI) Me(ctx context.Context) (*models.User, error)                     { return &models.User{}, nil }
func (f *fakeAPI) ResendVerification(ctx context.Context) error                     { return nil }
func (f *fakeAPI) ResetPassword(ctx context.Context, in models.PasswordReset) error { return nil }

type fakeSelections struct {
	mu       sync.Mutex
	selected models.ID
	deleted  []models.ID
}

func (s *fakeSelections) PortfolioDeleted(ctx context.Context, sessionID string, id models.ID) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	if s.selected == id {
		s.selected = ""
	}
	return session.Session{ID: sessionID, SelectedPortfolioID: s.selected}, nil
}

var now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func fixtureAPI() *fakeAPI {
	return &fakeAPI{
		portfolios: []models.Portfolio{
			{ID: "1", Name: "Growth", RiskTolerance: models.RiskAggressive, InitialCash: 5000},
			{ID: "2", Name: "Income", RiskTolerance: models.RiskConservative, InitialCash: 2000, IsPublic: true},
		},
		txs: []models.Transaction{
			{ID: "t1", PortfolioID: "1", Type: models.TxBuy, Symbol: "AAPL", Quantity: 2, Price: 50, Fees: 1, Date: now.Add(-time.Hour)},
			{ID: "t2", PortfolioID: "2", Type: models.TxDividend, Symbol: "MSFT", Quantity: 1, Price: 12.5, Date: now.AddDate(0, 0, -3)},
			{ID: "t3", PortfolioID: "1", Type: models.TxFee, Symbol: "AAPL", Fees: 4, Date: now.AddDate(0, -2, 0)},
			{ID: "t4", PortfolioID: "2", Type: models.TxSell, Symbol: "VTI", Quantity: 1, Price: 200, Date: now.AddDate(-2, 0, 0)},
		},
		assets: []models.Asset{
			{ID: "a1", Symbol: "AAPL", Name: "Apple", Category: "Stock", CurrentPrice: 190},
			{ID: "a2", Symbol: "VTI", Name: "Vanguard Total", Category: "ETF", CurrentPrice: 250},
			{ID: "a3", Symbol: "BTC", Name: "Bitcoin", Category: "crypto", CurrentPrice: 60000},
			{ID: "a4", Symbol: "BND", Name: "Bond ETF", Category: "etf", CurrentPrice: 72},
		},
		holdings: []models.UserAsset{
			{ID: "h1", Symbol: "AAPL", Category: "Stock", Quantity: 10, PurchasePrice: 100, CurrentPrice: 190},
			{ID: "h2", Symbol: "VTI", Category: "ETF", Quantity: 2, PurchasePrice: 250, CurrentPrice: 200},
		},
	}
}

func newTestWorkspace(t *testing.T, api *fakeAPI, sel Selections) *Workspace {
	t.Helper()
	ws := NewWorkspace(session.Session{ID: "s1", Token: "tok"}, api, sel, Options{SearchDebounce: 20 * time.Millisecond}, nil)
	ws.Transactions.now = func() time.Time { return now }
	ws.Holdings.now = func() time.Time { return now }
	t.Cleanup(ws.Close)
	return ws
}

func ids[T any](items []T, id func(T) models.ID) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = id(it).String()
	}
	return out
}

func txIDs(txs []models.Transaction) []string {
	return ids(txs, func(t models.Transaction) models.ID { return t.ID })
}

func TestWorkspace_LoadLabelsTransactions(t *testing.T) {
	ws := newTestWorkspace(t, fixtureAPI(), nil)
	require.NoError(t, ws.Load(context.Background()))

	txs := ws.Transactions.List().Items()
	require.Len(t, txs, 4)
	assert.Equal(t, "Growth", txs[0].PortfolioName)
	assert.Equal(t, 101.0, txs[0].TotalAmount)
	assert.Equal(t, 4.0, txs[2].TotalAmount)
	assert.Empty(t, ws.Feed.List(), "initial load is silent on success")
}

func TestContainer_FailedRefreshKeepsPreviousList(t *testing.T) {
	api := fixtureAPI()
	ws := newTestWorkspace(t, api, nil)
	require.NoError(t, ws.Load(context.Background()))

	api.mu.Lock()
	api.listErr = errDown
	api.mu.Unlock()

	err := ws.Portfolios.List().Refresh(context.Background())
	require.ErrorIs(t, err, errDown)
	assert.Len(t, ws.Portfolios.List().Items(), 2)
	assert.True(t, ws.Portfolios.List().Loaded())
	assert.ErrorIs(t, ws.Portfolios.List().LastError(), errDown)

	feed := ws.Feed.List()
	require.NotEmpty(t, feed)
	assert.Equal(t, KindError, feed[0].Kind)
	assert.Equal(t, "refresh portfolios", feed[0].Action)
}

func TestContainer_FailedFirstFetchThenUserActions(t *testing.T) {
	api := fixtureAPI()
	api.listErr = errDown
	ws := newTestWorkspace(t, api, nil)

	assert.Error(t, ws.Load(context.Background()))
	assert.False(t, ws.Transactions.List().Loaded())

	got, err := ws.Transactions.View(TransactionFilter{Search: "aapl", Type: "buy", Range: "month", Sort: "amount", Order: "desc"})
	require.NoError(t, err)
	assert.Empty(t, got)

	api.mu.Lock()
	api.listErr = nil
	api.mu.Unlock()
	tx, err := ws.Transactions.Create(context.Background(), ledger.Form{
		PortfolioID: "1", Type: models.TxBuy, Symbol: "aapl", AssetID: "a1", Quantity: "2", Price: "50", Fees: "1",
	})
	require.NoError(t, err)
	assert.Equal(t, 101.0, tx.TotalAmount)
	assert.Equal(t, []string{"tx-new"}, txIDs(ws.Transactions.List().Items()))
}

func TestTransactions_ViewFilters(t *testing.T) {
	ws := newTestWorkspace(t, fixtureAPI(), nil)
	require.NoError(t, ws.Load(context.Background()))

	got, err := ws.Transactions.View(TransactionFilter{Portfolio: "growth"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t3"}, txIDs(got))

	got, err = ws.Transactions.View(TransactionFilter{Portfolio: "2", Range: "year"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, txIDs(got))

	got, err = ws.Transactions.View(TransactionFilter{Search: "aap", Sort: "amount"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t3", "t1"}, txIDs(got))

	got, err = ws.Transactions.View(TransactionFilter{Type: "All", Sort: "date", Order: "desc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2", "t3", "t4"}, txIDs(got))

	_, err = ws.Transactions.View(TransactionFilter{Type: "gift"})
	assert.Error(t, err)
	_, err = ws.Transactions.View(TransactionFilter{Range: "decade"})
	assert.Error(t, err)
	_, err = ws.Transactions.View(TransactionFilter{Sort: "colour"})
	assert.ErrorContains(t, err, "amount, date")
}

func TestTransactions_ValidationBlocksNetwork(t *testing.T) {
	api := fixtureAPI()
	ws := newTestWorkspace(t, api, nil)

	_, err := ws.Transactions.Create(context.Background(), ledger.Form{PortfolioID: "1", Type: models.TxBuy, Symbol: "TSLA", Quantity: "1", Price: "10"})
	var verrs ledger.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Zero(t, api.called("CreateTransaction"))
	assert.Empty(t, ws.Feed.List())
}

func TestMutationFailureLeavesStateUnchanged(t *testing.T) {
	api := fixtureAPI()
	ws := newTestWorkspace(t, api, nil)
	require.NoError(t, ws.Load(context.Background()))
	before := ws.Portfolios.List().Items()

	api.mu.Lock()
	api.mutateErr = errDown
	api.mu.Unlock()

	_, err := ws.Portfolios.Update(context.Background(), "1", ledger.PortfolioForm{Name: "Renamed"})
	require.ErrorIs(t, err, errDown)
	err = ws.Portfolios.Delete(context.Background(), "2", true)
	require.ErrorIs(t, err, errDown)

	assert.Equal(t, before, ws.Portfolios.List().Items())
	feed := ws.Feed.List()
	require.Len(t, feed, 2)
	assert.Equal(t, KindError, feed[0].Kind)
	assert.Equal(t, "delete portfolio 2", feed[0].Action)
}

func TestPortfolios_CRUDReconcilesList(t *testing.T) {
	ws := newTestWorkspace(t, fixtureAPI(), nil)
	require.NoError(t, ws.Load(context.Background()))

	created, err := ws.Portfolios.Create(context.Background(), ledger.PortfolioForm{Name: "Moonshots", RiskTolerance: "aggressive"})
	require.NoError(t, err)
	assert.Equal(t, models.ID("new"), created.ID)

	updated, err := ws.Portfolios.Update(context.Background(), "1", ledger.PortfolioForm{Name: "Growth II"})
	require.NoError(t, err)
	assert.Equal(t, models.ID("1"), updated.ID, "missing id in the response is filled from the request")

	require.NoError(t, ws.Portfolios.Delete(context.Background(), "2", true))

	items := ws.Portfolios.List().Items()
	assert.Equal(t, []string{"new", "1"}, ids(items, func(p models.Portfolio) models.ID { return p.ID }))
	assert.Equal(t, "Growth II", items[1].Name)

	feed := ws.Feed.List()
	require.Len(t, feed, 3)
	assert.Equal(t, `Portfolio "Income" deleted`, feed[0].Message)
	assert.Equal(t, KindSuccess, feed[2].Kind)
}

func TestPortfolios_DeleteRequiresConfirmation(t *testing.T) {
	api := fixtureAPI()
	ws := newTestWorkspace(t, api, nil)
	require.NoError(t, ws.Load(context.Background()))

	assert.ErrorIs(t, ws.Portfolios.Delete(context.Background(), "1", false), ErrUnconfirmed)
	assert.Zero(t, api.called("DeletePortfolio"))
	assert.Len(t, ws.Portfolios.List().Items(), 2)
}

func TestPortfolios_DeletingSelectedClearsSelection(t *testing.T) {
	sel := &fakeSelections{selected: "1"}
	ws := newTestWorkspace(t, fixtureAPI(), sel)
	require.NoError(t, ws.Load(context.Background()))

	require.NoError(t, ws.Portfolios.Delete(context.Background(), "2", true))
	assert.Equal(t, models.ID("1"), sel.selected, "deleting another portfolio keeps the selection")

	require.NoError(t, ws.Portfolios.Delete(context.Background(), "1", true))
	assert.True(t, sel.selected.IsZero())
	sess := ws.Session()
	assert.False(t, sess.HasSelection())
	assert.Equal(t, []models.ID{"2", "1"}, sel.deleted)

	got, err := ws.Portfolios.View(PortfolioFilter{Sort: "name"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPortfolios_ViewFilters(t *testing.T) {
	ws := newTestWorkspace(t, fixtureAPI(), nil)
	require.NoError(t, ws.Load(context.Background()))

	got, err := ws.Portfolios.View(PortfolioFilter{Visibility: "public"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids(got, func(p models.Portfolio) models.ID { return p.ID }))

	got, err = ws.Portfolios.View(PortfolioFilter{Sort: "cash"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, ids(got, func(p models.Portfolio) models.ID { return p.ID }))
}

func TestBusy_RejectsDuplicateSubmission(t *testing.T) {
	api := fixtureAPI()
	ws := newTestWorkspace(t, api, nil)
	gate := make(chan struct{})
	api.mu.Lock()
	api.gate = gate
	api.mu.Unlock()

	form := ledger.PortfolioForm{Name: "Dup"}
	done := make(chan error, 1)
	go func() {
		_, err := ws.Portfolios.Create(context.Background(), form)
		done <- err
	}()
	require.Eventually(t, func() bool { return api.called("CreatePortfolio") == 1 }, time.Second, 5*time.Millisecond)

	_, err := ws.Portfolios.Create(context.Background(), form)
	assert.ErrorIs(t, err, ErrBusy)

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, api.called("CreatePortfolio"))
}

func TestLifetime_ResultsAfterCloseAreDiscarded(t *testing.T) {
	api := fixtureAPI()
	ws := NewWorkspace(session.Session{ID: "s1"}, api, nil, Options{}, nil)
	gate := make(chan struct{})
	api.gate = gate

	done := make(chan error, 1)
	go func() { done <- ws.Portfolios.List().Load(context.Background()) }()
	require.Eventually(t, func() bool { return api.called("ListPortfolios") == 1 }, time.Second, 5*time.Millisecond)

	ws.Close()
	close(gate)
	assert.ErrorIs(t, <-done, ErrClosed)
	assert.Empty(t, ws.Portfolios.List().Items())
	assert.False(t, ws.Portfolios.List().Loaded())
	assert.False(t, ws.Alive())
}

func TestLifetime_BindCancelsOnClose(t *testing.T) {
	l := NewLifetime()
	ctx, cancel := l.Bind(context.Background())
	defer cancel()
	l.Close()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("bound context not cancelled")
	}
	assert.ErrorIs(t, l.Apply(func() { t.Fatal("applied after close") }), ErrClosed)
}

func TestFeed_BoundedNewestFirst(t *testing.T) {
	f := NewFeed()
	for i := 0; i < FeedLimit+7; i++ {
		f.Success("refresh", "n%d", i)
	}
	list := f.List()
	require.Len(t, list, FeedLimit)
	assert.Equal(t, fmt.Sprintf("n%d", FeedLimit+6), list[0].Message)
	assert.Equal(t, "n7", list[FeedLimit-1].Message)

	assert.True(t, f.Dismiss(list[0].ID))
	assert.False(t, f.Dismiss(list[0].ID))
	assert.Len(t, f.List(), FeedLimit-1)

	n := f.Failure("delete portfolio 3", errDown)
	assert.Equal(t, "delete portfolio 3 failed: folio-server unavailable", n.Message)
}

func TestSummarize(t *testing.T) {
	ws := newTestWorkspace(t, fixtureAPI(), nil)
	require.NoError(t, ws.Load(context.Background()))
	tot := Summarize(ws.Transactions.List().Items())
	assert.Equal(t, Totals{Count: 4, Debits: 105, Credits: 212.5, Fees: 5, Net: 107.5}, tot)
}

func TestAssets_ViewAndCategories(t *testing.T) {
	ws := newTestWorkspace(t, fixtureAPI(), nil)
	require.NoError(t, ws.Load(context.Background()))

	assert.Equal(t, []string{"crypto", "ETF", "Stock"}, ws.Assets.Categories())

	lo, hi := 70.0, 300.0
	got, err := ws.Assets.View(AssetFilter{Category: "etf", MinPrice: &lo, MaxPrice: &hi, Sort: "price"})
	require.NoError(t, err)
	assert.Equal(t, []string{"BND", "VTI"}, []string{got[0].Symbol, got[1].Symbol})

	_, err = ws.Assets.View(AssetFilter{MinPrice: &hi, MaxPrice: &lo})
	assert.Error(t, err)

	a, ok := ws.Assets.Resolve("btc")
	require.True(t, ok)
	assert.Equal(t, models.ID("a3"), a.ID)
}

func TestAssets_SearchDebouncedOnlyLastQueryDispatched(t *testing.T) {
	api := fixtureAPI()
	ws := NewWorkspace(session.Session{ID: "s1"}, api, nil, Options{SearchDebounce: 100 * time.Millisecond}, nil)
	t.Cleanup(ws.Close)

	type result struct {
		assets []models.Asset
		err    error
	}
	queries := []string{"a", "ap", "app", "appl"}
	results := make([]chan result, len(queries))
	for i, q := range queries {
		results[i] = make(chan result, 1)
		go func() {
			assets, err := ws.Assets.SearchDebounced(context.Background(), "symbol", q)
			results[i] <- result{assets, err}
		}()
		time.Sleep(3 * time.Millisecond)
	}

	last := <-results[len(queries)-1]
	require.NoError(t, last.err)
	require.Len(t, last.assets, 1)
	assert.Equal(t, "appl", last.assets[0].Symbol)
	for _, ch := range results[:len(queries)-1] {
		assert.ErrorIs(t, (<-ch).err, ErrSuperseded)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, []string{"appl"}, api.searches)
}

func TestAssets_EmptySearchMakesNoCall(t *testing.T) {
	api := fixtureAPI()
	ws := newTestWorkspace(t, api, nil)
	got, err := ws.Assets.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, api.called("SearchAssets"))
}

func rawPoint(date string, o, h, l, c, v float64) models.RawPricePoint {
	return models.RawPricePoint{
		Date:   json.RawMessage(`"` + date + `"`),
		Open:   models.Num(o),
		High:   models.Num(h),
		Low:    models.Num(l),
		Close:  models.Num(c),
		Volume: models.Num(v),
	}
}

func TestAssets_MetricsScenario(t *testing.T) {
	api := fixtureAPI()
	api.history = []models.RawPricePoint{
		rawPoint("2026-01-06", 100, 112, 100, 110, 10),
		rawPoint("2026-01-05", 100, 105, 95, 100, 10),
		{Date: json.RawMessage(`"2026-01-07"`), Close: models.Numeric{}},
	}
	ws := newTestWorkspace(t, api, nil)

	m, ok, err := ws.Assets.Metrics(context.Background(), "aapl", chart.PeriodAll)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 10.0, m.TotalReturnPct, 1e-9)
	assert.InDelta(t, 12.0, m.MaxGainPct, 1e-9)
	assert.InDelta(t, -5.0, m.MaxLossPct, 1e-9)

	api.history = api.history[:1]
	_, ok, err = ws.Assets.Metrics(context.Background(), "aapl", chart.PeriodAll)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAssets_ChartRebuildsOnlyOnChange(t *testing.T) {
	api := fixtureAPI()
	api.history = []models.RawPricePoint{
		rawPoint("2026-01-05", 100, 105, 95, 100, 10),
		rawPoint("2026-01-06", 100, 112, 100, 110, 12),
		rawPoint("2026-01-07", 110, 115, 108, 114, 9),
	}
	ws := newTestWorkspace(t, api, nil)
	req := ChartRequest{Symbol: "AAPL", Period: chart.PeriodAll, Options: chart.Options{Width: 400, Height: 200}}

	var buf bytes.Buffer
	require.NoError(t, ws.Assets.Chart(context.Background(), req, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
	require.NoError(t, ws.Assets.Chart(context.Background(), req, &buf))
	assert.Equal(t, 1, ws.Assets.ChartBuilds())

	resize := req
	resize.Resize = true
	resize.Options.Width = 600
	require.NoError(t, ws.Assets.Chart(context.Background(), resize, &buf))
	assert.Equal(t, 1, ws.Assets.ChartBuilds())

	buf.Reset()
	require.NoError(t, ws.Assets.Chart(context.Background(), req, &buf))
	assert.Equal(t, 2, ws.Assets.ChartBuilds(), "original size after a resize rebuilds")
	cfg, err := png.DecodeConfig(&buf)
	require.NoError(t, err)
	assert.Equal(t, 400, cfg.Width)

	other := resize
	other.Symbol = "MSFT"
	require.NoError(t, ws.Assets.Chart(context.Background(), other, &buf))
	assert.Equal(t, 3, ws.Assets.ChartBuilds(), "resize for another symbol rebuilds")

	themed := other
	themed.Resize = false
	themed.Options.Theme = chart.ThemeDark
	require.NoError(t, ws.Assets.Chart(context.Background(), themed, &buf))
	assert.Equal(t, 4, ws.Assets.ChartBuilds())
}

func TestHoldings_CRUDAndTotals(t *testing.T) {
	api := fixtureAPI()
	ws := newTestWorkspace(t, api, nil)
	require.NoError(t, ws.Load(context.Background()))

	tot := SumHoldings(ws.Holdings.List().Items())
	assert.Equal(t, HoldingTotals{Count: 2, MarketValue: 2300, CostBasis: 1500, UnrealizedPnL: 800, ReturnPct: 53.33}, tot)

	_, err := ws.Holdings.Create(context.Background(), ledger.HoldingForm{Symbol: "BTC", Quantity: "1", PurchasePrice: "1"})
	require.Error(t, err)
	assert.Zero(t, api.called("CreateUserAsset"))

	h, err := ws.Holdings.Create(context.Background(), ledger.HoldingForm{AssetID: "a3", Symbol: "btc", Quantity: "0.5", PurchasePrice: "50000"})
	require.NoError(t, err)
	assert.Equal(t, "BTC", h.Symbol)

	require.NoError(t, ws.Holdings.Delete(context.Background(), "h2", true))
	got, err := ws.Holdings.View(HoldingFilter{Sort: "value", Order: "desc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"h1", "h-new"}, ids(got, func(a models.UserAsset) models.ID { return a.ID }))
}

func TestRegistry_LifecycleAndMarketRefresh(t *testing.T) {
	api := fixtureAPI()
	r := NewRegistry(api, nil, Options{}, nil)

	ws, created := r.Get(session.Session{ID: "s1", Token: "a"})
	require.True(t, created)
	again, created := r.Get(session.Session{ID: "s1", Token: "b"})
	assert.False(t, created)
	assert.Same(t, ws, again)
	assert.Equal(t, "b", ws.Session().Token)

	r.Get(session.Session{ID: "s2"})
	assert.Equal(t, 2, r.RefreshMarket(context.Background()))
	assert.Len(t, ws.Assets.List().Items(), 4)

	r.Close("s1")
	assert.False(t, ws.Alive())
	_, ok := r.Lookup("s1")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())

	r.CloseAll()
	assert.Zero(t, r.Len())
}

func TestRegistry_SweepClosesDeadSessions(t *testing.T) {
	r := NewRegistry(fixtureAPI(), nil, Options{}, nil)
	live, _ := r.Get(session.Session{ID: "live"})
	dead, _ := r.Get(session.Session{ID: "dead"})

	closed := r.Sweep(func(id string) bool { return id == "live" })

	assert.Equal(t, 1, closed)
	assert.True(t, live.Alive())
	assert.False(t, dead.Alive())
	assert.Equal(t, 1, r.Len())
}
