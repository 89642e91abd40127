package models

import "time"

// PricePoint is one OHLCV bucket of a price series.
type PricePoint struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Asset is a market instrument from the catalog.
type Asset struct {
	ID           ID           `json:"id"`
	Symbol       string       `json:"symbol"`
	Name         string       `json:"name"`
	Exchange     string       `json:"exchange,omitempty"`
	Category     string       `json:"category"`
	CurrentPrice float64      `json:"current_price"`
	History      []PricePoint `json:"price_history,omitempty"`
}

// AssetListOptions are the query parameters of GET /api/market/assets.
type AssetListOptions struct {
	Limit         int
	IncludePrices bool
}

// Quote is the current price for one symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserAsset is a holding the user tracks directly.
type UserAsset struct {
	ID            ID        `json:"id"`
	AssetID       ID        `json:"asset_id"`
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	Quantity      float64   `json:"quantity"`
	PurchasePrice float64   `json:"purchase_price"`
	PurchaseDate  time.Time `json:"purchase_date"`
	CurrentPrice  float64   `json:"current_price"`
}

// MarketValue is quantity at the current price.
func (a UserAsset) MarketValue() float64 {
	return a.Quantity * a.CurrentPrice
}

// CostBasis is quantity at the purchase price.
func (a UserAsset) CostBasis() float64 {
	return a.Quantity * a.PurchasePrice
}

// UnrealizedPnL is market value minus cost basis.
func (a UserAsset) UnrealizedPnL() float64 {
	return a.MarketValue() - a.CostBasis()
}

// UserAssetInput is the body of holding create and update calls.
type UserAssetInput struct {
	AssetID       ID        `json:"asset_id"`
	Symbol        string    `json:"symbol"`
	Quantity      float64   `json:"quantity"`
	PurchasePrice float64   `json:"purchase_price"`
	PurchaseDate  time.Time `json:"purchase_date"`
}
