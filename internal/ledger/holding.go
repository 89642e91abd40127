package ledger

import (
	"strings"
	"time"

	"github.com/bobmcallan/folio-portal/internal/models"
)

// HoldingForm is the create/edit form of a directly tracked user asset.
type HoldingForm struct {
	AssetID       models.ID
	Symbol        string
	Quantity      string
	PurchasePrice string
	PurchaseDate  time.Time
}

// FormFromHolding seeds an edit form from a stored holding.
func FormFromHolding(a models.UserAsset) HoldingForm {
	return HoldingForm{
		AssetID:       a.AssetID,
		Symbol:        a.Symbol,
		Quantity:      formatFloat(a.Quantity),
		PurchasePrice: formatFloat(a.PurchasePrice),
		PurchaseDate:  a.PurchaseDate,
	}
}

// Input validates the form and builds the request body. now bounds the
// purchase date; a zero date defaults to now.
func (f HoldingForm) Input(now time.Time) (models.UserAssetInput, error) {
	var errs ValidationErrors

	if f.AssetID.IsZero() {
		errs.add("asset_id", "select an asset")
	}
	q, present, err := parseAmount(f.Quantity)
	switch {
	case err != nil:
		errs.add("quantity", "%v", err)
	case !present || !q.IsPositive():
		errs.add("quantity", "must be greater than 0")
	}
	p, present, err := parseAmount(f.PurchasePrice)
	switch {
	case err != nil:
		errs.add("purchase_price", "%v", err)
	case !present || !p.IsPositive():
		errs.add("purchase_price", "must be greater than 0")
	}
	date := f.PurchaseDate
	if date.IsZero() {
		date = now
	} else if date.After(now) {
		errs.add("purchase_date", "must not be in the future")
	}

	if err := errs.orNil(); err != nil {
		return models.UserAssetInput{}, err
	}
	return models.UserAssetInput{
		AssetID:       f.AssetID,
		Symbol:        strings.ToUpper(strings.TrimSpace(f.Symbol)),
		Quantity:      q.InexactFloat64(),
		PurchasePrice: p.InexactFloat64(),
		PurchaseDate:  date,
	}, nil
}
