package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio-portal/internal/models"
)

// ValidationError describes one rejected form field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every problem found in a form.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v *ValidationErrors) add(field, format string, args ...any) {
	*v = append(*v, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// orNil returns nil for an empty list so callers can compare with nil.
func (v ValidationErrors) orNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// parseAmount reads an optional non-negative number. present is false for
// empty input.
func parseAmount(s string) (d decimal.Decimal, present bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false, nil
	}
	d, err = decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, true, fmt.Errorf("must be a number")
	}
	if d.IsNegative() {
		return decimal.Zero, true, fmt.Errorf("must not be negative")
	}
	return d, true, nil
}

// Form is the transaction entry form as typed by the user.
type Form struct {
	PortfolioID models.ID
	Type        models.TransactionType
	Symbol      string
	AssetID     models.ID // set only once Symbol is resolved against the catalog
	Quantity    string
	Price       string
	Fees        string
	SplitRatio  string
	Notes       string
	Date        time.Time
}

// FormFromTransaction seeds an edit form from a stored transaction.
func FormFromTransaction(tx models.Transaction) Form {
	f := Form{
		PortfolioID: tx.PortfolioID,
		Type:        tx.Type,
		Symbol:      tx.Symbol,
		AssetID:     tx.AssetID,
		Quantity:    formatFloat(tx.Quantity),
		Price:       formatFloat(tx.Price),
		Fees:        formatFloat(tx.Fees),
		Notes:       tx.Notes,
		Date:        tx.Date,
	}
	if tx.SplitRatio > 0 {
		f.SplitRatio = formatFloat(tx.SplitRatio)
	}
	return f
}

// Total computes the derived total, treating empty or invalid fields as 0.
// It is safe to call on an incomplete form for live display.
func (f Form) Total() decimal.Decimal {
	q, _, _ := parseAmount(f.Quantity)
	p, _, _ := parseAmount(f.Price)
	fees, _, _ := parseAmount(f.Fees)
	return Total(f.Type, q, p, fees)
}

// Validate checks the form in field order and returns ValidationErrors, or
// nil when the form can be submitted.
func (f Form) Validate() error {
	var errs ValidationErrors

	if f.PortfolioID.IsZero() {
		errs.add("portfolio_id", "select a portfolio")
	}
	typ, typeErr := models.ParseTransactionType(string(f.Type))
	typeOK := typeErr == nil
	if f.Type == "" {
		errs.add("transaction_type", "select a transaction type")
	} else if !typeOK {
		errs.add("transaction_type", "%v", typeErr)
	}
	if f.AssetID.IsZero() {
		if strings.TrimSpace(f.Symbol) == "" {
			errs.add("asset_id", "select an asset")
		} else {
			errs.add("asset_id", "symbol %q is not resolved to an asset; pick it from the search results", strings.TrimSpace(f.Symbol))
		}
	}

	q, qPresent, qErr := parseAmount(f.Quantity)
	switch {
	case qErr != nil:
		errs.add("quantity", "%v", qErr)
	case typeOK && RequiresQuantity(typ) && (!qPresent || !q.IsPositive()):
		errs.add("quantity", "must be greater than 0")
	}

	p, pPresent, pErr := parseAmount(f.Price)
	switch {
	case pErr != nil:
		errs.add("price", "%v", pErr)
	case typeOK && RequiresPrice(typ) && (!pPresent || !p.IsPositive()):
		errs.add("price", "must be greater than 0")
	}

	if _, _, err := parseAmount(f.Fees); err != nil {
		errs.add("fees", "%v", err)
	}

	if typ == models.TxSplit {
		r, present, err := parseAmount(f.SplitRatio)
		if err != nil || !present || !r.IsPositive() {
			errs.add("split_ratio", "must be greater than 0")
		}
	}

	return errs.orNil()
}

// Input validates the form and builds the request body with its total.
func (f Form) Input() (models.TransactionInput, error) {
	if err := f.Validate(); err != nil {
		return models.TransactionInput{}, err
	}
	q, _, _ := parseAmount(f.Quantity)
	p, _, _ := parseAmount(f.Price)
	fees, _, _ := parseAmount(f.Fees)
	ratio, _, _ := parseAmount(f.SplitRatio)
	typ, _ := models.ParseTransactionType(string(f.Type))

	date := f.Date
	if date.IsZero() {
		date = time.Now()
	}

	return models.TransactionInput{
		PortfolioID: f.PortfolioID,
		Type:        typ,
		AssetID:     f.AssetID,
		Symbol:      strings.ToUpper(strings.TrimSpace(f.Symbol)),
		Quantity:    q.InexactFloat64(),
		Price:       p.InexactFloat64(),
		Fees:        fees.InexactFloat64(),
		Notes:       strings.TrimSpace(f.Notes),
		Date:        date,
		TotalAmount: Total(typ, q, p, fees).Round(8).InexactFloat64(),
		SplitRatio:  ratio.InexactFloat64(),
	}, nil
}
