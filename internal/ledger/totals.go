// Package ledger computes the derived amounts of transaction and portfolio
// forms and validates them before anything is sent to folio-server.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/models"
)

// IsMonetary reports whether quantity and price contribute to the total.
// Every other type carries only its fees.
func IsMonetary(t models.TransactionType) bool {
	switch t {
	case models.TxBuy, models.TxSell, models.TxDividend, models.TxTransferIn, models.TxTransferOut:
		return true
	}
	return false
}

// RequiresQuantity reports whether a quantity > 0 must be entered.
func RequiresQuantity(t models.TransactionType) bool {
	switch t {
	case models.TxFee, models.TxOther, models.TxSplit:
		return false
	}
	return true
}

// RequiresPrice reports whether a price > 0 must be entered.
func RequiresPrice(t models.TransactionType) bool {
	switch t {
	case models.TxBuy, models.TxSell, models.TxDividend, models.TxTransferIn, models.TxTransferOut,
		models.TxOptionExercise, models.TxRightsIssue:
		return true
	}
	return false
}

// Total is quantity*price+fees for monetary types and fees otherwise.
// The result is never negative for non-negative inputs.
func Total(t models.TransactionType, quantity, price, fees decimal.Decimal) decimal.Decimal {
	if !IsMonetary(t) {
		return fees
	}
	return quantity.Mul(price).Add(fees)
}

// TotalFloat is Total for callers holding float64 values.
func TotalFloat(t models.TransactionType, quantity, price, fees float64) float64 {
	return Total(t, decimal.NewFromFloat(quantity), decimal.NewFromFloat(price), decimal.NewFromFloat(fees)).
		Round(8).InexactFloat64()
}

// Direction is the cash-flow side a transaction type is presented on.
type Direction int

const (
	Neutral Direction = iota
	Debit
	Credit
)

func (d Direction) String() string {
	switch d {
	case Debit:
		return "debit"
	case Credit:
		return "credit"
	default:
		return "neutral"
	}
}

// DirectionOf maps outflows (buy, fee, transfer out) to Debit and inflows
// (sell, dividend, transfer in) to Credit.
func DirectionOf(t models.TransactionType) Direction {
	switch t {
	case models.TxBuy, models.TxFee, models.TxTransferOut:
		return Debit
	case models.TxSell, models.TxDividend, models.TxTransferIn:
		return Credit
	}
	return Neutral
}

// Signed applies the presentation sign to an always non-negative total.
func Signed(total float64, t models.TransactionType) float64 {
	if DirectionOf(t) == Debit {
		return -total
	}
	return total
}

// DisplayTotal renders a total with its debit/credit indicator, e.g.
// "-$101.00" for a buy and "+$50.00" for a dividend.
func DisplayTotal(total float64, t models.TransactionType, currency string) string {
	switch DirectionOf(t) {
	case Debit:
		return common.FormatMoney(-total, currency)
	case Credit:
		return common.FormatSignedMoney(total, currency)
	default:
		return common.FormatMoney(total, currency)
	}
}
