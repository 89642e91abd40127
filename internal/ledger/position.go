package ledger

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio-portal/internal/models"
)

// ApplySplit returns the quantity held after a split issuing ratio new
// shares per old share: 2 for a 2-for-1 split, 0.25 for a 1-for-4 reverse
// split. A non-positive ratio leaves the quantity unchanged.
func ApplySplit(quantity, ratio decimal.Decimal) decimal.Decimal {
	if !ratio.IsPositive() {
		return quantity
	}
	return quantity.Mul(ratio).Round(quantityPlaces)
}

// Positions replays txs in date order and returns the share count held per
// symbol. Buys and inbound transfers add, sells and outbound transfers
// subtract, splits multiply. Symbols that net to zero are omitted.
func Positions(txs []models.Transaction) map[string]decimal.Decimal {
	ordered := slices.Clone(txs)
	slices.SortStableFunc(ordered, func(a, b models.Transaction) int {
		return a.Date.Compare(b.Date)
	})

	held := make(map[string]decimal.Decimal)
	for _, tx := range ordered {
		symbol := strings.ToUpper(strings.TrimSpace(tx.Symbol))
		if symbol == "" {
			continue
		}
		q := decimal.NewFromFloat(tx.Quantity)
		switch tx.Type {
		case models.TxBuy, models.TxTransferIn:
			held[symbol] = held[symbol].Add(q)
		case models.TxSell, models.TxTransferOut:
			held[symbol] = held[symbol].Sub(q)
		case models.TxSplit:
			held[symbol] = ApplySplit(held[symbol], decimal.NewFromFloat(tx.SplitRatio))
		}
	}
	for symbol, q := range held {
		if q.IsZero() {
			delete(held, symbol)
		}
	}
	return held
}
