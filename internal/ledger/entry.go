package ledger

import "github.com/shopspring/decimal"

// quantityPlaces bounds derived share counts; brokers rarely go finer.
const quantityPlaces = 8

// Source tags which of the two linked fields the user edited last.
type Source int

const (
	SourceNone Source = iota
	SourceQuantity
	SourceAmount
)

func (s Source) String() string {
	switch s {
	case SourceQuantity:
		return "quantity"
	case SourceAmount:
		return "amount"
	default:
		return "none"
	}
}

// Entry links the "amount to spend" and "quantity" fields of the entry
// form. Exactly one of them is user-entered at any time, named by
// LastEdited; the other is derived through the price.
type Entry struct {
	price      decimal.Decimal
	quantity   decimal.Decimal
	amount     decimal.Decimal
	lastEdited Source
}

// LastEdited reports the authoritative field.
func (e *Entry) LastEdited() Source { return e.lastEdited }

// SetPrice updates the price and re-derives quantity when the amount is
// authoritative.
func (e *Entry) SetPrice(p decimal.Decimal) {
	e.price = p
	e.derive()
}

// SetQuantity makes quantity authoritative and clears the amount.
func (e *Entry) SetQuantity(q decimal.Decimal) {
	e.quantity = q
	e.amount = decimal.Zero
	e.lastEdited = SourceQuantity
}

// SetAmount makes the amount authoritative; quantity becomes amount/price
// and any typed quantity is discarded.
func (e *Entry) SetAmount(a decimal.Decimal) {
	e.amount = a
	e.lastEdited = SourceAmount
	e.derive()
}

func (e *Entry) derive() {
	if e.lastEdited != SourceAmount {
		return
	}
	if !e.price.IsPositive() {
		e.quantity = decimal.Zero
		return
	}
	e.quantity = e.amount.DivRound(e.price, quantityPlaces)
}

// Price returns the current price.
func (e *Entry) Price() decimal.Decimal { return e.price }

// Quantity returns the typed or derived quantity.
func (e *Entry) Quantity() decimal.Decimal { return e.quantity }

// Amount returns the typed amount, or zero when quantity is authoritative.
func (e *Entry) Amount() decimal.Decimal { return e.amount }

// Apply copies the resolved quantity and price into a Form.
func (e *Entry) Apply(f *Form) {
	if e.lastEdited == SourceNone {
		return
	}
	f.Quantity = e.quantity.String()
	if !e.price.IsZero() {
		f.Price = e.price.String()
	}
}
