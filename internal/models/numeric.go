package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Numeric is a number as folio-server sends it in price history: a JSON
// number, a numeric string, or null. Valid is false when the value could
// not be coerced to a finite float.
type Numeric struct {
	Value float64
	Valid bool
}

// Num returns a valid Numeric.
func Num(v float64) Numeric {
	return Numeric{Value: v, Valid: !math.IsNaN(v) && !math.IsInf(v, 0)}
}

// UnmarshalJSON never fails; unparseable input yields an invalid Numeric.
func (n *Numeric) UnmarshalJSON(data []byte) error {
	*n = Numeric{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	*n = Num(v)
	return nil
}

// MarshalJSON writes null for invalid values.
func (n Numeric) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// RawPricePoint is a price history row before coercion. Date may be a
// unix timestamp, an RFC 3339 string or a plain YYYY-MM-DD date.
type RawPricePoint struct {
	Date   json.RawMessage `json:"date"`
	Open   Numeric         `json:"open"`
	High   Numeric         `json:"high"`
	Low    Numeric         `json:"low"`
	Close  Numeric         `json:"close"`
	Volume Numeric         `json:"volume"`
}
