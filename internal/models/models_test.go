package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_UnmarshalNumberAndString(t *testing.T) {
	var p struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":42,"b":"p-7","c":null}`), &p))
	assert.Equal(t, ID("42"), p.A)
	assert.Equal(t, ID("p-7"), p.B)
	assert.True(t, p.C.IsZero())
}

func TestID_RejectsObjects(t *testing.T) {
	var id ID
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &id))
}

func TestNumeric_Coercion(t *testing.T) {
	var row RawPricePoint
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2024-01-02","open":"10.5","high":11,"low":null,"close":"abc","volume":1e3}`), &row))

	assert.Equal(t, Numeric{Value: 10.5, Valid: true}, row.Open)
	assert.Equal(t, Numeric{Value: 11, Valid: true}, row.High)
	assert.False(t, row.Low.Valid)
	assert.False(t, row.Close.Valid)
	assert.Equal(t, 1000.0, row.Volume.Value)
}

func TestNumeric_NaNStringIsInvalid(t *testing.T) {
	var n Numeric
	require.NoError(t, json.Unmarshal([]byte(`"NaN"`), &n))
	assert.False(t, n.Valid)
}

func TestParseTransactionType(t *testing.T) {
	tt, err := ParseTransactionType("Transfer-In")
	require.NoError(t, err)
	assert.Equal(t, TxTransferIn, tt)

	_, err = ParseTransactionType("gift")
	assert.Error(t, err)
}

func TestParseRiskTolerance(t *testing.T) {
	r, err := ParseRiskTolerance("")
	require.NoError(t, err)
	assert.Equal(t, RiskModerate, r)

	_, err = ParseRiskTolerance("yolo")
	assert.Error(t, err)
}

func TestUserAsset_Derived(t *testing.T) {
	a := UserAsset{Quantity: 10, PurchasePrice: 5, CurrentPrice: 7}
	assert.InDelta(t, 70.0, a.MarketValue(), 1e-9)
	assert.InDelta(t, 50.0, a.CostBasis(), 1e-9)
	assert.InDelta(t, 20.0, a.UnrealizedPnL(), 1e-9)
}
