package models

import (
	"fmt"
	"strings"
	"time"
)

// TransactionType enumerates the events that affect a portfolio.
type TransactionType string

const (
	TxBuy            TransactionType = "buy"
	TxSell           TransactionType = "sell"
	TxDividend       TransactionType = "dividend"
	TxSplit          TransactionType = "split"
	TxMerger         TransactionType = "merger"
	TxSpinOff        TransactionType = "spin_off"
	TxRightsIssue    TransactionType = "rights_issue"
	TxOptionExercise TransactionType = "option_exercise"
	TxTransferIn     TransactionType = "transfer_in"
	TxTransferOut    TransactionType = "transfer_out"
	TxFee            TransactionType = "fee"
	TxOther          TransactionType = "other"
)

// TransactionTypes lists every type in display order.
var TransactionTypes = []TransactionType{
	TxBuy, TxSell, TxDividend, TxSplit, TxMerger, TxSpinOff, TxRightsIssue,
	TxOptionExercise, TxTransferIn, TxTransferOut, TxFee, TxOther,
}

// ParseTransactionType accepts the canonical names plus the hyphenated
// spellings some clients send ("spin-off", "transfer-in").
func ParseTransactionType(s string) (TransactionType, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for _, t := range TransactionTypes {
		if string(t) == norm {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

// Transaction is a recorded portfolio event.
type Transaction struct {
	ID            ID              `json:"id"`
	PortfolioID   ID              `json:"portfolio_id"`
	PortfolioName string          `json:"portfolio_name,omitempty"`
	Type          TransactionType `json:"transaction_type"`
	Symbol        string          `json:"symbol"`
	AssetID       ID              `json:"asset_id"`
	Quantity      float64         `json:"quantity"`
	Price         float64         `json:"price"`
	Fees          float64         `json:"fees"`
	Notes         string          `json:"notes,omitempty"`
	Date          time.Time       `json:"transaction_date"`
	TotalAmount   float64         `json:"total_amount"`
	SplitRatio    float64         `json:"split_ratio,omitempty"`
}

// TransactionInput is the body of create and update calls.
type TransactionInput struct {
	PortfolioID ID              `json:"portfolio_id"`
	Type        TransactionType `json:"transaction_type"`
	AssetID     ID              `json:"asset_id"`
	Symbol      string          `json:"symbol"`
	Quantity    float64         `json:"quantity"`
	Price       float64         `json:"price"`
	Fees        float64         `json:"fees"`
	Notes       string          `json:"notes,omitempty"`
	Date        time.Time       `json:"transaction_date"`
	TotalAmount float64         `json:"total_amount"`
	SplitRatio  float64         `json:"split_ratio,omitempty"`
}

// TransactionListOptions are the query parameters of GET /api/transactions.
type TransactionListOptions struct {
	Limit   int
	OrderBy string
	Order   string // "asc" or "desc"
}
