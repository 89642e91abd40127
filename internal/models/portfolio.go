package models

import (
	"fmt"
	"strings"
	"time"
)

// RiskTolerance is the risk profile configured on a portfolio.
type RiskTolerance string

const (
	RiskConservative RiskTolerance = "conservative"
	RiskModerate     RiskTolerance = "moderate"
	RiskAggressive   RiskTolerance = "aggressive"
)

// ParseRiskTolerance normalises s; an empty string maps to moderate.
func ParseRiskTolerance(s string) (RiskTolerance, error) {
	switch r := RiskTolerance(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RiskModerate, nil
	case RiskConservative, RiskModerate, RiskAggressive:
		return r, nil
	default:
		return "", fmt.Errorf("unknown risk tolerance %q", s)
	}
}

// Visibility controls whether a portfolio is listed publicly.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// Portfolio is a named collection of holdings and cash.
type Portfolio struct {
	ID            ID            `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	InitialCash   float64       `json:"initial_cash"`
	TargetReturn  float64       `json:"target_return"`
	RiskTolerance RiskTolerance `json:"risk_tolerance"`
	IsPublic      bool          `json:"is_public"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Visibility derives the enum from IsPublic.
func (p Portfolio) Visibility() Visibility {
	if p.IsPublic {
		return VisibilityPublic
	}
	return VisibilityPrivate
}

// PortfolioInput is the body of create and update calls.
type PortfolioInput struct {
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	InitialCash   float64       `json:"initial_cash"`
	TargetReturn  float64       `json:"target_return"`
	RiskTolerance RiskTolerance `json:"risk_tolerance"`
	IsPublic      bool          `json:"is_public"`
}

// PortfolioSummary is the opaque summary block returned for one portfolio.
type PortfolioSummary struct {
	PortfolioID   ID      `json:"portfolio_id"`
	TotalValue    float64 `json:"total_value"`
	CashBalance   float64 `json:"cash_balance"`
	TotalCost     float64 `json:"total_cost"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	HoldingsCount int     `json:"holdings_count"`
}
