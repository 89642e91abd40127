package chart

import (
	"math"
	"time"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/bobmcallan/folio-portal/internal/models"
)

// atrPeriod is the conventional Wilder lookback.
const atrPeriod = 14

// OBVTrend classifies on-balance volume against price over the window.
type OBVTrend string

const (
	OBVRising            OBVTrend = "Rising/confirmation"
	OBVFalling           OBVTrend = "Falling/confirmation"
	OBVBearishDivergence OBVTrend = "Bearish divergence"
	OBVBullishDivergence OBVTrend = "Bullish divergence"
	OBVInconsistent      OBVTrend = "Inconsistent"
)

// Metrics summarises a price series. Percentages are expressed as
// percent (10 means 10%).
type Metrics struct {
	Points         int       `json:"points"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	FirstClose     float64   `json:"first_close"`
	LastClose      float64   `json:"last_close"`
	PeriodHigh     float64   `json:"period_high"`
	PeriodLow      float64   `json:"period_low"`
	TotalReturnPct float64   `json:"total_return_pct"`
	MaxGainPct     float64   `json:"max_gain_pct"`
	MaxLossPct     float64   `json:"max_loss_pct"`
	VolatilityPct  float64   `json:"volatility_pct"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct"`
	ATR            float64   `json:"atr"`
	OBVTrend       OBVTrend  `json:"obv_trend"`
	DailyReturns   []float64 `json:"daily_returns,omitempty"`
}

// Compute derives Metrics from points, which need not be sorted. It
// returns false when fewer than two points are available.
func Compute(points []models.PricePoint) (Metrics, bool) {
	pts := SortByDate(points)
	n := len(pts)
	if n < 2 {
		return Metrics{}, false
	}

	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, p := range pts {
		highs[i], lows[i], closes[i], volumes[i] = p.High, p.Low, p.Close, p.Volume
	}

	first, last := closes[0], closes[n-1]
	m := Metrics{
		Points:     n,
		Start:      pts[0].Date,
		End:        pts[n-1].Date,
		FirstClose: first,
		LastClose:  last,
		PeriodHigh: maxOf(highs),
		PeriodLow:  minOf(lows),
	}
	m.TotalReturnPct = pctChange(first, last)
	m.MaxGainPct = pctChange(first, m.PeriodHigh)
	m.MaxLossPct = pctChange(first, m.PeriodLow)

	m.DailyReturns = dailyReturns(closes)
	m.VolatilityPct = math.Sqrt(stat.PopVariance(m.DailyReturns, nil)) * 100
	m.MaxDrawdownPct = maxDrawdown(highs, lows) * 100
	m.ATR = averageTrueRange(highs, lows, closes)
	m.OBVTrend = obvTrend(closes, volumes)
	return m, true
}

func pctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

func maxOf(v []float64) float64 {
	out := v[0]
	for _, x := range v[1:] {
		out = math.Max(out, x)
	}
	return out
}

func minOf(v []float64) float64 {
	out := v[0]
	for _, x := range v[1:] {
		out = math.Min(out, x)
	}
	return out
}

// dailyReturns returns one fractional return per point; the first is 0.
func dailyReturns(closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] != 0 {
			out[i] = (closes[i] - closes[i-1]) / closes[i-1]
		}
	}
	return out
}

// maxDrawdown tracks the running peak high and measures each later low
// against it. The result is a non-negative fraction.
func maxDrawdown(highs, lows []float64) float64 {
	peak := highs[0]
	worst := 0.0
	for i := 1; i < len(highs); i++ {
		peak = math.Max(peak, highs[i])
		if peak <= 0 {
			continue
		}
		worst = math.Max(worst, (peak-lows[i])/peak)
	}
	return worst
}

// averageTrueRange is the mean true range over the last atrPeriod bars.
// talib.TRange leaves index 0 empty since it needs a previous close.
func averageTrueRange(highs, lows, closes []float64) float64 {
	tr := talib.TRange(highs, lows, closes)[1:]
	if len(tr) > atrPeriod {
		tr = tr[len(tr)-atrPeriod:]
	}
	return stat.Mean(tr, nil)
}

func obvTrend(closes, volumes []float64) OBVTrend {
	obv := talib.Obv(closes, volumes)
	price := closes[len(closes)-1] - closes[0]
	flow := obv[len(obv)-1] - obv[0]
	switch {
	case price > 0 && flow > 0:
		return OBVRising
	case price < 0 && flow < 0:
		return OBVFalling
	case price > 0 && flow < 0:
		return OBVBearishDivergence
	case price < 0 && flow > 0:
		return OBVBullishDivergence
	default:
		return OBVInconsistent
	}
}
