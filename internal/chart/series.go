// Package chart turns an OHLCV price series into summary metrics and a
// rendered PNG chart with indicator overlays.
package chart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/models"
)

// Coerce converts raw API rows into price points sorted by date. Rows with
// an unparseable date or any non-numeric OHLCV field are dropped and logged.
func Coerce(raw []models.RawPricePoint, logger *common.Logger) []models.PricePoint {
	out := make([]models.PricePoint, 0, len(raw))
	for i, r := range raw {
		date, err := parseDate(r.Date)
		if err != nil {
			warnDropped(logger, i, err.Error())
			continue
		}
		if field := firstInvalid(r); field != "" {
			warnDropped(logger, i, field+" is not numeric")
			continue
		}
		out = append(out, models.PricePoint{
			Date:   date,
			Open:   r.Open.Value,
			High:   r.High.Value,
			Low:    r.Low.Value,
			Close:  r.Close.Value,
			Volume: r.Volume.Value,
		})
	}
	return SortByDate(out)
}

func warnDropped(logger *common.Logger, index int, reason string) {
	if logger == nil {
		return
	}
	logger.Warn().Int("index", index).Str("reason", reason).Msg("dropping price point")
}

func firstInvalid(r models.RawPricePoint) string {
	switch {
	case !r.Open.Valid:
		return "open"
	case !r.High.Valid:
		return "high"
	case !r.Low.Valid:
		return "low"
	case !r.Close.Valid:
		return "close"
	case !r.Volume.Valid:
		return "volume"
	}
	return ""
}

// parseDate accepts unix seconds or milliseconds, RFC 3339 and YYYY-MM-DD.
func parseDate(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, fmt.Errorf("missing date")
	}
	if raw[0] != '"' {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return time.Time{}, fmt.Errorf("invalid date %s", raw)
		}
		v, err := n.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %s", raw)
		}
		if v > 1e11 {
			return time.UnixMilli(v).UTC(), nil
		}
		return time.Unix(v, 0).UTC(), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("invalid date %s", raw)
	}
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// SortByDate returns a copy of points in ascending date order. The API does
// not guarantee ordering, so every positional computation goes through it.
func SortByDate(points []models.PricePoint) []models.PricePoint {
	out := slices.Clone(points)
	slices.SortStableFunc(out, func(a, b models.PricePoint) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

// Period is a display window ending at the last point of the series.
type Period string

const (
	Period1W  Period = "1W"
	Period1M  Period = "1M"
	Period3M  Period = "3M"
	Period6M  Period = "6M"
	Period1Y  Period = "1Y"
	PeriodAll Period = "ALL"
)

// ParsePeriod accepts the period names case-insensitively; empty is ALL.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToUpper(strings.TrimSpace(s))); p {
	case "":
		return PeriodAll, nil
	case Period1W, Period1M, Period3M, Period6M, Period1Y, PeriodAll:
		return p, nil
	default:
		return "", fmt.Errorf("unknown period %q", s)
	}
}

func (p Period) start(end time.Time) (time.Time, bool) {
	switch p {
	case Period1W:
		return end.AddDate(0, 0, -7), true
	case Period1M:
		return end.AddDate(0, -1, 0), true
	case Period3M:
		return end.AddDate(0, -3, 0), true
	case Period6M:
		return end.AddDate(0, -6, 0), true
	case Period1Y:
		return end.AddDate(-1, 0, 0), true
	}
	return time.Time{}, false
}

// Window sorts points and keeps those inside the period, measured back
// from the most recent point.
func Window(points []models.PricePoint, p Period) []models.PricePoint {
	sorted := SortByDate(points)
	if len(sorted) == 0 {
		return sorted
	}
	start, ok := p.start(sorted[len(sorted)-1].Date)
	if !ok {
		return sorted
	}
	i, _ := slices.BinarySearchFunc(sorted, start, func(pt models.PricePoint, t time.Time) int {
		return pt.Date.Compare(t)
	})
	return sorted[i:]
}
