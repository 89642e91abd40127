package chart

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/bobmcallan/folio-portal/internal/models"
)

// IndicatorPoint is one sample of an overlay line.
type IndicatorPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// IndicatorSeries is a named overlay drawn on top of the price line.
type IndicatorSeries struct {
	Name   string           `json:"name"`
	Points []IndicatorPoint `json:"points"`
}

// Overlays holds indicator series keyed by name, in insertion order.
// Setting a name that is already present replaces that series in place.
type Overlays struct {
	order  []string
	byName map[string]IndicatorSeries
}

// Set stores s with its points sorted ascending by time.
func (o *Overlays) Set(s IndicatorSeries) {
	if o.byName == nil {
		o.byName = make(map[string]IndicatorSeries)
	}
	pts := slices.Clone(s.Points)
	slices.SortStableFunc(pts, func(a, b IndicatorPoint) int { return a.Time.Compare(b.Time) })
	s.Points = pts

	if _, ok := o.byName[s.Name]; !ok {
		o.order = append(o.order, s.Name)
	}
	o.byName[s.Name] = s
}

// Get returns the series stored under name.
func (o *Overlays) Get(name string) (IndicatorSeries, bool) {
	s, ok := o.byName[name]
	return s, ok
}

// Len reports the number of distinct series.
func (o *Overlays) Len() int { return len(o.order) }

// Series returns all series in insertion order.
func (o *Overlays) Series() []IndicatorSeries {
	out := make([]IndicatorSeries, 0, len(o.order))
	for _, name := range o.order {
		out = append(out, o.byName[name])
	}
	return out
}

// Names returns the series names in insertion order.
func (o *Overlays) Names() []string { return slices.Clone(o.order) }

// Indicator names a computed overlay, e.g. "sma20", "ema50" or "bbands20".
type Indicator string

// ParseIndicators splits a comma separated list, dropping blanks.
func ParseIndicators(s string) ([]Indicator, error) {
	var out []Indicator
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if _, _, err := Indicator(part).spec(); err != nil {
			return nil, err
		}
		out = append(out, Indicator(part))
	}
	return out, nil
}

func (ind Indicator) spec() (kind string, period int, err error) {
	s := string(ind)
	for _, k := range []string{"bbands", "sma", "ema"} {
		if rest, ok := strings.CutPrefix(s, k); ok {
			period, err = strconv.Atoi(rest)
			if err != nil || period < 2 || period > 400 {
				return "", 0, fmt.Errorf("invalid indicator period in %q", s)
			}
			return k, period, nil
		}
	}
	return "", 0, fmt.Errorf("unknown indicator %q", s)
}

// Compute derives the overlay series for ind from sorted points. Bands
// yield three series. Too short an input yields none.
func (ind Indicator) Compute(points []models.PricePoint) ([]IndicatorSeries, error) {
	kind, period, err := ind.spec()
	if err != nil {
		return nil, err
	}
	if len(points) < period {
		return nil, nil
	}
	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}

	name := strings.ToUpper(kind) + " " + strconv.Itoa(period)
	switch kind {
	case "sma":
		return []IndicatorSeries{series(name, points, talib.Sma(closes, period), period)}, nil
	case "ema":
		return []IndicatorSeries{series(name, points, talib.Ema(closes, period), period)}, nil
	default:
		upper, middle, lower := talib.BBands(closes, period, 2, 2, talib.SMA)
		return []IndicatorSeries{
			series("BB upper "+strconv.Itoa(period), points, upper, period),
			series("BB middle "+strconv.Itoa(period), points, middle, period),
			series("BB lower "+strconv.Itoa(period), points, lower, period),
		}, nil
	}
}

// series pairs talib output with point dates, skipping the lookback.
func series(name string, points []models.PricePoint, values []float64, period int) IndicatorSeries {
	s := IndicatorSeries{Name: name}
	for i := period - 1; i < len(values) && i < len(points); i++ {
		if math.IsNaN(values[i]) {
			continue
		}
		s.Points = append(s.Points, IndicatorPoint{Time: points[i].Date, Value: values[i]})
	}
	return s
}
