package chart

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/folio-portal/internal/models"
)

// Theme selects the chart palette.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme accepts light or dark; empty is light.
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return ThemeLight, nil
	case ThemeLight, ThemeDark:
		return t, nil
	default:
		return "", fmt.Errorf("unknown theme %q", s)
	}
}

type palette struct {
	background drawing.Color
	text       drawing.Color
	grid       drawing.Color
	price      drawing.Color
	overlays   []drawing.Color
}

func (t Theme) palette() palette {
	overlays := []drawing.Color{
		drawing.ColorFromHex("f59e0b"), // amber-500
		drawing.ColorFromHex("10b981"), // emerald-500
		drawing.ColorFromHex("8b5cf6"), // violet-500
		drawing.ColorFromHex("ef4444"), // red-500
		drawing.ColorFromHex("06b6d4"), // cyan-500
	}
	if t == ThemeDark {
		return palette{
			background: drawing.ColorFromHex("111827"),
			text:       drawing.ColorFromHex("e5e7eb"),
			grid:       drawing.ColorFromHex("374151"),
			price:      drawing.ColorFromHex("60a5fa"),
			overlays:   overlays,
		}
	}
	return palette{
		background: drawing.ColorWhite,
		text:       drawing.ColorFromHex("1f2937"),
		grid:       drawing.ColorFromHex("e5e7eb"),
		price:      drawing.ColorFromHex("2563eb"), // blue-600
		overlays:   overlays,
	}
}

// Options control a chart build.
type Options struct {
	Title  string
	Width  int
	Height int
	Theme  Theme
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 900
	}
	if o.Height <= 0 {
		o.Height = 400
	}
	if o.Theme == "" {
		o.Theme = ThemeLight
	}
	return o
}

// buildGraph lays out the close line and overlays. points must be sorted
// and hold at least two entries.
func buildGraph(points []models.PricePoint, overlays []IndicatorSeries, opts Options) *chart.Chart {
	pal := opts.Theme.palette()

	xs := make([]time.Time, len(points))
	closes := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.Date
		closes[i] = p.Close
	}

	series := []chart.Series{
		chart.TimeSeries{
			Name:    "Close",
			Style:   chart.Style{StrokeColor: pal.price, StrokeWidth: 2},
			XValues: xs,
			YValues: closes,
		},
	}
	for i, o := range overlays {
		if len(o.Points) < 2 {
			continue
		}
		ox := make([]time.Time, len(o.Points))
		oy := make([]float64, len(o.Points))
		for j, p := range o.Points {
			ox[j], oy[j] = p.Time, p.Value
		}
		series = append(series, chart.TimeSeries{
			Name: o.Name,
			Style: chart.Style{
				StrokeColor:     pal.overlays[i%len(pal.overlays)],
				StrokeWidth:     1.2,
				StrokeDashArray: []float64{4.0, 2.0},
			},
			XValues: ox,
			YValues: oy,
		})
	}

	axisStyle := chart.Style{FontColor: pal.text, StrokeColor: pal.grid}
	span := points[len(points)-1].Date.Sub(points[0].Date)

	graph := &chart.Chart{
		Title:      opts.Title,
		TitleStyle: chart.Style{FontColor: pal.text},
		Width:      opts.Width,
		Height:     opts.Height,
		Background: chart.Style{
			FillColor: pal.background,
			Padding:   chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		Canvas: chart.Style{FillColor: pal.background},
		XAxis: chart.XAxis{
			Style:        axisStyle,
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format(dateLayout(span))
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Style: axisStyle,
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.2f", f)
				}
				return ""
			},
		},
		Series: series,
	}
	if len(series) > 1 {
		graph.Elements = []chart.Renderable{chart.LegendLeft(graph)}
	}
	return graph
}

func dateLayout(span time.Duration) string {
	if span > 180*24*time.Hour {
		return "Jan 06"
	}
	return "Jan 02"
}

// renderEmpty draws the placeholder image used when there is nothing to plot.
func renderEmpty(w io.Writer, message string, opts Options) error {
	pal := opts.Theme.palette()
	r, err := chart.PNG(opts.Width, opts.Height)
	if err != nil {
		return err
	}
	r.SetFillColor(pal.background)
	r.MoveTo(0, 0)
	r.LineTo(opts.Width, 0)
	r.LineTo(opts.Width, opts.Height)
	r.LineTo(0, opts.Height)
	r.Close()
	r.Fill()

	font, err := chart.GetDefaultFont()
	if err != nil {
		return err
	}
	r.SetFont(font)
	r.SetFontColor(pal.text)
	r.SetFontSize(14)
	box := r.MeasureText(message)
	r.Text(message, (opts.Width-box.Width())/2, (opts.Height+box.Height())/2)
	return r.Save(w)
}
