package chart

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"sync"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/models"
)

// NoDataMessage is drawn when a series has fewer than two points.
const NoDataMessage = "No price data"

// Surface owns one chart instance. Update tears the instance down and
// builds a new one only when the series, overlays, theme or size changed;
// Resize reflows the existing instance.
type Surface struct {
	mu     sync.Mutex
	logger *common.Logger

	key    uint64
	opts   Options
	graph  *chart.Chart
	builds int
}

// NewSurface returns an empty surface.
func NewSurface(logger *common.Logger) *Surface {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Surface{logger: logger}
}

// Update applies new inputs and reports whether the chart was rebuilt.
func (s *Surface) Update(points []models.PricePoint, overlays []IndicatorSeries, opts Options) bool {
	opts = opts.withDefaults()
	sorted := SortByDate(points)
	key := fingerprint(sorted, overlays, opts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.builds > 0 && key == s.key && opts == s.opts {
		return false
	}

	s.teardown()
	s.key = key
	s.opts = opts
	if len(sorted) >= 2 {
		s.graph = buildGraph(sorted, overlays, opts)
	}
	s.builds++
	s.logger.Debug().
		Int("points", len(sorted)).
		Int("overlays", len(overlays)).
		Str("theme", string(opts.Theme)).
		Int("build", s.builds).
		Msg("chart rebuilt")
	return true
}

// Resize changes the viewport of the current instance without a rebuild.
// A later Update asking for any other size rebuilds.
func (s *Surface) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.Width, s.opts.Height = width, height
	if s.graph != nil {
		s.graph.Width, s.graph.Height = width, height
	}
}

// Builds reports how many times the chart has been constructed.
func (s *Surface) Builds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builds
}

// Size returns the current viewport.
func (s *Surface) Size() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.Width, s.opts.Height
}

// Render writes the chart as PNG, or the no-data placeholder.
func (s *Surface) Render(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.builds == 0 {
		s.opts = s.opts.withDefaults()
	}
	if s.graph == nil {
		return renderEmpty(w, NoDataMessage, s.opts)
	}
	if err := s.graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("chart render failed: %w", err)
	}
	return nil
}

// Close releases the chart instance.
func (s *Surface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardown()
}

func (s *Surface) teardown() {
	s.graph = nil
}

// RenderPNG is a one-shot build and render.
func RenderPNG(w io.Writer, points []models.PricePoint, overlays []IndicatorSeries, opts Options) error {
	s := NewSurface(nil)
	s.Update(points, overlays, opts)
	return s.Render(w)
}

func fingerprint(points []models.PricePoint, overlays []IndicatorSeries, opts Options) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	putInt := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	putFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}

	fmt.Fprintf(h, "%s|%s|", opts.Title, opts.Theme)
	putInt(int64(len(points)))
	for _, p := range points {
		putInt(p.Date.UnixNano())
		putFloat(p.Open)
		putFloat(p.High)
		putFloat(p.Low)
		putFloat(p.Close)
		putFloat(p.Volume)
	}
	for _, o := range overlays {
		fmt.Fprintf(h, "%s|", o.Name)
		putInt(int64(len(o.Points)))
		for _, p := range o.Points {
			putInt(p.Time.UnixNano())
			putFloat(p.Value)
		}
	}
	return h.Sum64()
}
