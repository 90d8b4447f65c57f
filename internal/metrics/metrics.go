package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"beast1090/internal/beast"
)

// FrameStats is implemented by beast.Deframer.
type FrameStats interface {
	Stats() beast.Stats
}

// AircraftCounter is implemented by tracker.Tracker.
type AircraftCounter interface {
	Count() int
}

// Collector exposes decoder counters to Prometheus. Framing counters are
// read from the deframer on scrape; Positions is incremented by the caller.
type Collector struct {
	gatherer prometheus.Gatherer

	Positions prometheus.Counter
}

// NewCollector registers the decoder metrics against reg, defaulting to the
// global registry when nil.
func NewCollector(reg prometheus.Registerer, frames FrameStats, aircraft AircraftCounter) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "beast_resyncs_total",
			Help: "Frames abandoned because a sync byte arrived before they were complete.",
		}, func() float64 { return float64(frames.Stats().Resyncs) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "beast_unknown_type_total",
			Help: "Type selector bytes outside the Beast frame length table.",
		}, func() float64 { return float64(frames.Stats().UnknownTypes) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "beast_discarded_bytes_total",
			Help: "Bytes discarded while scanning for a sync byte.",
		}, func() float64 { return float64(frames.Stats().DiscardedBytes) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tracker_aircraft",
			Help: "Aircraft with a position in the last expiry window.",
		}, func() float64 { return float64(aircraft.Count()) }),
	}

	for _, msgType := range []byte{beast.ModeAC, beast.ModeS, beast.ModeSLong} {
		msgType := msgType
		collectors = append(collectors, prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "beast_frames_total",
			Help:        "Beast frames decoded, labeled by type byte.",
			ConstLabels: prometheus.Labels{"type": fmt.Sprintf("0x%02x", msgType)},
		}, func() float64 { return float64(frames.Stats().Frames[msgType]) }))
	}

	positions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adsb_positions_total",
		Help: "Airborne positions extracted from Beast frames.",
	})
	collectors = append(collectors, positions)

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return &Collector{
		gatherer:  gatherer,
		Positions: positions,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
