package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beast1090/internal/beast"
)

type fakeFrames struct{ stats beast.Stats }

func (f *fakeFrames) Stats() beast.Stats { return f.stats }

type fakeAircraft int

func (f fakeAircraft) Count() int { return int(f) }

func TestCollector_ReadsSources(t *testing.T) {
	frames := &fakeFrames{stats: beast.Stats{
		Frames:         map[byte]uint64{beast.ModeAC: 1, beast.ModeS: 2, beast.ModeSLong: 7},
		Resyncs:        3,
		UnknownTypes:   4,
		DiscardedBytes: 12,
	}}

	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg, frames, fakeAircraft(5))
	require.NoError(t, err)

	c.Positions.Inc()
	c.Positions.Inc()

	expected := `
# HELP beast_frames_total Beast frames decoded, labeled by type byte.
# TYPE beast_frames_total counter
beast_frames_total{type="0x31"} 1
beast_frames_total{type="0x32"} 2
beast_frames_total{type="0x33"} 7
# HELP beast_resyncs_total Frames abandoned because a sync byte arrived before they were complete.
# TYPE beast_resyncs_total counter
beast_resyncs_total 3
# HELP tracker_aircraft Aircraft with a position in the last expiry window.
# TYPE tracker_aircraft gauge
tracker_aircraft 5
# HELP adsb_positions_total Airborne positions extracted from Beast frames.
# TYPE adsb_positions_total counter
adsb_positions_total 2
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"beast_frames_total", "beast_resyncs_total", "tracker_aircraft", "adsb_positions_total")
	assert.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Positions))
}

func TestCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	frames := &fakeFrames{}

	_, err := NewCollector(reg, frames, fakeAircraft(0))
	require.NoError(t, err)

	_, err = NewCollector(reg, frames, fakeAircraft(0))
	assert.Error(t, err)
}

func TestCollector_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg, &fakeFrames{}, fakeAircraft(0))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "beast_discarded_bytes_total 0")
	assert.Contains(t, rec.Body.String(), "beast_unknown_type_total 0")
}
