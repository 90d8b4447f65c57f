package basestation

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beast1090/internal/adsb"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func newTestWriter(out io.Writer) *Writer {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	w := NewWriter(out, logger)
	w.now = func() time.Time { return time.Date(2023, 1, 1, 12, 0, 1, 500e6, time.UTC) }
	return w
}

func TestWriter_WritePosition(t *testing.T) {
	generated := time.Date(2023, 1, 1, 12, 0, 0, 250e6, time.UTC)

	tests := []struct {
		name     string
		pos      adsb.Position
		expected string
	}{
		{
			name: "With altitude",
			pos:  adsb.Position{Latitude: 180, Longitude: 180, Altitude: 1500},
			expected: "MSG,3,1,1,484412,1,2023/01/01,12:00:00.250,2023/01/01,12:00:01.500," +
				",1500,,,180.000000,180.000000,,,,,,0\n",
		},
		{
			name: "Gillham altitude omitted",
			pos:  adsb.Position{Latitude: 51.5, Longitude: 0.125},
			expected: "MSG,3,1,1,484412,1,2023/01/01,12:00:00.250,2023/01/01,12:00:01.500," +
				",,,,51.500000,0.125000,,,,,,0\n",
		},
		{
			name: "Zero feet omitted like Gillham",
			pos:  adsb.Position{Latitude: 1, Longitude: 2, Altitude: 0},
			expected: "MSG,3,1,1,484412,1,2023/01/01,12:00:00.250,2023/01/01,12:00:01.500," +
				",,,,1.000000,2.000000,,,,,,0\n",
		},
		{
			name: "Negative altitude",
			pos:  adsb.Position{Latitude: 1, Longitude: 2, Altitude: -1000},
			expected: "MSG,3,1,1,484412,1,2023/01/01,12:00:00.250,2023/01/01,12:00:01.500," +
				",-1000,,,1.000000,2.000000,,,,,,0\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := newTestWriter(&buf)

			require.NoError(t, w.WritePosition("484412", tt.pos, generated))
			assert.Equal(t, tt.expected, buf.String())
			assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), ","), 22)
		})
	}
}

func TestWriter_Errors(t *testing.T) {
	w := newTestWriter(failingWriter{})
	err := w.WritePosition("484412", adsb.Position{}, time.Now())
	assert.ErrorContains(t, err, "disk full")

	var buf bytes.Buffer
	w = newTestWriter(&buf)
	assert.Error(t, w.WritePosition("", adsb.Position{}, time.Now()))
	assert.Zero(t, buf.Len())
}
