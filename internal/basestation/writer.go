package basestation

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"beast1090/internal/adsb"
)

// BaseStation message types
const (
	MessageTypeMSG = "MSG" // Transmission
)

// BaseStation transmission types
const (
	TransmissionESAirborne = 3 // Extended Squitter Airborne Position
)

const (
	dateLayout = "2006/01/02"
	timeLayout = "15:04:05.000"
)

// Message is one BaseStation (SBS-1) CSV record.
type Message struct {
	MessageType      string
	TransmissionType int
	SessionID        int
	AircraftID       int
	HexIdent         string
	FlightID         int
	Generated        time.Time
	Logged           time.Time
	Callsign         string
	Altitude         string
	GroundSpeed      string
	Track            string
	Latitude         string
	Longitude        string
	VerticalRate     string
	Squawk           string
	Alert            string
	Emergency        string
	SPI              string
	IsOnGround       string
}

// Writer writes decoded positions as BaseStation lines.
type Writer struct {
	out        io.Writer
	logger     *logrus.Logger
	sessionID  int
	aircraftID int
	now        func() time.Time
}

// NewWriter creates a writer emitting to out.
func NewWriter(out io.Writer, logger *logrus.Logger) *Writer {
	return &Writer{
		out:        out,
		logger:     logger,
		sessionID:  1,
		aircraftID: 1,
		now:        time.Now,
	}
}

// WritePosition writes an airborne position record for icao. generated is
// the time the frame was received.
func (w *Writer) WritePosition(icao string, pos adsb.Position, generated time.Time) error {
	if icao == "" {
		return fmt.Errorf("empty ICAO address")
	}

	line := FormatCSV(w.positionMessage(icao, pos, generated))
	if _, err := io.WriteString(w.out, line+"\n"); err != nil {
		return fmt.Errorf("failed to write BaseStation message: %w", err)
	}

	w.logger.WithFields(logrus.Fields{
		"icao": icao,
		"line": line,
	}).Debug("Wrote BaseStation message")

	return nil
}

func (w *Writer) positionMessage(icao string, pos adsb.Position, generated time.Time) *Message {
	msg := &Message{
		MessageType:      MessageTypeMSG,
		TransmissionType: TransmissionESAirborne,
		SessionID:        w.sessionID,
		AircraftID:       w.aircraftID,
		HexIdent:         icao,
		FlightID:         w.aircraftID,
		Generated:        generated,
		Logged:           w.now(),
		Latitude:         strconv.FormatFloat(pos.Latitude, 'f', 6, 64),
		Longitude:        strconv.FormatFloat(pos.Longitude, 'f', 6, 64),
		IsOnGround:       "0",
	}

	// 0 is the "not decoded" sentinel for Gillham coded altitudes. A Q-bit
	// altitude of exactly 0 ft (N=40) carries the same value and is omitted too.
	if pos.Altitude != 0 {
		msg.Altitude = strconv.Itoa(int(pos.Altitude))
	}

	return msg
}

// FormatCSV renders msg as a BaseStation CSV line without the newline.
func FormatCSV(msg *Message) string {
	fields := []string{
		msg.MessageType,
		strconv.Itoa(msg.TransmissionType),
		strconv.Itoa(msg.SessionID),
		strconv.Itoa(msg.AircraftID),
		msg.HexIdent,
		strconv.Itoa(msg.FlightID),
		msg.Generated.Format(dateLayout),
		msg.Generated.Format(timeLayout),
		msg.Logged.Format(dateLayout),
		msg.Logged.Format(timeLayout),
		msg.Callsign,
		msg.Altitude,
		msg.GroundSpeed,
		msg.Track,
		msg.Latitude,
		msg.Longitude,
		msg.VerticalRate,
		msg.Squawk,
		msg.Alert,
		msg.Emergency,
		msg.SPI,
		msg.IsOnGround,
	}

	return strings.Join(fields, ",")
}
