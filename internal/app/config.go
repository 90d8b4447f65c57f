package app

import (
	"errors"
	"fmt"
	"time"

	"beast1090/internal/beast"
	"beast1090/internal/proximity"
)

// Default configuration constants
const (
	DefaultAddress       = "127.0.0.1:30005" // dump1090 Beast output port
	DefaultLogDir        = "./logs"
	DefaultFraming       = "resync"
	DefaultPositionType  = beast.SyncByte
	DefaultStatsInterval = 30 * time.Second
	DefaultDialTimeout   = 10 * time.Second
	DefaultMaxAltitudeFt = 10000.0
)

// Config holds application configuration
type Config struct {
	Address      string // Beast TCP feed, used when InputFile is empty
	InputFile    string // recorded Beast stream, "-" for stdin
	Framing      string // "resync" or "doubled"
	PositionType uint8  // frame type byte accepted by the position interpreter
	LogDir       string
	LogRotateUTC bool
	RetainDays   int
	MetricsAddr  string
	Verbose      bool
	ShowVersion  bool

	// Proximity alerts, disabled while MaxDistanceKm is 0
	HomeLat       float64
	HomeLon       float64
	MaxDistanceKm float64
	MaxAltitudeFt float64
}

// Proximity returns the alert envelope settings.
func (c Config) Proximity() proximity.Config {
	return proximity.Config{
		HomeLat:       c.HomeLat,
		HomeLon:       c.HomeLon,
		MaxDistanceKm: c.MaxDistanceKm,
		MaxAltitudeFt: c.MaxAltitudeFt,
	}
}

// Validate checks the configuration for values the application cannot run
// with.
func (c Config) Validate() error {
	if c.Address == "" && c.InputFile == "" {
		return errors.New("either an address or an input file is required")
	}
	if c.LogDir == "" {
		return errors.New("log directory is required")
	}
	if c.RetainDays < 0 {
		return errors.New("retain days must not be negative")
	}
	if _, err := beast.ParseFramingMode(c.Framing); err != nil {
		return err
	}
	if err := c.Proximity().Validate(); err != nil {
		return fmt.Errorf("invalid proximity settings: %w", err)
	}
	return nil
}
