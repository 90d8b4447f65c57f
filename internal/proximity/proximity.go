package proximity

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"beast1090/internal/tracker"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Config describes the alert envelope around a home position.
type Config struct {
	HomeLat       float64
	HomeLon       float64
	MaxDistanceKm float64
	MaxAltitudeFt float64
}

// Enabled reports whether an envelope has been configured.
func (c Config) Enabled() bool {
	return c.MaxDistanceKm > 0
}

// Validate rejects envelopes that cannot match any aircraft.
func (c Config) Validate() error {
	if c.HomeLat < -90 || c.HomeLat > 90 {
		return fmt.Errorf("home latitude %.4f out of range", c.HomeLat)
	}
	if c.HomeLon < -180 || c.HomeLon > 180 {
		return fmt.Errorf("home longitude %.4f out of range", c.HomeLon)
	}
	if c.MaxDistanceKm < 0 {
		return fmt.Errorf("max distance must not be negative, got %.1f", c.MaxDistanceKm)
	}
	if c.MaxAltitudeFt < 0 {
		return fmt.Errorf("max altitude must not be negative, got %.0f", c.MaxAltitudeFt)
	}
	return nil
}

// Alert is raised once when an aircraft enters the envelope.
type Alert struct {
	ICAO       string
	DistanceKm float64
	AltitudeFt float64
	Latitude   float64
	Longitude  float64
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(alert Alert) error
}

// LogNotifier writes each alert as an Info log line.
type LogNotifier struct {
	Logger *logrus.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(alert Alert) error {
	n.Logger.WithFields(logrus.Fields{
		"icao":        alert.ICAO,
		"distance_km": fmt.Sprintf("%.1f", alert.DistanceKm),
		"altitude_ft": fmt.Sprintf("%.0f", alert.AltitudeFt),
		"latitude":    alert.Latitude,
		"longitude":   alert.Longitude,
	}).Info("Aircraft detected")
	return nil
}

// Haversine returns the great-circle distance in kilometres between two
// points given in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Evaluator checks every tracked update against the envelope and notifies
// once per visit. It implements tracker.Observer.
type Evaluator struct {
	config   Config
	notifier Notifier
	logger   *logrus.Logger

	mu       sync.Mutex
	notified map[string]bool

	alerts atomic.Uint64
}

// NewEvaluator creates an evaluator. A nil notifier logs alerts.
func NewEvaluator(config Config, notifier Notifier, logger *logrus.Logger) *Evaluator {
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &Evaluator{
		config:   config,
		notifier: notifier,
		logger:   logger,
		notified: make(map[string]bool),
	}
}

// Observe evaluates the latest state of one aircraft.
func (e *Evaluator) Observe(a tracker.Aircraft) {
	distance := Haversine(e.config.HomeLat, e.config.HomeLon, a.Position.Latitude, a.Position.Longitude)
	altitude := a.Position.Altitude

	e.logger.WithFields(logrus.Fields{
		"icao":        a.ICAO,
		"distance_km": distance,
		"altitude_ft": altitude,
	}).Debug("Evaluating aircraft")

	inside := distance <= e.config.MaxDistanceKm && altitude <= e.config.MaxAltitudeFt

	e.mu.Lock()
	if !inside {
		delete(e.notified, a.ICAO)
		e.mu.Unlock()
		return
	}
	if e.notified[a.ICAO] {
		e.mu.Unlock()
		return
	}
	e.notified[a.ICAO] = true
	e.mu.Unlock()

	e.alerts.Add(1)
	alert := Alert{
		ICAO:       a.ICAO,
		DistanceKm: distance,
		AltitudeFt: altitude,
		Latitude:   a.Position.Latitude,
		Longitude:  a.Position.Longitude,
	}
	if err := e.notifier.Notify(alert); err != nil {
		e.logger.WithError(err).WithField("icao", a.ICAO).Error("Failed to send notification")
	}
}

// Forget drops the notified flag of an expired aircraft.
func (e *Evaluator) Forget(icao string) {
	e.mu.Lock()
	delete(e.notified, icao)
	e.mu.Unlock()
}

// Alerts returns the number of alerts raised so far.
func (e *Evaluator) Alerts() uint64 {
	return e.alerts.Load()
}
