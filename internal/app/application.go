package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"beast1090/internal/adsb"
	"beast1090/internal/basestation"
	"beast1090/internal/beast"
	"beast1090/internal/logging"
	"beast1090/internal/metrics"
	"beast1090/internal/proximity"
	"beast1090/internal/tracker"
)

// Application represents the main application
type Application struct {
	config        Config
	logger        *logrus.Logger
	framing       beast.FramingMode
	interpreter   adsb.Interpreter
	tracker       *tracker.Tracker
	proximity     *proximity.Evaluator
	rotator       *logging.Rotator
	baseStation   *basestation.Writer
	registry      *prometheus.Registry
	metrics       *metrics.Collector
	metricsServer *http.Server
	statsInterval time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup

	opener func() (io.ReadCloser, error)

	positions atomic.Uint64
}

// sourceCloseTimeout bounds the wait for a blocked read after shutdown.
var sourceCloseTimeout = 2 * time.Second

// NewApplication creates a new application instance
func NewApplication(config Config) *Application {
	ctx, cancel := context.WithCancel(context.Background())

	logger := logrus.New()
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	app := &Application{
		config:        config,
		logger:        logger,
		interpreter:   adsb.Interpreter{FrameType: config.PositionType},
		statsInterval: DefaultStatsInterval,
		ctx:           ctx,
		cancel:        cancel,
	}
	app.opener = app.openSource
	return app
}

// Start runs the decoder until the input ends, a fatal stream error occurs or
// a shutdown signal is received.
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	}).Info("Starting Beast position decoder")

	if err := app.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := app.initializeComponents(); err != nil {
		app.cleanup()
		return fmt.Errorf("failed to initialize components: %w", err)
	}

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		select {
		case <-sigChan:
			app.logger.Info("Received shutdown signal")
			app.cancel()
		case <-app.ctx.Done():
		}
	}()

	err := app.run()
	if err != nil {
		app.logger.WithError(err).Error("Application error")
	}

	app.shutdown()
	return err
}

// initializeComponents initializes all application components
func (app *Application) initializeComponents() error {
	var err error

	app.framing, err = beast.ParseFramingMode(app.config.Framing)
	if err != nil {
		return err
	}

	var observers []tracker.Observer
	if cfg := app.config.Proximity(); cfg.Enabled() {
		app.proximity = proximity.NewEvaluator(cfg, nil, app.logger)
		observers = append(observers, app.proximity)
		app.logger.WithFields(logrus.Fields{
			"home_lat":        cfg.HomeLat,
			"home_lon":        cfg.HomeLon,
			"max_distance_km": cfg.MaxDistanceKm,
			"max_altitude_ft": cfg.MaxAltitudeFt,
		}).Info("Monitoring proximity envelope")
	}
	app.tracker = tracker.New(tracker.DefaultExpiry, app.logger, observers...)

	app.rotator, err = logging.NewRotator(app.config.LogDir, logging.DefaultPrefix, app.config.LogRotateUTC, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize output rotator: %w", err)
	}

	if app.config.RetainDays > 0 {
		if _, err := app.rotator.Prune(app.config.RetainDays); err != nil {
			app.logger.WithError(err).Warn("Failed to prune old output files")
		}
	}

	app.baseStation = basestation.NewWriter(app.rotator, app.logger)
	app.registry = prometheus.NewRegistry()

	return nil
}

// openSource opens the configured Beast byte stream.
func (app *Application) openSource() (io.ReadCloser, error) {
	switch app.config.InputFile {
	case "":
	case "-":
		return os.Stdin, nil
	default:
		f, err := os.Open(app.config.InputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		return f, nil
	}

	dialer := net.Dialer{Timeout: DefaultDialTimeout}
	conn, err := dialer.DialContext(app.ctx, "tcp", app.config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", app.config.Address, err)
	}
	return conn, nil
}

// run opens the source and decodes it until it ends
func (app *Application) run() error {
	rc, err := app.opener()
	if err != nil {
		return err
	}
	src := &onceCloser{ReadCloser: rc}
	defer src.Close()

	app.logger.WithFields(logrus.Fields{
		"address":       app.config.Address,
		"input":         app.config.InputFile,
		"framing":       app.framing.String(),
		"position_type": fmt.Sprintf("0x%02x", app.interpreter.FrameType),
	}).Info("Reading Beast stream")

	deframer := beast.NewDeframer(src, app.logger, beast.WithFramingMode(app.framing))

	app.metrics, err = metrics.NewCollector(app.registry, deframer, app.tracker)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	app.startMetricsServer()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.rotator.Start(app.ctx)
	}()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.reportStatistics(deframer)
	}()

	done := make(chan error, 1)
	go func() {
		done <- app.decode(deframer)
	}()

	select {
	case err := <-done:
		return err
	case <-app.ctx.Done():
	}

	// Closing unblocks a pending read on sockets and files; a terminal stdin
	// may keep blocking, so the read is abandoned after a grace period.
	if err := src.Close(); err != nil {
		app.logger.WithError(err).Debug("Failed to close input")
	}
	select {
	case err := <-done:
		return err
	case <-time.After(sourceCloseTimeout):
		app.logger.Warn("Input read did not return after close, abandoning it")
		return nil
	}
}

// onceCloser closes the source at most once, whichever of the shutdown path
// and the deferred close gets there first.
type onceCloser struct {
	io.ReadCloser
	once sync.Once
	err  error
}

func (c *onceCloser) Close() error {
	c.once.Do(func() {
		c.err = c.ReadCloser.Close()
	})
	return c.err
}

// decode pulls frames until the stream ends
func (app *Application) decode(deframer *beast.Deframer) error {
	for {
		msg, err := deframer.Next()
		if err != nil {
			if app.ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				app.logger.Info("Input stream ended")
				return nil
			}
			return fmt.Errorf("failed to read Beast stream: %w", err)
		}

		app.handleMessage(msg, time.Now())
	}
}

// handleMessage routes one frame through the position interpreter
func (app *Application) handleMessage(msg *beast.Message, received time.Time) {
	icao, pos, ok := app.interpreter.ExtractPosition(msg)
	if !ok {
		return
	}

	app.positions.Add(1)
	if app.metrics != nil {
		app.metrics.Positions.Inc()
	}

	app.tracker.Update(icao, pos)

	app.logger.WithFields(logrus.Fields{
		"icao":      icao,
		"latitude":  pos.Latitude,
		"longitude": pos.Longitude,
		"altitude":  pos.Altitude,
		"odd":       pos.OddFormat,
	}).Debug("Airborne position")

	if err := app.baseStation.WritePosition(icao, pos, received); err != nil {
		app.logger.WithError(err).Error("Failed to write BaseStation message")
	}
}

func (app *Application) startMetricsServer() {
	if app.config.MetricsAddr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())
	app.metricsServer = &http.Server{
		Addr:              app.config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.logger.WithField("address", app.config.MetricsAddr).Info("Serving metrics")
		if err := app.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.WithError(err).Error("Metrics server failed")
		}
	}()
}

// reportStatistics reports processing statistics periodically
func (app *Application) reportStatistics(deframer *beast.Deframer) {
	ticker := time.NewTicker(app.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			app.logStatistics(deframer.Stats())
		}
	}
}

func (app *Application) logStatistics(stats beast.Stats) {
	fields := logrus.Fields{
		"frames":          stats.TotalFrames(),
		"frames_mode_ac":  stats.Frames[beast.ModeAC],
		"frames_mode_s":   stats.Frames[beast.ModeS],
		"frames_long":     stats.Frames[beast.ModeSLong],
		"resyncs":         stats.Resyncs,
		"unknown_types":   stats.UnknownTypes,
		"discarded_bytes": stats.DiscardedBytes,
		"positions":       app.positions.Load(),
		"aircraft":        app.tracker.Count(),
	}
	if app.proximity != nil {
		fields["proximity_alerts"] = app.proximity.Alerts()
	}
	app.logger.WithFields(fields).Info("Beast decoding statistics")
}

// logTrackedAircraft writes the final state of every aircraft still tracked.
func (app *Application) logTrackedAircraft() {
	if app.tracker == nil {
		return
	}

	snapshot := app.tracker.Snapshot()
	for _, a := range snapshot {
		app.logger.WithFields(logrus.Fields{
			"icao":       a.ICAO,
			"latitude":   a.Position.Latitude,
			"longitude":  a.Position.Longitude,
			"altitude":   a.Position.Altitude,
			"updates":    a.Updates,
			"first_seen": a.FirstSeen.Format(time.RFC3339),
			"last_seen":  a.LastSeen.Format(time.RFC3339),
		}).Info("Tracked aircraft")
	}
}

// shutdown gracefully shuts down the application
func (app *Application) shutdown() {
	app.logger.Info("Shutting down application")
	app.cancel()

	if app.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := app.metricsServer.Shutdown(ctx); err != nil {
			app.logger.WithError(err).Warn("Metrics server shutdown failed")
		}
		cancel()
	}

	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		app.logger.Warn("Shutdown timeout, forcing exit")
	}

	app.cleanup()
	app.logTrackedAircraft()

	fields := logrus.Fields{
		"positions": app.positions.Load(),
	}
	if app.tracker != nil {
		fields["aircraft"] = app.tracker.Count()
	}
	if app.proximity != nil {
		fields["proximity_alerts"] = app.proximity.Alerts()
	}
	app.logger.WithFields(fields).Info("Shutdown completed")
}

// cleanup releases resources
func (app *Application) cleanup() {
	if app.rotator != nil {
		if err := app.rotator.Close(); err != nil {
			app.logger.WithError(err).Error("Failed to close output rotator")
		}
	}
}
