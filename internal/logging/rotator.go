package logging

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultPrefix names the daily output files beast_YYYY-MM-DD.log.
const DefaultPrefix = "beast"

const dateLayout = "2006-01-02"

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("rotator closed")

// Rotator writes to one file per day and gzips the previous day's file on
// rotation. It implements io.Writer and is safe for concurrent use.
type Rotator struct {
	dir    string
	prefix string
	useUTC bool
	logger *logrus.Logger
	now    func() time.Time

	mu          sync.Mutex
	file        *os.File
	currentDate string
	compressing sync.WaitGroup
}

// NewRotator creates dir if needed and opens today's file.
func NewRotator(dir, prefix string, useUTC bool, logger *logrus.Logger) (*Rotator, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	r := &Rotator{
		dir:    dir,
		prefix: prefix,
		useUTC: useUTC,
		logger: logger,
		now:    time.Now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.openLocked(r.today()); err != nil {
		return nil, err
	}

	return r, nil
}

// Start checks for a date change every minute until ctx is done.
func (r *Rotator) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Rotate(); err != nil {
				r.logger.WithError(err).Error("Failed to rotate output file")
			}
		}
	}
}

// Write appends p to the current day's file.
func (r *Rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return 0, ErrClosed
	}
	return r.file.Write(p)
}

// Rotate switches to a new file if the date has changed since the current
// one was opened.
func (r *Rotator) Rotate() error {
	date := r.today()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return ErrClosed
	}
	if date == r.currentDate {
		return nil
	}

	r.logger.WithFields(logrus.Fields{
		"old_date": r.currentDate,
		"new_date": date,
	}).Info("Rotating output file")

	old := r.currentDate
	if err := r.file.Close(); err != nil {
		r.logger.WithError(err).Error("Failed to close previous output file")
	}
	r.file = nil

	r.compressing.Add(1)
	go func() {
		defer r.compressing.Done()
		if err := r.compress(old); err != nil {
			r.logger.WithError(err).WithField("date", old).Error("Failed to compress output file")
		}
	}()

	return r.openLocked(date)
}

// CurrentFile returns the path being written, or "" after Close.
func (r *Rotator) CurrentFile() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return ""
	}
	return r.path(r.currentDate)
}

// Files lists every output file, plain and compressed.
func (r *Rotator) Files() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(r.dir, r.prefix+"_*.log*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list output files: %w", err)
	}
	return files, nil
}

// Prune removes output files last modified more than maxDays ago. The
// current file is never removed.
func (r *Rotator) Prune(maxDays int) (int, error) {
	if maxDays <= 0 {
		return 0, fmt.Errorf("maxDays must be positive, got %d", maxDays)
	}

	files, err := r.Files()
	if err != nil {
		return 0, err
	}

	cutoff := r.now().AddDate(0, 0, -maxDays)
	current := r.CurrentFile()

	removed := 0
	for _, file := range files {
		if file == current {
			continue
		}

		info, err := os.Stat(file)
		if err != nil {
			r.logger.WithError(err).WithField("file", file).Warn("Failed to stat output file")
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(file); err != nil {
			r.logger.WithError(err).WithField("file", file).Error("Failed to remove old output file")
			continue
		}
		removed++
	}

	if removed > 0 {
		r.logger.WithField("count", removed).Info("Pruned old output files")
	}
	return removed, nil
}

// Close closes the current file and waits for pending compressions.
func (r *Rotator) Close() error {
	r.mu.Lock()
	var err error
	if r.file != nil {
		err = r.file.Close()
		r.file = nil
	}
	r.mu.Unlock()

	r.compressing.Wait()
	return err
}

func (r *Rotator) today() string {
	now := r.now()
	if r.useUTC {
		now = now.UTC()
	}
	return now.Format(dateLayout)
}

func (r *Rotator) path(date string) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s_%s.log", r.prefix, date))
}

func (r *Rotator) openLocked(date string) error {
	name := r.path(date)

	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file %s: %w", name, err)
	}

	r.file = file
	r.currentDate = date
	r.logger.WithField("file", name).Info("Opened output file")
	return nil
}

// compress gzips the file for date and removes the original.
func (r *Rotator) compress(date string) error {
	src := r.path(date)
	dst := src + ".gz"

	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(out)
	gz.Name = filepath.Base(src)
	gz.ModTime = time.Now()

	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		out.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	in.Close()
	if err := os.Remove(src); err != nil {
		return err
	}

	r.logger.WithField("file", dst).Info("Compressed output file")
	return nil
}
