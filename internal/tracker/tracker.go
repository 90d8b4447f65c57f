package tracker

import (
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"beast1090/internal/adsb"
)

const (
	// DefaultExpiry drops an aircraft 60 s after its last position.
	DefaultExpiry = 60 * time.Second

	cleanupInterval = 10 * time.Second
)

// Aircraft is the latest known state of one ICAO address.
type Aircraft struct {
	ICAO      string
	Position  adsb.Position
	FirstSeen time.Time
	LastSeen  time.Time
	Updates   int
}

// Observer is told about every update and every expiry. Expiry callbacks
// run on the cache janitor goroutine.
type Observer interface {
	Observe(a Aircraft)
	Forget(icao string)
}

// Tracker keeps the latest position per aircraft. Entries expire after the
// configured duration without an update. Reads may run on any goroutine;
// Update is called from the single decode loop.
type Tracker struct {
	aircraft  *cache.Cache
	expiry    time.Duration
	logger    *logrus.Logger
	observers []Observer
	now       func() time.Time
}

// New creates a tracker. A non-positive expiry selects DefaultExpiry.
func New(expiry time.Duration, logger *logrus.Logger, observers ...Observer) *Tracker {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}

	t := &Tracker{
		aircraft:  cache.New(expiry, cleanupInterval),
		expiry:    expiry,
		logger:    logger,
		observers: observers,
		now:       time.Now,
	}

	t.aircraft.OnEvicted(func(icao string, v interface{}) {
		a := v.(*Aircraft)
		t.logger.WithFields(logrus.Fields{
			"icao":      icao,
			"last_seen": a.LastSeen.Format(time.RFC3339),
			"updates":   a.Updates,
		}).Debug("Aircraft expired")

		for _, o := range t.observers {
			o.Forget(icao)
		}
	})

	return t
}

// Update records pos for icao and reports whether the aircraft was not
// being tracked before.
func (t *Tracker) Update(icao string, pos adsb.Position) bool {
	now := t.now()

	entry := &Aircraft{
		ICAO:      icao,
		Position:  pos,
		FirstSeen: now,
		LastSeen:  now,
		Updates:   1,
	}

	isNew := true
	if v, found := t.aircraft.Get(icao); found {
		prev := v.(*Aircraft)
		entry.FirstSeen = prev.FirstSeen
		entry.Updates = prev.Updates + 1
		isNew = false
	}

	t.aircraft.SetDefault(icao, entry)

	if isNew {
		t.logger.WithFields(logrus.Fields{
			"icao":      icao,
			"latitude":  pos.Latitude,
			"longitude": pos.Longitude,
			"altitude":  pos.Altitude,
		}).Info("New aircraft")
	}

	for _, o := range t.observers {
		o.Observe(*entry)
	}

	return isNew
}

// Get returns a copy of the tracked state of icao.
func (t *Tracker) Get(icao string) (Aircraft, bool) {
	v, found := t.aircraft.Get(icao)
	if !found {
		return Aircraft{}, false
	}
	return *v.(*Aircraft), true
}

// Count returns the number of aircraft currently tracked.
func (t *Tracker) Count() int {
	return len(t.aircraft.Items())
}

// Snapshot returns all unexpired aircraft ordered by ICAO address.
func (t *Tracker) Snapshot() []Aircraft {
	items := t.aircraft.Items()

	out := make([]Aircraft, 0, len(items))
	for _, item := range items {
		out = append(out, *item.Object.(*Aircraft))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ICAO < out[j].ICAO
	})
	return out
}
