package beast

import "sync/atomic"

// Stats is a snapshot of Deframer counters.
type Stats struct {
	Frames         map[byte]uint64 // frames emitted, keyed by type byte
	Resyncs        uint64          // sync bytes that interrupted a frame
	UnknownTypes   uint64          // type selectors outside the length table
	DiscardedBytes uint64          // bytes dropped while scanning for sync
}

// TotalFrames sums Frames over all types.
func (s Stats) TotalFrames() uint64 {
	var total uint64
	for _, n := range s.Frames {
		total += n
	}
	return total
}

type counters struct {
	frames       map[byte]*atomic.Uint64 // fixed key set, never written after construction
	resyncs      atomic.Uint64
	unknownTypes atomic.Uint64
	discarded    atomic.Uint64
}

func newCounters() *counters {
	c := &counters{frames: make(map[byte]*atomic.Uint64, len(frameLengths))}
	for t := range frameLengths {
		c.frames[t] = new(atomic.Uint64)
	}
	return c
}

func (c *counters) frame(msgType byte) {
	if n, ok := c.frames[msgType]; ok {
		n.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	s := Stats{
		Frames:         make(map[byte]uint64, len(c.frames)),
		Resyncs:        c.resyncs.Load(),
		UnknownTypes:   c.unknownTypes.Load(),
		DiscardedBytes: c.discarded.Load(),
	}
	for t, n := range c.frames {
		s.Frames[t] = n.Load()
	}
	return s
}
