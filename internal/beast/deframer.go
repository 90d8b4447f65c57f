package beast

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// FramingMode selects how a sync byte seen inside a frame is interpreted.
type FramingMode int

const (
	// FramingResync treats every sync byte seen while accumulating a frame as
	// the start of a new frame. Escapes left in the payload are undone after
	// the frame is complete by subtracting EscapeOffset.
	FramingResync FramingMode = iota
	// FramingDoubled treats 0x1A 0x1A inside a frame as one literal 0x1A and
	// 0x1A followed by any other byte as the start of a new frame whose type
	// selector is that byte.
	FramingDoubled
)

// String returns the flag spelling of the mode.
func (m FramingMode) String() string {
	switch m {
	case FramingResync:
		return "resync"
	case FramingDoubled:
		return "doubled"
	default:
		return fmt.Sprintf("FramingMode(%d)", int(m))
	}
}

// ParseFramingMode parses "resync" or "doubled".
func ParseFramingMode(s string) (FramingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "resync":
		return FramingResync, nil
	case "doubled":
		return FramingDoubled, nil
	default:
		return FramingResync, fmt.Errorf("unknown framing mode %q", s)
	}
}

type state int

const (
	stateScanning     state = iota // discarding bytes until a sync byte
	stateAccumulating              // buffer[0] is a sync byte
)

// Deframer turns a Beast byte stream into Messages. It is single-consumer:
// Next must not be called concurrently. After Next returns an error the
// Deframer should be discarded together with its stream.
type Deframer struct {
	reader *bufio.Reader
	logger *logrus.Logger
	mode   FramingMode

	state   state
	buffer  []byte
	want    int  // mandated frame length, 0 until the type byte is known
	escaped bool // FramingDoubled only: previous in-frame byte was a sync byte

	stats *counters
}

// Option configures a Deframer.
type Option func(*Deframer)

// WithFramingMode selects the in-frame sync byte rule.
func WithFramingMode(mode FramingMode) Option {
	return func(d *Deframer) {
		d.mode = mode
	}
}

// NewDeframer creates a Deframer reading from r
func NewDeframer(r io.Reader, logger *logrus.Logger, opts ...Option) *Deframer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	d := &Deframer{
		reader: bufio.NewReader(r),
		logger: logger,
		mode:   FramingResync,
		buffer: make([]byte, 0, 64),
		stats:  newCounters(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Next blocks until a complete frame has been read and returns it. Malformed
// framing is recovered internally. A read failure on the underlying stream is
// returned wrapped; if it happens part way through a frame an io.EOF is
// reported as io.ErrUnexpectedEOF. No partial frame is ever returned.
func (d *Deframer) Next() (*Message, error) {
	for {
		b, err := d.reader.ReadByte()
		if err != nil {
			return nil, d.readFailed(err)
		}

		if msg := d.feed(b); msg != nil {
			return msg, nil
		}
	}
}

// Stats returns a snapshot of the framing counters. Safe to call from any
// goroutine.
func (d *Deframer) Stats() Stats {
	return d.stats.snapshot()
}

// feed advances the state machine by one byte and returns a message when a
// frame completes.
func (d *Deframer) feed(b byte) *Message {
	if d.state == stateScanning {
		if b == SyncByte {
			d.begin()
		} else {
			d.stats.discarded.Add(1)
		}
		return nil
	}

	if d.escaped {
		d.escaped = false
		if b == SyncByte {
			return d.push(SyncByte)
		}
		// The pending sync byte opened a new frame and b is its type selector.
		d.resync()
		return d.feed(b)
	}

	if b == SyncByte {
		// New frame marker or escaped literal: the mode decides.
		if d.mode == FramingDoubled && d.want != 0 {
			d.escaped = true
			return nil
		}
		d.resync()
		return nil
	}

	if d.want == 0 {
		length := FrameLength(b)
		if length == 0 {
			d.stats.unknownTypes.Add(1)
			d.logger.WithFields(logrus.Fields{
				"message_type": fmt.Sprintf("0x%02x", b),
			}).Debug("Unknown message type, skipping")
			d.reset()
			return nil
		}
		d.want = length
		d.buffer = append(d.buffer, b)
		return nil
	}

	return d.push(b)
}

func (d *Deframer) push(b byte) *Message {
	d.buffer = append(d.buffer, b)
	if len(d.buffer) < d.want {
		return nil
	}
	return d.emit()
}

// emit builds the message from a full buffer and clears all state. The
// buffer never holds a sync byte past index 0, so the payload always has the
// length mandated by its type.
func (d *Deframer) emit() *Message {
	msgType := d.buffer[1]

	var payload []byte
	if d.mode == FramingDoubled {
		payload = make([]byte, len(d.buffer)-headerLen)
		copy(payload, d.buffer[headerLen:])
	} else {
		payload = unescape(d.buffer[headerLen:])
	}
	d.reset()

	d.stats.frame(msgType)
	d.logger.WithFields(logrus.Fields{
		"message_type": fmt.Sprintf("0x%02x", msgType),
		"payload_len":  len(payload),
	}).Debug("Decoded Beast frame")

	return &Message{Type: msgType, Payload: payload}
}

func (d *Deframer) begin() {
	d.buffer = append(d.buffer[:0], SyncByte)
	d.state = stateAccumulating
	d.want = 0
	d.escaped = false
}

// resync drops the frame being accumulated and restarts from a sync byte.
func (d *Deframer) resync() {
	d.stats.resyncs.Add(1)
	if len(d.buffer) > 1 {
		d.logger.WithFields(logrus.Fields{
			"dropped_bytes": len(d.buffer),
		}).Debug("Sync byte inside frame, resynchronizing")
	}
	d.begin()
}

func (d *Deframer) reset() {
	d.buffer = d.buffer[:0]
	d.state = stateScanning
	d.want = 0
	d.escaped = false
}

func (d *Deframer) readFailed(err error) error {
	partial := d.state == stateAccumulating
	d.reset()

	if partial && errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("beast: read stream: %w", err)
}

// unescape undoes in-payload escaping: a sync byte is dropped and the byte
// after it is reduced by EscapeOffset. A trailing lone sync byte is dropped.
func unescape(data []byte) []byte {
	result := make([]byte, 0, len(data))

	for i := 0; i < len(data); i++ {
		if data[i] != SyncByte {
			result = append(result, data[i])
			continue
		}
		i++
		if i == len(data) {
			break
		}
		result = append(result, data[i]-EscapeOffset)
	}

	return result
}
