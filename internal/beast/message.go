package beast

import "fmt"

// Beast mode frame types
const (
	SyncByte  = 0x1A // Beast mode sync byte
	ModeAC    = 0x31 // Mode A/C
	ModeS     = 0x32 // Mode S Short
	ModeSLong = 0x33 // Mode S Long / Extended Squitter

	// EscapeOffset is subtracted from the byte following an in-payload
	// sync byte to recover the literal value.
	EscapeOffset = 0x19

	headerLen = 2 // sync + type
)

// frameLengths maps a type byte to the total on-wire frame length
// (header + payload).
var frameLengths = map[byte]int{
	ModeAC:    11,
	ModeS:     15,
	ModeSLong: 23,
}

// FrameLength returns the total frame length mandated by msgType, or 0 if
// the type is not recognised.
func FrameLength(msgType byte) int {
	return frameLengths[msgType]
}

// PayloadLength returns the payload length mandated by msgType, or 0 if the
// type is not recognised.
func PayloadLength(msgType byte) int {
	n := frameLengths[msgType]
	if n == 0 {
		return 0
	}
	return n - headerLen
}

// Message is one unescaped Beast frame (a ModeSMessage). Payload length always
// equals PayloadLength(Type).
type Message struct {
	Type    byte
	Payload []byte
}

// String renders the message as type and hex payload, for logs.
func (m *Message) String() string {
	return fmt.Sprintf("0x%02X:%X", m.Type, m.Payload)
}
