package adsb

import (
	"fmt"

	"beast1090/internal/beast"
)

// Position is a coarse aircraft position decoded from a single frame.
type Position struct {
	Latitude  float64 // degrees
	Longitude float64 // degrees
	Altitude  float64 // feet, 0 when the altitude is Gillham coded
	OddFormat bool    // CPR odd/even flag of the frame
}

// CPR holds the raw Compact Position Reporting fields of a frame.
type CPR struct {
	Odd bool
	Lat uint32 // 17 bits
	Lon uint32 // 17 bits
}

// Interpreter extracts identity and position from Beast messages whose type
// byte equals FrameType.
type Interpreter struct {
	FrameType byte
}

// DefaultInterpreter gates on the sync byte value. Frames produced by the
// Deframer carry 0x31/0x32/0x33 and are therefore not interpreted unless
// FrameType is changed.
var DefaultInterpreter = Interpreter{FrameType: beast.SyncByte}

// ExtractPosition runs DefaultInterpreter over msg.
func ExtractPosition(msg *beast.Message) (string, Position, bool) {
	return DefaultInterpreter.ExtractPosition(msg)
}

// ExtractPosition returns the ICAO address and the simplified position
// encoded in an airborne position Extended Squitter. ok is false when the
// message type does not match, the payload is too short or the type code is
// outside 9..18. The latitude and longitude are a linear scaling of the CPR
// fields, not a globally unambiguous CPR decode.
func (in Interpreter) ExtractPosition(msg *beast.Message) (icao string, pos Position, ok bool) {
	if msg == nil || msg.Type != in.FrameType {
		return "", Position{}, false
	}

	payload := msg.Payload
	if len(payload) < MinPositionPayload {
		return "", Position{}, false
	}

	tc := TypeCode(payload)
	if tc < MinAirbornePositionTC || tc > MaxAirbornePositionTC {
		return "", Position{}, false
	}

	cpr := DecodeCPR(payload)

	return ICAO(payload), Position{
		Latitude:  cprToDegrees(cpr.Lat),
		Longitude: cprToDegrees(cpr.Lon),
		Altitude:  DecodeAltitude(payload),
		OddFormat: cpr.Odd,
	}, true
}

// ICAO formats payload bytes 1-3 as six uppercase hex digits.
func ICAO(payload []byte) string {
	if len(payload) < 4 {
		return ""
	}
	return fmt.Sprintf("%02X%02X%02X", payload[1], payload[2], payload[3])
}

// TypeCode returns the 5-bit ES type code held in the top of payload[4].
func TypeCode(payload []byte) uint8 {
	if len(payload) < 5 {
		return 0
	}
	return (payload[4] >> 3) & 0x1F
}

// AltitudeCode returns the 12-bit AC field: payload[5] and the high nibble of
// payload[6].
func AltitudeCode(payload []byte) uint16 {
	if len(payload) < 7 {
		return 0
	}
	return uint16(payload[5])<<4 | uint16(payload[6])>>4
}

// DecodeAltitude returns the barometric altitude in feet. Gillham coded
// altitudes (Q-bit clear) are not decoded and yield 0.
func DecodeAltitude(payload []byte) float64 {
	ac := AltitudeCode(payload)
	if ac&QBit == 0 {
		return 0
	}

	// Drop the Q-bit and close the gap
	n := (ac&0x0FE0)>>1 | ac&0x000F
	return float64(n)*AltitudeStepFeet - AltitudeOffsetFeet
}

// DecodeCPR extracts the odd/even flag and the 17-bit latitude and longitude
// fields from payload bytes 6-10.
func DecodeCPR(payload []byte) CPR {
	if len(payload) < MinPositionPayload {
		return CPR{}
	}

	return CPR{
		Odd: payload[6]&OddFormatBit != 0,
		Lat: uint32(payload[6]&0x03)<<15 |
			uint32(payload[7])<<7 |
			uint32(payload[8])>>1,
		Lon: uint32(payload[8]&0x01)<<16 |
			uint32(payload[9])<<8 |
			uint32(payload[10]),
	}
}

func cprToDegrees(v uint32) float64 {
	return float64(v) * 360.0 / CPRScale
}
