package adsb

// Extended Squitter field constants
const (
	CPRScale = 131072 // 2^17, one unit per 17-bit CPR step

	// Airborne position with barometric altitude
	MinAirbornePositionTC = 9
	MaxAirbornePositionTC = 18

	// Minimum payload length holding ICAO, type code, altitude and CPR fields
	MinPositionPayload = 11

	QBit = 0x10 // altitude field: 25 ft increments when set

	AltitudeStepFeet   = 25
	AltitudeOffsetFeet = 1000

	OddFormatBit = 0x04 // payload[6]: CPR odd/even flag
)
