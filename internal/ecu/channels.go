package ecu

import (
	"encoding/binary"
	"math"

	"github.com/DanielDobromylskyj/2D-Engine-Simulator/internal/telemetry"
)

// Speeduino secondary serial constants. The emulated port answers the same
// plain (non-CRC) commands the real firmware does, so off-the-shelf dash
// hardware can display the simulated engine.
const (
	cmdRealtimeN = 'n' // current realtime data command
	cmdRealtimeA = 'A' // legacy realtime data command
	cmdSignature = 'Q'
	cmdVersion   = 'S'

	realtimeNType = 0x32 // data type byte in the 'n' response header

	secondaryNDataSize = 119 // realtime block bytes, firmware 202409 layout
	secondaryADataSize = 75  // legacy 'A' block bytes
)

const (
	signature = "speeduino 202409"
	version   = "Speeduino 2024.09-sim"
)

// BuildRealtimeBlock encodes a telemetry frame into the 119-byte secondary
// serial realtime layout. Offsets mirror the firmware's OutputChannels
// block: status@2, MAP@4, IAT@6, CLT@7, battery@9, AFR@10, RPM@14, VE@18,
// PW1@20, advance@23, TPS@24, sync flag@31.
func BuildRealtimeBlock(f *telemetry.DataFrame) []byte {
	d := make([]byte, secondaryNDataSize)
	if f == nil {
		return d
	}

	var status byte
	if f.Running {
		status |= 1 << 0
	}
	if f.Starter {
		status |= 1 << 1 // cranking
	}
	d[2] = status

	// Manifold pressure: cylinder 0 chamber pressure in kPa.
	mapKPa := 0.0
	if len(f.Cylinders) > 0 {
		mapKPa = f.Cylinders[0].Pressure / 1000
	}
	binary.LittleEndian.PutUint16(d[4:6], clampU16(mapKPa))

	// Temperatures carry the firmware's +40 offset. Coolant maps to the
	// mean chamber temperature; IAT is ambient-ish and left at intake.
	d[6] = tempByte(21)
	d[7] = tempByte(meanTempC(f))

	d[9] = clampU8(13.8 * 10) // battery, nominal
	d[10] = clampU8(chargeAFR(f) * 10)

	binary.LittleEndian.PutUint16(d[14:16], clampU16(f.RPM))

	d[18] = clampU8(f.Throttle * 100) // VE tracks throttle in the sim
	d[19] = clampU8(telemetryStoich * 10)
	binary.LittleEndian.PutUint16(d[20:22], clampU16(f.Throttle*100))

	d[23] = 10 // fixed nominal advance
	d[24] = clampU8(f.Throttle * 100)

	if f.RPM > 0 {
		d[31] = 1 << 7 // trigger sync
	}
	return d
}

const telemetryStoich = 14.7

// chargeAFR derives the reported air-fuel ratio from cylinder 0's charge,
// falling back to stoich when no fuel is present.
func chargeAFR(f *telemetry.DataFrame) float64 {
	if len(f.Cylinders) == 0 || f.Cylinders[0].Fuel <= 0 {
		return telemetryStoich
	}
	afr := f.Cylinders[0].Air / f.Cylinders[0].Fuel
	return math.Min(afr, 25.5)
}

func meanTempC(f *telemetry.DataFrame) float64 {
	if len(f.Cylinders) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range f.Cylinders {
		sum += c.Temperature
	}
	return sum/float64(len(f.Cylinders)) - 273
}

// tempByte applies the firmware's −40 °C offset encoding.
func tempByte(celsius float64) byte {
	return clampU8(celsius + 40)
}

func clampU8(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

func clampU16(v float64) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v)
}
