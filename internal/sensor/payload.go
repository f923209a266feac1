package sensor

import (
	"encoding/binary"
	"math"
)

// PayloadLength is the size of the vendor payload broadcast by the
// firmware. Little-endian layout:
//
//	offset 0  int16   temperature, centi-degrees Celsius
//	offset 2  uint8   relative humidity, percent
//	offset 3  uint16  ambient light, lux
//	offset 5  int16   magnetic field strength, microtesla
//	offset 7  uint8   sensor status flags
const PayloadLength = 8

// Decode parses a vendor payload into a Reading. It reports false when
// the payload is too short to hold every field; trailing bytes beyond
// PayloadLength are ignored so the firmware can grow the packet later.
func Decode(raw []byte) (Reading, bool) {
	if len(raw) < PayloadLength {
		return Reading{}, false
	}

	centiTemperature := int16(binary.LittleEndian.Uint16(raw[0:2]))
	magnetic := int16(binary.LittleEndian.Uint16(raw[5:7]))

	return Reading{
		Temperature: float64(centiTemperature) / 100,
		Humidity:    raw[2],
		Light:       binary.LittleEndian.Uint16(raw[3:5]),
		Magnetic:    float64(magnetic),
		Flags:       raw[7],
	}, true
}

// Encode packs a Reading into the firmware wire layout. The simulator
// uses it to emit payloads indistinguishable from real broadcasts.
func Encode(reading Reading) []byte {
	payload := make([]byte, PayloadLength)
	binary.LittleEndian.PutUint16(payload[0:2], uint16(int16(math.Round(reading.Temperature*100))))
	payload[2] = reading.Humidity
	binary.LittleEndian.PutUint16(payload[3:5], reading.Light)
	binary.LittleEndian.PutUint16(payload[5:7], uint16(int16(math.Round(reading.Magnetic))))
	payload[7] = reading.Flags
	return payload
}
