package sensor

// Flag bits reported by the firmware. A set bit means the sensor was
// ready when the packet was assembled; cleared bits mark stale fields.
const (
	FlagTempHumidity = 1 << 0
	FlagLight        = 1 << 1
	FlagMagnetic     = 1 << 2
)

type Reading struct {
	Temperature float64 `json:"t"`
	Humidity    uint8   `json:"h"`
	Light       uint16  `json:"l"`
	Magnetic    float64 `json:"m"`
	Flags       uint8   `json:"f"`
}

func (reading Reading) FlagSet(bit uint8) bool {
	return reading.Flags&bit != 0
}
