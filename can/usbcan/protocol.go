package usbcan

// GS-USB class control request codes (bRequest values sent to endpoint 0).
const (
	reqHostFormat = 0x00
	reqBitTiming  = 0x01
	reqMode       = 0x02
	reqBtConst    = 0x06
)

// MODE flag bits, as returned in effective_flags by the device's MODE(start)
// reply.
const (
	ModeNormal       uint32 = 1 << 0
	ModeListenOnly   uint32 = 1 << 1
	ModeLoopBack     uint32 = 1 << 2
	ModeTripleSample uint32 = 1 << 3
	ModeOneShot      uint32 = 1 << 4
	ModeHwTimestamp  uint32 = 1 << 5
)

const (
	modeSubResetCmd = 0
	modeSubStartCmd = 1
)

// Bulk endpoint addresses and frame sizes.
const (
	epIn  = 0x81
	epOut = 0x02

	frameSizeNoTs = 20
	frameSizeTs   = 24

	// echoFlag marks a frame the device emits purely as TX confirmation.
	echoFlag = 1 << 0
	extFlag  = 1 << 1
)

// defaultVIDPID is the candleLight/GS-USB class default; overridable per
// deployment via Option.
const (
	defaultVID = 0x1d50
	defaultPID = 0x606f
)
