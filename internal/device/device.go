package device

// Register identifies one of the encoder chip's control registers.
type Register uint8

// Control register map. The chip exposes a small SPI-style register file;
// everything the control program does goes through these.
const (
	RegMode      Register = 0x0 // operating mode, soft reset, playback cancel
	RegStatus    Register = 0x1 // chip status and version
	RegBass      Register = 0x2 // bass/treble shaping, must be flat while recording
	RegClock     Register = 0x3 // internal clock multiplier
	RegWRAM      Register = 0x6 // plugin/application memory data
	RegWRAMAddr  Register = 0x7 // plugin/application memory address
	RegFormat    Register = 0x8 // compressed-audio encoding profile selector
	RegData      Register = 0x9 // FIFO data register, one 16-bit word per read
	RegWaiting   Register = 0xA // number of 16-bit words waiting in the FIFO
	RegVolume    Register = 0xB // stereo attenuation, one byte per channel
	RegGain      Register = 0xC // fixed input gain; zero means use RegAutoGain
	RegAutoGain  Register = 0xD // automatic gain control ceiling
	RegControl   Register = 0xE // recording control/status bits, see Ctrl* below
	RegIntEnable Register = 0xF // interrupt enable mask
)

// RegMode bits.
const (
	ModeReset  uint16 = 1 << 2  // soft reset, self-clearing
	ModeRecord uint16 = 1 << 12 // recording mode enable
	ModeLine   uint16 = 1 << 14 // line input instead of onboard microphone
)

// RegControl bits. The same register carries the host's stop request and the
// encoder's completion status.
const (
	CtrlStopRequest uint16 = 1 << 0 // host asks the encoder to stop
	CtrlStopAck     uint16 = 1 << 1 // encoder has stopped producing new audio
	CtrlHalfWord    uint16 = 1 << 2 // only the high byte of the final word is valid
)

// RegIntEnable bits.
const (
	IntControl uint16 = 1 << 0 // control-register signaling interrupt
)

// Encoding profile values for RegFormat.
const (
	FormatPCMWav    uint16 = 0x0001
	FormatOggVorbis uint16 = 0x0060
)

// Device is the register-level interface to the streaming encoder chip.
// Implementations are not safe for concurrent use; exactly one controller owns
// the device for the duration of a session.
type Device interface {
	// WriteRegister writes a 16-bit value to a control register.
	WriteRegister(reg Register, value uint16) error

	// ReadRegister reads a control register. Reads of RegWaiting and RegData
	// have side effects on the chip and must not be cached.
	ReadRegister(reg Register) (uint16, error)

	// ReadData pops one 16-bit word from the encoder's output FIFO.
	ReadData() (uint16, error)

	// WriteData streams compressed bytes to the decoder input (playback).
	WriteData(p []byte) error

	// LoadPlugin loads a codec extension into device memory.
	LoadPlugin(name string) error

	// DataReady reports the state of the chip's data-request line.
	DataReady() bool
}
