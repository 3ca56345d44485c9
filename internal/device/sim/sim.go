// Package sim is a software model of the encoder chip, close enough to the
// real register protocol to run the whole control program without hardware.
package sim

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/openchiplab/chipcapture/internal/device"
)

const (
	// fillPerPoll is how many words the simulated encoder adds to its FIFO
	// per waiting-count poll while recording.
	fillPerPoll = 96

	// tailWords is the residual the encoder still emits after honoring a
	// stop request.
	tailWords = 41

	fifoDepth = 4096
)

// Encoder simulates the chip. The mutex only guards against the playback
// path and the capture path touching the word generator from different
// goroutines; the capture protocol itself is single-threaded.
type Encoder struct {
	mu sync.Mutex

	regs      map[device.Register]uint16
	recording bool
	stopped   bool
	pending   int
	prng      uint16

	// HalfWordTail makes the final word of every recording a half word, so
	// the terminal low byte is discarded.
	HalfWordTail bool

	// FailPlugin makes every plugin load report an error.
	FailPlugin bool

	pluginName string
}

// New returns an idle simulated encoder.
func New() *Encoder {
	return &Encoder{
		regs: make(map[device.Register]uint16),
		prng: 0xACE1,
	}
}

func (e *Encoder) WriteRegister(reg device.Register, value uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.regs[reg] = value

	switch reg {
	case device.RegMode:
		if value&device.ModeReset != 0 {
			e.recording = false
			e.stopped = false
			e.pending = 0
			slog.Debug("Simulated encoder reset")
		} else if value&device.ModeRecord != 0 {
			e.recording = true
			e.stopped = false
		}
	case device.RegControl:
		if value&device.CtrlStopRequest != 0 && e.recording && !e.stopped {
			// Honoring a stop: no new audio after the tail.
			e.stopped = true
			e.pending += tailWords
			if e.pending > fifoDepth {
				e.pending = fifoDepth
			}
			slog.Debug("Simulated encoder stop acknowledged", "tail", e.pending)
		}
	}
	return nil
}

func (e *Encoder) ReadRegister(reg device.Register) (uint16, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch reg {
	case device.RegWaiting:
		if e.recording && !e.stopped {
			e.pending += fillPerPoll
			if e.pending > fifoDepth {
				e.pending = fifoDepth
			}
		}
		return uint16(e.pending), nil
	case device.RegControl:
		v := e.regs[device.RegControl]
		if e.stopped {
			v |= device.CtrlStopAck
		}
		if e.HalfWordTail {
			v |= device.CtrlHalfWord
		}
		return v, nil
	}
	return e.regs[reg], nil
}

func (e *Encoder) ReadData() (uint16, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending > 0 {
		e.pending--
	}
	// 16-bit xorshift keeps the output deterministic but non-trivial.
	e.prng ^= e.prng << 7
	e.prng ^= e.prng >> 9
	e.prng ^= e.prng << 8
	return e.prng, nil
}

func (e *Encoder) WriteData(p []byte) error {
	// Playback input is consumed and discarded; the simulator does not
	// decode.
	return nil
}

func (e *Encoder) LoadPlugin(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.FailPlugin {
		return fmt.Errorf("plugin %s rejected by simulated encoder", name)
	}
	if name == "" {
		return fmt.Errorf("plugin name is empty")
	}
	e.pluginName = name
	slog.Debug("Simulated encoder plugin loaded", "plugin", name)
	return nil
}

func (e *Encoder) DataReady() bool { return true }

var _ device.Device = (*Encoder)(nil)
