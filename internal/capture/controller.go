package capture

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/openchiplab/chipcapture/internal/device"
	"github.com/openchiplab/chipcapture/internal/input"
	"github.com/openchiplab/chipcapture/internal/sink"
)

const (
	// drainBufferBytes is the fixed staging buffer between the FIFO and the
	// sink. One drain step moves at most drainBufferWords words.
	drainBufferBytes = 256
	drainBufferWords = drainBufferBytes / 2

	// maxChunkWords bounds the work done per drain sub-loop pass so input
	// polling stays responsive. A full chunk passes through the staging
	// buffer in two sub-transfers.
	maxChunkWords = 256

	// fifoCapacityWords is the physical depth of the encoder's output FIFO.
	// A waiting-word count at or above this means words were already dropped
	// or are about to be.
	fifoCapacityWords = 4096

	defaultReadyTimeout = 100 * time.Millisecond
	defaultPollInterval = time.Millisecond
)

// Config carries the per-session device settings.
type Config struct {
	// ClockMultiplier is written to the clock register so the encoder runs
	// at full speed.
	ClockMultiplier uint16

	// LineInput selects line input; false selects the onboard microphone.
	LineInput bool

	// Gain is the fixed input gain. Zero selects automatic gain control
	// with AutoGainCeiling as the ceiling; the two are mutually exclusive.
	Gain            uint16
	AutoGainCeiling uint16

	// Format selects the compressed-audio encoding profile.
	Format uint16

	// PluginName names the codec extension loaded into device memory.
	PluginName string

	// ReadyTimeout bounds each wait for the hardware-ready signal during
	// configuration. Expiry is authoritative: the session aborts with
	// OutcomeDeviceNotReady rather than proceeding against a stuck device.
	ReadyTimeout time.Duration

	// PollInterval is the idle sleep between drain-loop iterations.
	PollInterval time.Duration

	// CreateSink overrides file sink creation, mainly for tests.
	CreateSink func(name string) (sink.Sink, error)

	// OnPoll, if set, is called once per drain-loop iteration so the caller
	// can advance an elapsed-time display.
	OnPoll func(*Session)
}

func (c Config) readyTimeout() time.Duration {
	if c.ReadyTimeout > 0 {
		return c.ReadyTimeout
	}
	return defaultReadyTimeout
}

func (c Config) pollInterval() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	return defaultPollInterval
}

// Result is what one Record call produced.
type Result struct {
	Outcome Outcome
	Session *Session
}

// Controller drives a single start-to-finish recording session against the
// encoder. It owns the device registers and the sink for the session's
// duration; there is exactly one logical thread of control and no locking.
type Controller struct {
	dev  device.Device
	stop input.StopPoller
	cfg  Config

	buf [drainBufferBytes]byte
}

// New returns a controller for one or more sequential sessions. A Controller
// must not be shared between goroutines.
func New(dev device.Device, stop input.StopPoller, cfg Config) *Controller {
	return &Controller{dev: dev, stop: stop, cfg: cfg}
}

// Record captures one complete compressed-audio stream into the named sink.
// It configures the device, drains the encoder FIFO until a stop request has
// been honored and the tail flushed, resolves the terminal word, and resets
// the device. The returned Result always carries the session, also on error.
func (c *Controller) Record(filename string) (Result, error) {
	if filename == "" {
		return Result{Outcome: OutcomeNoFilename}, ErrNoFilename
	}

	sess := newSession(filename)
	slog.Info("Recording session starting", "session", sess.ID, "file", filename)

	snk, res, err := c.configure(sess)
	if err != nil {
		return res, err
	}

	// The sink is released on every exit path; FileSink.Close is idempotent
	// so the explicit close in teardown below is fine.
	defer snk.Close()

	if err := c.drain(sess, snk); err != nil {
		return Result{Outcome: OutcomeDeviceFault, Session: sess}, err
	}

	// Teardown: close the sink, then return the device to idle.
	if err := snk.Close(); err != nil {
		return Result{Outcome: OutcomeDeviceFault, Session: sess},
			fmt.Errorf("closing sink: %w", err)
	}
	if err := c.dev.WriteRegister(device.RegMode, device.ModeReset); err != nil {
		return Result{Outcome: OutcomeDeviceFault, Session: sess},
			fmt.Errorf("final device reset failed: %w", err)
	}

	sess.Duration = time.Since(sess.StartTime)
	slog.Info("Recording session finished",
		"session", sess.ID,
		"file", filename,
		"bytes", sess.BytesWritten,
		"duration", sess.Duration,
		"overflowed", sess.Overflowed)

	return Result{Outcome: OutcomeSuccess, Session: sess}, nil
}

// configure runs the device configuration sequence and opens the sink. The
// order is fixed by the hardware: the plugin load precedes sink creation, so
// a PluginLoadFailed outcome means no file was even attempted.
func (c *Controller) configure(sess *Session) (sink.Sink, Result, error) {
	fault := func(err error) (sink.Sink, Result, error) {
		return nil, Result{Outcome: OutcomeDeviceFault, Session: sess}, err
	}

	if err := c.dev.WriteRegister(device.RegClock, c.cfg.ClockMultiplier); err != nil {
		return fault(fmt.Errorf("setting clock multiplier: %w", err))
	}
	if err := c.dev.WriteRegister(device.RegBass, 0); err != nil {
		return fault(fmt.Errorf("clearing bass/treble shaping: %w", err))
	}
	if err := c.dev.WriteRegister(device.RegMode, device.ModeReset); err != nil {
		return fault(fmt.Errorf("soft reset: %w", err))
	}
	if err := c.waitReady(); err != nil {
		return nil, Result{Outcome: OutcomeDeviceNotReady, Session: sess},
			fmt.Errorf("after soft reset: %w", err)
	}
	if err := c.dev.WriteRegister(device.RegIntEnable, device.IntControl); err != nil {
		return fault(fmt.Errorf("setting interrupt mask: %w", err))
	}

	if err := c.dev.LoadPlugin(c.cfg.PluginName); err != nil {
		slog.Error("Codec plugin load failed", "plugin", c.cfg.PluginName, "error", err)
		return nil, Result{Outcome: OutcomePluginLoadFailed, Session: sess},
			fmt.Errorf("%w: %s: %w", ErrPluginLoad, c.cfg.PluginName, err)
	}

	createSink := c.cfg.CreateSink
	if createSink == nil {
		createSink = func(name string) (sink.Sink, error) { return sink.Create(name) }
	}
	snk, err := createSink(sess.Filename)
	if err != nil {
		slog.Error("Sink creation failed", "file", sess.Filename, "error", err)
		return nil, Result{Outcome: OutcomeSinkCreateFailed, Session: sess},
			fmt.Errorf("%w: %w", ErrSinkCreate, err)
	}

	abort := func(err error) (sink.Sink, Result, error) {
		snk.Close()
		return nil, Result{Outcome: OutcomeDeviceFault, Session: sess}, err
	}

	mode := device.ModeRecord
	if c.cfg.LineInput {
		mode |= device.ModeLine
	}
	if err := c.dev.WriteRegister(device.RegMode, mode); err != nil {
		return abort(fmt.Errorf("selecting input source: %w", err))
	}

	// Fixed gain and automatic gain control are mutually exclusive: a
	// non-zero gain value selects fixed, zero selects AGC via the second
	// control register.
	if c.cfg.Gain != 0 {
		if err := c.dev.WriteRegister(device.RegGain, c.cfg.Gain); err != nil {
			return abort(fmt.Errorf("setting fixed gain: %w", err))
		}
	} else {
		if err := c.dev.WriteRegister(device.RegGain, 0); err != nil {
			return abort(fmt.Errorf("selecting automatic gain: %w", err))
		}
		if err := c.dev.WriteRegister(device.RegAutoGain, c.cfg.AutoGainCeiling); err != nil {
			return abort(fmt.Errorf("setting automatic gain ceiling: %w", err))
		}
	}

	if err := c.dev.WriteRegister(device.RegControl, 0); err != nil {
		return abort(fmt.Errorf("clearing stop flags: %w", err))
	}
	if err := c.dev.WriteRegister(device.RegFormat, c.cfg.Format); err != nil {
		return abort(fmt.Errorf("selecting encoding profile: %w", err))
	}

	if err := c.waitReady(); err != nil {
		snk.Close()
		return nil, Result{Outcome: OutcomeDeviceNotReady, Session: sess},
			fmt.Errorf("before drain loop: %w", err)
	}

	return snk, Result{}, nil
}

// drain runs the 4-state capture loop until the session reaches
// StateFinished. Each iteration performs a bounded amount of work so input
// polling stays faster than the FIFO fills.
func (c *Controller) drain(sess *Session, snk sink.Sink) error {
	for sess.State != StateFinished {
		if c.cfg.OnPoll != nil {
			c.cfg.OnPoll(sess)
		}

		if sess.State == StateRecording && c.stop.StopRequested() {
			sess.State = StateStopRequested
			if err := c.dev.WriteRegister(device.RegControl, device.CtrlStopRequest); err != nil {
				return fmt.Errorf("raising stop request: %w", err)
			}
			slog.Debug("Stop requested, waiting for encoder acknowledge", "session", sess.ID)
		}

		waiting, err := c.readWaiting(sess)
		if err != nil {
			return err
		}

		if sess.State == StateStopRequested {
			ctrl, err := c.dev.ReadRegister(device.RegControl)
			if err != nil {
				return fmt.Errorf("reading stop status: %w", err)
			}
			if ctrl&device.CtrlStopAck != 0 {
				sess.State = StateDraining
				// The count may have moved between the acknowledge and
				// now; it must be re-read, never cached.
				if waiting, err = c.readWaiting(sess); err != nil {
					return err
				}
				slog.Debug("Encoder acknowledged stop", "session", sess.ID, "waiting", waiting)
			}
		}

		for waiting >= maxChunkWords || sess.State == StateDraining {
			n := waiting
			if n > maxChunkWords {
				n = maxChunkWords
			}
			waiting -= n

			// The very last word of a finished stream gets half-word
			// resolution below instead of the normal transfer path.
			if sess.State == StateDraining && waiting == 0 {
				n--
			}

			if n > 0 {
				if err := c.transferChunk(sess, snk, n); err != nil {
					return err
				}
			}

			if n < maxChunkWords {
				if sess.State != StateDraining {
					break
				}
				sess.State = StateFinished
				if err := c.writeTerminalWord(sess, snk); err != nil {
					return err
				}
				break
			}
		}

		if sess.State != StateFinished {
			time.Sleep(c.cfg.pollInterval())
		}
	}
	return nil
}

// readWaiting reads the uncached waiting-word count and flags the session if
// the FIFO hit capacity. Overflow is recoverable: recording continues, the
// file is just marked possibly lossy.
func (c *Controller) readWaiting(sess *Session) (int, error) {
	raw, err := c.dev.ReadRegister(device.RegWaiting)
	if err != nil {
		return 0, fmt.Errorf("reading waiting-word count: %w", err)
	}
	waiting := int(raw)

	if waiting >= fifoCapacityWords && !sess.Overflowed {
		sess.Overflowed = true
		slog.Warn("Encoder FIFO reached capacity, audio may have been lost",
			"session", sess.ID, "waiting", waiting)
	}
	return waiting, nil
}

// transferChunk moves n words from the FIFO to the sink, staged through the
// fixed drain buffer in sub-transfers of at most drainBufferWords words.
func (c *Controller) transferChunk(sess *Session, snk sink.Sink, n int) error {
	for n > 0 {
		step := n
		if step > drainBufferWords {
			step = drainBufferWords
		}
		for i := 0; i < step; i++ {
			w, err := c.dev.ReadData()
			if err != nil {
				return fmt.Errorf("reading FIFO word: %w", err)
			}
			c.buf[2*i] = byte(w >> 8)
			c.buf[2*i+1] = byte(w)
		}
		if err := snk.Write(c.buf[:2*step]); err != nil {
			return fmt.Errorf("writing chunk: %w", err)
		}
		sess.BytesWritten += int64(2 * step)
		n -= step
	}
	return nil
}

// writeTerminalWord resolves the final 16-bit word. Its high byte is always
// valid; the control register is read twice and bit 2 of the second read
// decides whether the low byte is audio or padding. The double read is a
// hardware requirement and must not be collapsed into one.
func (c *Controller) writeTerminalWord(sess *Session, snk sink.Sink) error {
	w, err := c.dev.ReadData()
	if err != nil {
		return fmt.Errorf("reading terminal word: %w", err)
	}
	if err := snk.WriteByte(byte(w >> 8)); err != nil {
		return fmt.Errorf("writing terminal high byte: %w", err)
	}
	sess.BytesWritten++

	if _, err := c.dev.ReadRegister(device.RegControl); err != nil {
		return fmt.Errorf("first stop-status read: %w", err)
	}
	ctrl, err := c.dev.ReadRegister(device.RegControl)
	if err != nil {
		return fmt.Errorf("second stop-status read: %w", err)
	}
	if ctrl&device.CtrlHalfWord == 0 {
		if err := snk.WriteByte(byte(w)); err != nil {
			return fmt.Errorf("writing terminal low byte: %w", err)
		}
		sess.BytesWritten++
	} else {
		slog.Debug("Terminal low byte discarded per half-word status", "session", sess.ID)
	}
	return nil
}

// waitReady waits for the hardware data-request line, bounded by the
// configured timeout.
func (c *Controller) waitReady() error {
	deadline := time.Now().Add(c.cfg.readyTimeout())
	for !c.dev.DataReady() {
		if time.Now().After(deadline) {
			return ErrDeviceNotReady
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}
