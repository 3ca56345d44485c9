package capture

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// State is the drain-loop lifecycle state. States only ever advance.
type State int

const (
	// StateRecording is the initial state: the encoder is producing audio.
	StateRecording State = iota
	// StateStopRequested means a stop was asked for but the encoder has not
	// acknowledged it yet; it keeps producing until it does.
	StateStopRequested
	// StateDraining means the encoder has stopped producing; residual words
	// buffered in the FIFO still have to be flushed.
	StateDraining
	// StateFinished means all data is flushed and the terminal word resolved.
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "RECORDING"
	case StateStopRequested:
		return "STOP_REQUESTED"
	case StateDraining:
		return "DRAINING"
	case StateFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// Outcome is the synchronous result of one Record call.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomePluginLoadFailed
	OutcomeSinkCreateFailed
	OutcomeNoFilename
	OutcomeDeviceNotReady
	OutcomeDeviceFault
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomePluginLoadFailed:
		return "plugin load failed"
	case OutcomeSinkCreateFailed:
		return "sink create failed"
	case OutcomeNoFilename:
		return "no filename given"
	case OutcomeDeviceNotReady:
		return "device not ready"
	case OutcomeDeviceFault:
		return "device fault"
	default:
		return "unknown"
	}
}

var (
	ErrNoFilename     = errors.New("no filename given")
	ErrPluginLoad     = errors.New("codec plugin load failed")
	ErrSinkCreate     = errors.New("sink creation failed")
	ErrDeviceNotReady = errors.New("device not ready")
)

// Session is the single active capture context. It is created on entry to
// Record and owned exclusively by one Controller; nothing about it is global.
type Session struct {
	ID        uuid.UUID
	Filename  string
	State     State
	StartTime time.Time

	// Overflowed is set when the waiting-word count reached the FIFO
	// capacity between polls. The recording continues but may be lossy.
	Overflowed bool

	// BytesWritten counts bytes handed to the sink, terminal word included.
	BytesWritten int64

	// Duration is fixed at teardown; before that Elapsed is live.
	Duration time.Duration
}

// Elapsed returns the time since the session started. The caller's display
// layer reads this once per poll iteration.
func (s *Session) Elapsed() time.Duration {
	if s.Duration > 0 {
		return s.Duration
	}
	return time.Since(s.StartTime)
}

func newSession(filename string) *Session {
	return &Session{
		ID:        uuid.New(),
		Filename:  filename,
		State:     StateRecording,
		StartTime: time.Now(),
	}
}
