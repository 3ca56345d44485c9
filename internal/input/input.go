package input

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// StopPoller answers the non-blocking "was a stop requested?" question the
// capture loop asks once per iteration. Implementations must never block.
type StopPoller interface {
	StopRequested() bool
}

// PollerFunc adapts a plain function to a StopPoller.
type PollerFunc func() bool

func (f PollerFunc) StopRequested() bool { return f() }

// Flag is a latching StopPoller settable from another goroutine, used by the
// remote-control server to stop a running session.
type Flag struct {
	stopped atomic.Bool
}

// Request latches the stop request. Once set it stays set for the session.
func (f *Flag) Request() {
	f.stopped.Store(true)
}

func (f *Flag) StopRequested() bool {
	return f.stopped.Load()
}

// SignalPoller latches on SIGINT/SIGTERM so a terminal user can stop a
// recording with Ctrl+C.
type SignalPoller struct {
	flag Flag
	ch   chan os.Signal
}

// NewSignalPoller starts listening for interrupt signals.
func NewSignalPoller() *SignalPoller {
	p := &SignalPoller{ch: make(chan os.Signal, 1)}
	signal.Notify(p.ch, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-p.ch
		p.flag.Request()
	}()

	return p
}

func (p *SignalPoller) StopRequested() bool {
	return p.flag.StopRequested()
}

// Close stops signal delivery to this poller.
func (p *SignalPoller) Close() {
	signal.Stop(p.ch)
}

// Any combines pollers; a stop request on any of them stops the session.
func Any(pollers ...StopPoller) StopPoller {
	return PollerFunc(func() bool {
		for _, p := range pollers {
			if p.StopRequested() {
				return true
			}
		}
		return false
	})
}
