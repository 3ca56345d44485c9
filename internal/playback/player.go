// Package playback feeds a previously recorded compressed stream back to the
// decoder side of the chip. It is deliberately narrow: no speed control, no
// seeking. The chip does all decoding.
package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/openchiplab/chipcapture/internal/device"
	"github.com/openchiplab/chipcapture/internal/input"
)

// feedChunkBytes bounds one data-port transfer so stop polling stays
// responsive, mirroring the capture side's chunking discipline.
const feedChunkBytes = 512

// ErrStopped is returned when playback was cancelled by a stop request.
var ErrStopped = errors.New("playback stopped")

// Player streams files to the device data port.
type Player struct {
	dev  device.Device
	stop input.StopPoller

	// ReadyTimeout bounds each wait for the data-request line between
	// chunks.
	ReadyTimeout time.Duration

	// Attenuation is the per-channel output attenuation written to the
	// volume register before the stream starts. Zero is full volume.
	Attenuation device.StereoLevel
}

// New returns a player over the device. The stop poller cancels playback
// cooperatively between chunks.
func New(dev device.Device, stop input.StopPoller) *Player {
	return &Player{dev: dev, stop: stop, ReadyTimeout: 100 * time.Millisecond}
}

// Play streams the named file to the device until EOF or a stop request.
func (p *Player) Play(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := p.dev.WriteRegister(device.RegVolume, p.Attenuation.Pack()); err != nil {
		return fmt.Errorf("setting output volume: %w", err)
	}

	slog.Info("Playback starting", "file", path)

	buf := make([]byte, feedChunkBytes)
	var sent int64
	for {
		if p.stop.StopRequested() {
			slog.Info("Playback stopped by request", "file", path, "bytes", sent)
			return ErrStopped
		}

		n, err := f.Read(buf)
		if n > 0 {
			if err := p.waitReady(); err != nil {
				return err
			}
			if err := p.dev.WriteData(buf[:n]); err != nil {
				return fmt.Errorf("writing to data port: %w", err)
			}
			sent += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
	}

	slog.Info("Playback finished", "file", path, "bytes", sent)
	return nil
}

func (p *Player) waitReady() error {
	deadline := time.Now().Add(p.ReadyTimeout)
	for !p.dev.DataReady() {
		if time.Now().After(deadline) {
			return fmt.Errorf("device not ready for playback data")
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}
