package playback

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/openchiplab/chipcapture/internal/device"
	"github.com/openchiplab/chipcapture/internal/input"
)

type feedDevice struct {
	received []byte
	volume   uint16
}

func (d *feedDevice) WriteRegister(reg device.Register, value uint16) error {
	if reg == device.RegVolume {
		d.volume = value
	}
	return nil
}
func (d *feedDevice) ReadRegister(device.Register) (uint16, error) { return 0, nil }
func (d *feedDevice) ReadData() (uint16, error)                    { return 0, nil }
func (d *feedDevice) LoadPlugin(string) error                      { return nil }
func (d *feedDevice) DataReady() bool                              { return true }

func (d *feedDevice) WriteData(p []byte) error {
	d.received = append(d.received, p...)
	return nil
}

func TestPlayStreamsWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "REC001.OGG")
	content := make([]byte, 1500)
	for i := range content {
		content[i] = byte(i)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	dev := &feedDevice{}
	p := New(dev, input.PollerFunc(func() bool { return false }))

	if err := p.Play(path); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if len(dev.received) != len(content) {
		t.Fatalf("expected %d bytes fed, got %d", len(content), len(dev.received))
	}
	for i := range content {
		if dev.received[i] != content[i] {
			t.Fatalf("byte %d differs", i)
		}
	}
}

func TestPlayStops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "REC001.OGG")
	if err := os.WriteFile(path, make([]byte, 4096), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	dev := &feedDevice{}
	polls := 0
	p := New(dev, input.PollerFunc(func() bool {
		polls++
		return polls > 2
	}))

	err := p.Play(path)
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if len(dev.received) >= 4096 {
		t.Error("playback should have been cut short")
	}
}

func TestPlaySetsAttenuation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "REC001.OGG")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	dev := &feedDevice{}
	p := New(dev, input.PollerFunc(func() bool { return false }))
	p.Attenuation = device.StereoLevel{Left: 0x10, Right: 0x20}

	if err := p.Play(path); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if dev.volume != 0x1020 {
		t.Errorf("expected volume register 0x1020, got 0x%04x", dev.volume)
	}
}

func TestPlayMissingFile(t *testing.T) {
	p := New(&feedDevice{}, input.PollerFunc(func() bool { return false }))
	if err := p.Play(filepath.Join(t.TempDir(), "missing.ogg")); err == nil {
		t.Error("expected error for missing file")
	}
}
