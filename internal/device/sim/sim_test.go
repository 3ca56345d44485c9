package sim

import (
	"testing"

	"github.com/openchiplab/chipcapture/internal/device"
)

func TestEncoderFillsWhileRecording(t *testing.T) {
	e := New()
	if err := e.WriteRegister(device.RegMode, device.ModeRecord); err != nil {
		t.Fatalf("WriteRegister failed: %v", err)
	}

	w1, _ := e.ReadRegister(device.RegWaiting)
	w2, _ := e.ReadRegister(device.RegWaiting)
	if w2 <= w1 {
		t.Errorf("waiting count should grow while recording: %d then %d", w1, w2)
	}
}

func TestEncoderStopAcknowledge(t *testing.T) {
	e := New()
	e.WriteRegister(device.RegMode, device.ModeRecord)
	e.ReadRegister(device.RegWaiting)

	ctrl, _ := e.ReadRegister(device.RegControl)
	if ctrl&device.CtrlStopAck != 0 {
		t.Error("stop must not be acknowledged before it was requested")
	}

	e.WriteRegister(device.RegControl, device.CtrlStopRequest)
	ctrl, _ = e.ReadRegister(device.RegControl)
	if ctrl&device.CtrlStopAck == 0 {
		t.Error("stop request was not acknowledged")
	}

	// No new audio after the acknowledge: successive polls must not grow.
	w1, _ := e.ReadRegister(device.RegWaiting)
	w2, _ := e.ReadRegister(device.RegWaiting)
	if w2 > w1 {
		t.Errorf("encoder kept producing after stop: %d then %d", w1, w2)
	}
}

func TestEncoderResetClearsFIFO(t *testing.T) {
	e := New()
	e.WriteRegister(device.RegMode, device.ModeRecord)
	e.ReadRegister(device.RegWaiting)

	e.WriteRegister(device.RegMode, device.ModeReset)
	w, _ := e.ReadRegister(device.RegWaiting)
	if w != 0 {
		t.Errorf("FIFO not empty after reset: %d", w)
	}
}

func TestEncoderHalfWordBit(t *testing.T) {
	e := New()
	e.HalfWordTail = true
	ctrl, _ := e.ReadRegister(device.RegControl)
	if ctrl&device.CtrlHalfWord == 0 {
		t.Error("half-word bit should be set")
	}
}

func TestEncoderPluginLoad(t *testing.T) {
	e := New()
	if err := e.LoadPlugin("venc44k2.plg"); err != nil {
		t.Errorf("plugin load failed: %v", err)
	}
	if err := e.LoadPlugin(""); err == nil {
		t.Error("empty plugin name should fail")
	}

	e.FailPlugin = true
	if err := e.LoadPlugin("venc44k2.plg"); err == nil {
		t.Error("expected failure with FailPlugin set")
	}
}
