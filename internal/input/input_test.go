package input

import (
	"io"
	"testing"
	"time"
)

func TestFlagLatches(t *testing.T) {
	var f Flag
	if f.StopRequested() {
		t.Error("new flag should not report a stop request")
	}
	f.Request()
	if !f.StopRequested() {
		t.Error("flag should latch after Request")
	}
	if !f.StopRequested() {
		t.Error("flag should stay latched")
	}
}

func TestAny(t *testing.T) {
	var a, b Flag
	combined := Any(&a, &b)

	if combined.StopRequested() {
		t.Error("no stop requested yet")
	}
	b.Request()
	if !combined.StopRequested() {
		t.Error("stop on second poller should propagate")
	}
}

func TestCommandReaderStopByte(t *testing.T) {
	pr, pw := io.Pipe()
	c := NewCommandReader(pr, 's')

	if c.StopRequested() {
		t.Error("no bytes sent yet")
	}

	if _, err := pw.Write([]byte("x")); err != nil {
		t.Fatalf("pipe write failed: %v", err)
	}
	// Non-stop bytes must be ignored.
	time.Sleep(10 * time.Millisecond)
	if c.StopRequested() {
		t.Error("non-stop byte should not latch a stop request")
	}

	if _, err := pw.Write([]byte("s")); err != nil {
		t.Fatalf("pipe write failed: %v", err)
	}
	pw.Close()

	deadline := time.Now().Add(time.Second)
	for !c.StopRequested() {
		if time.Now().After(deadline) {
			t.Fatal("stop byte was not observed within deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCommandReaderEOF(t *testing.T) {
	pr, pw := io.Pipe()
	c := NewCommandReader(pr, 's')
	pw.Close()

	time.Sleep(10 * time.Millisecond)
	if c.StopRequested() {
		t.Error("EOF alone should not latch a stop request")
	}
}
