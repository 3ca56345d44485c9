package input

import (
	"io"
	"log/slog"
)

// CommandReader watches an inbound command channel (typically a serial port)
// for a configured stop byte. The read loop runs in its own goroutine because
// io.Reader has no non-blocking read; the poll itself only checks a latch.
type CommandReader struct {
	flag     Flag
	stopByte byte
}

// NewCommandReader starts consuming r, latching a stop request when stopByte
// arrives. Other bytes are ignored; command parsing beyond the stop character
// belongs to the menu layer.
func NewCommandReader(r io.Reader, stopByte byte) *CommandReader {
	c := &CommandReader{stopByte: stopByte}

	go func() {
		buf := make([]byte, 1)
		for {
			n, err := r.Read(buf)
			if n == 1 && buf[0] == c.stopByte {
				slog.Debug("Stop character received on command channel")
				c.flag.Request()
			}
			if err != nil {
				if err != io.EOF {
					slog.Debug("Command channel read ended", "error", err)
				}
				return
			}
		}
	}()

	return c
}

func (c *CommandReader) StopRequested() bool {
	return c.flag.StopRequested()
}
