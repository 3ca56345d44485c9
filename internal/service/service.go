package service

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openchiplab/chipcapture/internal/capture"
	"github.com/openchiplab/chipcapture/internal/config"
	"github.com/openchiplab/chipcapture/internal/device"
	"github.com/openchiplab/chipcapture/internal/input"
	"github.com/openchiplab/chipcapture/internal/playback"
	"github.com/openchiplab/chipcapture/internal/sink"
)

// Status is the service-level view of the recorder.
type Status string

const (
	StatusIdle      Status = "IDLE"
	StatusRecording Status = "RECORDING"
	StatusError     Status = "ERROR"
)

// SessionInfo is a snapshot of the active or last session for status
// consumers (CLI, web UI).
type SessionInfo struct {
	ID         string        `json:"id"`
	Filename   string        `json:"filename"`
	State      string        `json:"state"`
	Elapsed    time.Duration `json:"elapsed"`
	Bytes      int64         `json:"bytes"`
	Overflowed bool          `json:"overflowed"`
}

// LogEntry is one line of the YAML session log kept next to the recordings.
type LogEntry struct {
	ID         string `yaml:"id"`
	File       string `yaml:"file"`
	Started    string `yaml:"started"`
	Duration   string `yaml:"duration"`
	Bytes      int64  `yaml:"bytes"`
	Overflowed bool   `yaml:"overflowed"`
	Outcome    string `yaml:"outcome"`
}

// Service orchestrates one recording session at a time over a single device.
type Service struct {
	cfg *config.Config
	dev device.Device

	mu      sync.RWMutex
	status  Status
	current *capture.Session
	stop    *input.Flag
	done    chan struct{}
	result  capture.Result
	runErr  error

	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates the service. The device is owned by the service from here on.
func New(cfg *config.Config, dev device.Device) *Service {
	return &Service{
		cfg:    cfg,
		dev:    dev,
		status: StatusIdle,
	}
}

// StartRecording validates the name and launches a capture session in the
// background. extra, if non-nil, is an additional stop source (for the CLI's
// Ctrl+C handling); the service's own StopRecording always works.
func (s *Service) StartRecording(name string, extra input.StopPoller) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusRecording {
		return fmt.Errorf("a recording is already in progress")
	}
	if err := sink.ValidateShortName(name, s.cfg.SupportedAudioExtensions); err != nil {
		return fmt.Errorf("invalid recording name: %w", err)
	}
	if err := os.MkdirAll(s.cfg.Recording.Directory, 0755); err != nil {
		s.status = StatusError
		return fmt.Errorf("failed to create recording directory: %w", err)
	}
	format, err := encodingProfile(s.cfg.Recording.Format)
	if err != nil {
		return err
	}

	s.stop = &input.Flag{}
	stop := input.StopPoller(s.stop)
	if extra != nil {
		stop = input.Any(s.stop, extra)
	}

	ctrl := capture.New(s.dev, stop, capture.Config{
		ClockMultiplier: s.cfg.Device.ClockMultiplier,
		LineInput:       s.cfg.Device.LineInput,
		Gain:            s.cfg.Device.Gain,
		AutoGainCeiling: s.cfg.Device.AutoGainCeiling,
		Format:          format,
		PluginName:      s.cfg.Device.Plugin,
		ReadyTimeout:    time.Duration(s.cfg.Device.ReadyTimeoutMS) * time.Millisecond,
		OnPoll:          s.observe,
	})

	path := filepath.Join(s.cfg.Recording.Directory, name)
	s.status = StatusRecording
	s.current = nil
	s.done = make(chan struct{})
	s.clearLastError()

	go s.run(ctrl, path)
	return nil
}

// encodingProfile maps a recording format name to the encoder profile value
// loaded into the format register.
func encodingProfile(format string) (uint16, error) {
	switch format {
	case "ogg":
		return device.FormatOggVorbis, nil
	case "wav":
		return device.FormatPCMWav, nil
	default:
		return 0, fmt.Errorf("no encoder profile for format %q", format)
	}
}

func (s *Service) run(ctrl *capture.Controller, path string) {
	defer close(s.done)

	res, err := ctrl.Record(path)

	s.mu.Lock()
	s.result = res
	s.runErr = err
	s.current = res.Session
	if err != nil {
		s.status = StatusError
	} else {
		s.status = StatusIdle
	}
	s.mu.Unlock()

	if err != nil {
		s.setLastError(fmt.Sprintf("Recording failed: %v", err))
	}

	if res.Session != nil {
		if logErr := s.appendSessionLog(res); logErr != nil {
			slog.Warn("Failed to write session log", "error", logErr)
		}
	}
}

// observe publishes the live session once per drain-loop iteration.
func (s *Service) observe(sess *capture.Session) {
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
}

// StopRecording requests a cooperative stop and waits for the drain to
// finish naturally.
func (s *Service) StopRecording() error {
	s.mu.RLock()
	recording := s.status == StatusRecording
	stop, done := s.stop, s.done
	s.mu.RUnlock()

	if !recording {
		return fmt.Errorf("no recording in progress")
	}

	stop.Request()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		return fmt.Errorf("recording did not stop within timeout")
	}

	s.mu.RLock()
	err := s.runErr
	s.mu.RUnlock()
	return err
}

// Wait blocks until the running session completes and returns its result.
func (s *Service) Wait() (capture.Result, error) {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()

	if done != nil {
		<-done
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, s.runErr
}

// Status returns the service status and a snapshot of the current or most
// recent session.
func (s *Service) Status() (Status, *SessionInfo) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var info *SessionInfo
	if s.current != nil {
		info = &SessionInfo{
			ID:         s.current.ID.String(),
			Filename:   s.current.Filename,
			State:      s.current.State.String(),
			Elapsed:    s.current.Elapsed(),
			Bytes:      s.current.BytesWritten,
			Overflowed: s.current.Overflowed,
		}
	}
	return s.status, info
}

// Play feeds a previously recorded file to the decoder. Blocks until EOF or
// a stop request on the given poller.
func (s *Service) Play(name string, stop input.StopPoller) error {
	s.mu.RLock()
	busy := s.status == StatusRecording
	s.mu.RUnlock()
	if busy {
		return fmt.Errorf("cannot play while recording")
	}

	if stop == nil {
		stop = input.PollerFunc(func() bool { return false })
	}
	player := playback.New(s.dev, stop)
	return player.Play(filepath.Join(s.cfg.Recording.Directory, name))
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// LastError returns the last error message (thread-safe).
func (s *Service) LastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

func (s *Service) setLastError(msg string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = msg
	slog.Error("Service error occurred", "error_message", msg)
}

func (s *Service) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

func (s *Service) sessionLogPath() string {
	return filepath.Join(s.cfg.Recording.Directory, "sessions.yaml")
}

// appendSessionLog records the finished session in the YAML sidecar next to
// the recordings.
func (s *Service) appendSessionLog(res capture.Result) error {
	path := s.sessionLogPath()

	var entries []LogEntry
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("failed to parse session log: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read session log: %w", err)
	}

	sess := res.Session
	entries = append(entries, LogEntry{
		ID:         sess.ID.String(),
		File:       sess.Filename,
		Started:    sess.StartTime.Format(time.RFC3339),
		Duration:   sess.Duration.Truncate(time.Millisecond).String(),
		Bytes:      sess.BytesWritten,
		Overflowed: sess.Overflowed,
		Outcome:    res.Outcome.String(),
	})

	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal session log: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write session log: %w", err)
	}
	return nil
}
