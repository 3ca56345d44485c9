package sink

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSinkWriteAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "REC001.OGG")

	s, err := Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := s.Write([]byte{0x4f, 0x67, 0x67}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.WriteByte(0x53); err != nil {
		t.Fatalf("WriteByte failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "OggS" {
		t.Errorf("unexpected file contents: %q", data)
	}
}

func TestFileSinkCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "REC002.OGG")

	s, err := Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Write([]byte{1, 2, 3}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(data) != 3 {
		t.Errorf("expected 3 bytes after double close, got %d", len(data))
	}
}

func TestFileSinkWriteAfterClose(t *testing.T) {
	s, err := Create(filepath.Join(t.TempDir(), "REC003.OGG"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Write([]byte{1}); err == nil {
		t.Error("expected error writing to closed sink")
	}
	if err := s.WriteByte(1); err == nil {
		t.Error("expected error writing byte to closed sink")
	}
}

func TestFileSinkCreateFailure(t *testing.T) {
	if _, err := Create(filepath.Join(t.TempDir(), "missing", "REC.OGG")); err == nil {
		t.Error("expected error creating sink in missing directory")
	}
}

func TestValidateShortName(t *testing.T) {
	exts := []string{"ogg", "wav", "mp3"}

	valid := []string{"REC001.OGG", "a.ogg", "TAKE_01.wav", "12345678.mp3"}
	for _, name := range valid {
		if err := ValidateShortName(name, exts); err != nil {
			t.Errorf("expected %q to validate, got: %v", name, err)
		}
	}

	invalid := []string{
		"",
		"NOEXTENSION",
		".ogg",
		"REC001.",
		"WAYTOOLONGNAME.OGG",
		"123456789.ogg",
		"REC001.FLAC",
		"REC001.TXT",
	}
	for _, name := range invalid {
		if err := ValidateShortName(name, exts); err == nil {
			t.Errorf("expected %q to be rejected", name)
		}
	}
}

func TestCleanShortName(t *testing.T) {
	if got := CleanShortName("my take!.ogg"); got != "MYTAKE.OGG" {
		t.Errorf("CleanShortName: got %q", got)
	}
}
