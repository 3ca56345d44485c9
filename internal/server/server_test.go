package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openchiplab/chipcapture/internal/config"
	"github.com/openchiplab/chipcapture/internal/device/sim"
	"github.com/openchiplab/chipcapture/internal/service"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.Default()
	cfg.Recording.Directory = t.TempDir()
	cfg.Device.ReadyTimeoutMS = 10
	cfg.Server.MDNS = false

	svc := service.New(cfg, sim.New())
	ts := httptest.NewServer(New(svc, cfg).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getStatus(t *testing.T, ts *httptest.Server) StatusResponse {
	t.Helper()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code %d", resp.StatusCode)
	}

	var sr StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	return sr
}

func TestStatusIdle(t *testing.T) {
	ts := testServer(t)

	sr := getStatus(t, ts)
	if sr.Status != string(service.StatusIdle) {
		t.Errorf("expected IDLE, got %s", sr.Status)
	}
}

func TestStartStopRoundTrip(t *testing.T) {
	ts := testServer(t)

	body, _ := json.Marshal(StartRequest{Name: "TAKE01.OGG"})
	resp, err := http.Post(ts.URL+"/api/record/start", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST start failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start returned %d", resp.StatusCode)
	}

	if sr := getStatus(t, ts); sr.Status != string(service.StatusRecording) {
		t.Errorf("expected RECORDING, got %s", sr.Status)
	}

	time.Sleep(10 * time.Millisecond)

	resp, err = http.Post(ts.URL+"/api/record/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("POST stop failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop returned %d", resp.StatusCode)
	}

	if sr := getStatus(t, ts); sr.Status != string(service.StatusIdle) {
		t.Errorf("expected IDLE after stop, got %s", sr.Status)
	}
}

func TestStartRejectsBadName(t *testing.T) {
	ts := testServer(t)

	body, _ := json.Marshal(StartRequest{Name: "NOTVALID"})
	resp, err := http.Post(ts.URL+"/api/record/start", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST start failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for invalid name, got %d", resp.StatusCode)
	}
}

func TestStopWithoutSession(t *testing.T) {
	ts := testServer(t)

	resp, err := http.Post(ts.URL+"/api/record/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("POST stop failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 with no session, got %d", resp.StatusCode)
	}
}

func TestMethodGuards(t *testing.T) {
	ts := testServer(t)

	resp, err := http.Post(ts.URL+"/api/status", "application/json", nil)
	if err != nil {
		t.Fatalf("POST status failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for POST /api/status, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/record/start")
	if err != nil {
		t.Fatalf("GET start failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET /api/record/start, got %d", resp.StatusCode)
	}
}
