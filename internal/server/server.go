package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/mdns"

	"github.com/openchiplab/chipcapture/internal/config"
	"github.com/openchiplab/chipcapture/internal/service"
)

const mdnsServiceType = "_chipcapture._tcp"

// Server exposes the recorder over HTTP for remote control: a phone or any
// host on the LAN can start and stop recordings and watch the elapsed time.
type Server struct {
	svc  *service.Service
	cfg  *config.Config
	port int

	upgrader websocket.Upgrader
	mdnsSrv  *mdns.Server
}

// StatusResponse is the JSON shape of /api/status and of the event stream.
type StatusResponse struct {
	Status    string               `json:"status"`
	Session   *service.SessionInfo `json:"session,omitempty"`
	LastError string               `json:"last_error,omitempty"`
}

// StartRequest is the JSON body of /api/record/start.
type StartRequest struct {
	Name string `json:"name"`
}

// ErrorResponse is the JSON shape of error replies.
type ErrorResponse struct {
	Error string `json:"error"`
}

// New creates a server over the given service.
func New(svc *service.Service, cfg *config.Config) *Server {
	return &Server{
		svc:  svc,
		cfg:  cfg,
		port: cfg.Server.Port,
		upgrader: websocket.Upgrader{
			// The control surface is LAN-only by design.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler, exposed separately for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/record/start", s.handleStart)
	mux.HandleFunc("/api/record/stop", s.handleStop)
	mux.HandleFunc("/api/events", s.handleEvents)
	return mux
}

// Start advertises the server (if configured) and serves until the listener
// fails. It blocks.
func (s *Server) Start() error {
	if s.cfg.Server.MDNS {
		if err := s.advertise(); err != nil {
			slog.Warn("mDNS advertisement failed, continuing without it", "error", err)
		}
	}
	defer s.shutdownMDNS()

	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("Remote control server listening", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	writeJSON(w, http.StatusOK, s.statusResponse())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("bad request body: %v", err))
		return
	}

	if err := s.svc.StartRecording(req.Name, nil); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	slog.Info("Recording started remotely", "name", req.Name, "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, s.statusResponse())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	if err := s.svc.StopRecording(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	slog.Info("Recording stopped remotely", "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, s.statusResponse())
}

// handleEvents upgrades to a websocket and pushes status snapshots until the
// client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Drain client frames so close handshakes are noticed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		data, err := json.Marshal(s.statusResponse())
		if err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("Event stream closed unexpectedly", "error", err)
			}
			return
		}
	}
}

func (s *Server) statusResponse() StatusResponse {
	status, info := s.svc.Status()
	return StatusResponse{
		Status:    string(status),
		Session:   info,
		LastError: s.svc.LastError(),
	}
}

// advertise publishes the control server on the LAN so the companion app can
// find it without configuration.
func (s *Server) advertise() error {
	ips, err := localIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	svc, err := mdns.NewMDNSService(
		"chipcapture",
		mdnsServiceType,
		"",
		"",
		s.port,
		ips,
		[]string{"path=/api"},
	)
	if err != nil {
		return fmt.Errorf("failed to create mdns service: %w", err)
	}

	srv, err := mdns.NewServer(&mdns.Config{Zone: svc})
	if err != nil {
		return fmt.Errorf("failed to start mdns server: %w", err)
	}
	s.mdnsSrv = srv

	slog.Info("Advertising control server via mDNS", "type", mdnsServiceType, "port", s.port)
	return nil
}

func (s *Server) shutdownMDNS() {
	if s.mdnsSrv != nil {
		s.mdnsSrv.Shutdown()
		s.mdnsSrv = nil
	}
}

func localIPs() ([]net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ipNet.IP.To4() != nil {
			ips = append(ips, ipNet.IP)
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no usable network interface found")
	}
	return ips, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg})
}
