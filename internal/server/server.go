package server

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DanielDobromylskyj/2D-Engine-Simulator/internal/ecu"
	"github.com/DanielDobromylskyj/2D-Engine-Simulator/internal/logger"
	"github.com/DanielDobromylskyj/2D-Engine-Simulator/internal/metrics"
	"github.com/DanielDobromylskyj/2D-Engine-Simulator/internal/telemetry"
)

// Server steps the simulation at the configured poll rate and broadcasts
// telemetry frames to WebSocket clients. Clients send control messages
// (throttle, starter) back on the same socket.
type Server struct {
	cfg   *Config
	sim   *telemetry.SimProvider
	sink  *ecu.Sink
	webFS fs.FS
	lg    *logger.Logger

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Frame is the JSON structure sent to all WebSocket clients.
type Frame struct {
	Engine *telemetry.DataFrame `json:"engine,omitempty"`
	Config *DisplayConfig       `json:"config,omitempty"`
	Stamp  int64                `json:"stamp"` // Unix ms
}

// controlMsg is the JSON structure clients send back.
type controlMsg struct {
	Type     string  `json:"type"` // "throttle" or "start"
	Throttle float64 `json:"throttle"`
}

// New creates a new Server. sink may be nil when serial output is disabled.
func New(cfg *Config, sim *telemetry.SimProvider, sink *ecu.Sink, webFS fs.FS) *Server {
	return &Server{
		cfg:   cfg,
		sim:   sim,
		sink:  sink,
		webFS: webFS,
		lg: logger.New(logger.Config{
			Enabled:    cfg.Logging.Enabled,
			Path:       cfg.Logging.Path,
			IntervalMs: cfg.Logging.Interval,
		}),
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run starts the HTTP server and the simulation step loop.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()

	// Serve embedded web files
	mux.Handle("/", http.FileServer(http.FS(s.webFS)))

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWS)

	// Config API
	mux.HandleFunc("/api/config", s.handleConfig)

	// Starter API (also reachable via ws control message)
	mux.HandleFunc("/api/start", s.handleStart)

	// Prometheus metrics
	mux.Handle("/metrics", metrics.Handler())

	go s.stepLoop(ctx)

	srv := &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[server] listening on %s", s.cfg.Server.ListenAddr)
	return srv.ListenAndServe()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	s.clientsMu.Unlock()

	log.Printf("[ws] client connected (%d total)", len(s.clients))

	// Send initial display config
	cfgFrame := Frame{
		Config: &s.cfg.Display,
		Stamp:  time.Now().UnixMilli(),
	}
	if data, err := json.Marshal(cfgFrame); err == nil {
		client.send <- data
	}

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine — handles control messages until disconnect
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			s.clientsMu.Unlock()
			close(client.send)
			log.Printf("[ws] client disconnected (%d total)", len(s.clients))
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.handleControl(data)
		}
	}()
}

// handleControl applies a client control message to the simulation.
func (s *Server) handleControl(data []byte) {
	var msg controlMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[ws] bad control message: %v", err)
		return
	}
	switch msg.Type {
	case "throttle":
		s.sim.SetThrottle(msg.Throttle)
	case "start":
		log.Printf("[ws] starter engaged")
		s.sim.Start()
	default:
		log.Printf("[ws] unknown control type %q", msg.Type)
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		data, err := s.cfg.ToJSON()
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", 400)
			return
		}
		if err := s.cfg.UpdateFromJSON(body); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		if err := s.cfg.Save(); err != nil {
			log.Printf("[config] save failed: %v", err)
		}
		// Broadcast updated display config
		cfgFrame := Frame{Config: &s.cfg.Display, Stamp: time.Now().UnixMilli()}
		s.broadcast(cfgFrame)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))

	default:
		http.Error(w, "method not allowed", 405)
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	s.sim.Start()
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// stepLoop polls the sim provider at the configured rate, fanning each
// frame out to WebSocket clients, the CSV logger, the serial dash sink,
// and the Prometheus gauges.
func (s *Server) stepLoop(ctx context.Context) {
	hz := s.cfg.Server.PollHz
	if hz <= 0 {
		hz = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.lg.Close()
			return
		case <-ticker.C:
			frame, err := s.sim.RequestData()
			if err != nil {
				continue
			}

			s.broadcast(Frame{Engine: frame, Stamp: time.Now().UnixMilli()})
			s.lg.Record(frame)
			metrics.Observe(frame)
			if s.sink != nil {
				s.sink.Update(frame)
			}
		}
	}
}

func (s *Server) broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}
