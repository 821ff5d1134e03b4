package ecu

import (
	"fmt"
	"log"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/DanielDobromylskyj/2D-Engine-Simulator/internal/telemetry"
)

// Sink exposes the simulated engine on a serial port using the Speeduino
// secondary serial protocol (plain commands, no CRC framing). A hardware
// dash polls with 'n' or 'A' and receives realtime blocks built from the
// latest telemetry frame.
type Sink struct {
	portPath string
	baudRate int

	mu    sync.Mutex
	port  serial.Port
	frame *telemetry.DataFrame
	open  bool
}

// SinkConfig holds serial output configuration.
type SinkConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	PortPath string `yaml:"port_path" json:"portPath"` // e.g. /dev/ttyDash
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
}

// NewSink creates a serial telemetry sink.
func NewSink(cfg SinkConfig) *Sink {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	return &Sink{portPath: cfg.PortPath, baudRate: cfg.BaudRate}
}

func (s *Sink) Name() string { return "Dash Serial Out" }

// Connect opens the serial port.
func (s *Sink) Connect() error {
	mode := &serial.Mode{
		BaudRate: s.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(s.portPath, mode)
	if err != nil {
		return fmt.Errorf("ecu: failed to open %s: %w", s.portPath, err)
	}
	if err := port.SetReadTimeout(200 * time.Millisecond); err != nil {
		port.Close()
		return fmt.Errorf("ecu: failed to set timeout: %w", err)
	}

	s.mu.Lock()
	s.port = port
	s.open = true
	s.mu.Unlock()

	log.Printf("[ecu] serving dash protocol on %s at %d baud", s.portPath, s.baudRate)
	go s.serve(port)
	return nil
}

// Close shuts the port down.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	if s.port != nil {
		err := s.port.Close()
		s.port = nil
		return err
	}
	return nil
}

// IsConnected reports whether the port is open.
func (s *Sink) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Update stores the latest telemetry frame for subsequent dash polls.
func (s *Sink) Update(f *telemetry.DataFrame) {
	s.mu.Lock()
	s.frame = f
	s.mu.Unlock()
}

// serve answers dash commands until the port closes. Unknown command bytes
// are ignored, matching the firmware's tolerance of line noise.
func (s *Sink) serve(port serial.Port) {
	buf := make([]byte, 1)
	for {
		n, err := port.Read(buf)
		if err != nil {
			s.mu.Lock()
			stillOpen := s.open
			s.mu.Unlock()
			if stillOpen {
				log.Printf("[ecu] serial read error: %v", err)
			}
			return
		}
		if n == 0 {
			continue // read timeout, poll again
		}
		if err := s.respond(port, buf[0]); err != nil {
			log.Printf("[ecu] serial write error: %v", err)
			return
		}
	}
}

func (s *Sink) respond(port serial.Port, cmd byte) error {
	s.mu.Lock()
	frame := s.frame
	s.mu.Unlock()

	switch cmd {
	case cmdRealtimeN:
		block := BuildRealtimeBlock(frame)
		resp := make([]byte, 0, 3+len(block))
		resp = append(resp, cmdRealtimeN, realtimeNType, byte(len(block)))
		resp = append(resp, block...)
		_, err := port.Write(resp)
		return err
	case cmdRealtimeA:
		block := BuildRealtimeBlock(frame)
		resp := append([]byte{cmdRealtimeA}, block[:secondaryADataSize]...)
		_, err := port.Write(resp)
		return err
	case cmdSignature:
		_, err := port.Write([]byte(signature))
		return err
	case cmdVersion:
		_, err := port.Write([]byte(version))
		return err
	default:
		return nil
	}
}
