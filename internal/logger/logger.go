package logger

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DanielDobromylskyj/2D-Engine-Simulator/internal/telemetry"
)

// Logger records timestamped simulation telemetry to CSV files with
// automatic rotation.
type Logger struct {
	mu       sync.Mutex
	dir      string
	interval time.Duration
	enabled  bool

	file   *os.File
	writer *csv.Writer
	header []string
	lastTs time.Time
	rows   int
}

// Config holds logger configuration.
type Config struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Path       string `yaml:"path" json:"path"`
	IntervalMs int    `yaml:"interval_ms" json:"intervalMs"`
}

const (
	maxRowsPerFile = 100_000 // Rotate after 100k rows (~2.7 hrs at 10 Hz)
	maxCylinders   = 12      // Fixed header width; unused columns stay empty
)

// New creates a new Logger.
func New(cfg Config) *Logger {
	if cfg.Path == "" {
		cfg.Path = "/var/log/enginesim"
	}
	interval := time.Duration(cfg.IntervalMs) * time.Millisecond
	if interval < 50*time.Millisecond {
		interval = 100 * time.Millisecond // Default 10 Hz
	}
	return &Logger{
		dir:      cfg.Path,
		interval: interval,
		enabled:  cfg.Enabled,
		header:   buildHeader(),
	}
}

func buildHeader() []string {
	h := []string{"timestamp", "rpm", "throttle", "starter", "running"}
	for i := 0; i < maxCylinders; i++ {
		h = append(h,
			fmt.Sprintf("cyl%d_temp_k", i),
			fmt.Sprintf("cyl%d_pressure_kpa", i),
			fmt.Sprintf("cyl%d_mode", i),
			fmt.Sprintf("cyl%d_fuel_g", i),
		)
	}
	return h
}

// SetEnabled allows toggling logging at runtime.
func (l *Logger) SetEnabled(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = on
	if !on && l.file != nil {
		l.closeFile()
	}
}

// IsEnabled returns whether logging is active.
func (l *Logger) IsEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// Record writes a telemetry snapshot if the minimum interval has elapsed.
func (l *Logger) Record(f *telemetry.DataFrame) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || f == nil {
		return
	}

	now := time.Now()
	if now.Sub(l.lastTs) < l.interval {
		return
	}
	l.lastTs = now

	// Open/rotate file if needed
	if l.writer == nil || l.rows >= maxRowsPerFile {
		if err := l.rotateFile(now); err != nil {
			log.Printf("[logger] rotate failed: %v", err)
			return
		}
	}

	row := l.buildRow(now, f)
	if err := l.writer.Write(row); err != nil {
		log.Printf("[logger] write failed: %v", err)
		return
	}
	l.writer.Flush()
	l.rows++
}

// Close flushes and closes the current log file.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeFile()
}

func (l *Logger) rotateFile(now time.Time) error {
	l.closeFile()

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", l.dir, err)
	}

	filename := fmt.Sprintf("enginesim_%s.csv", now.Format("2006-01-02_150405"))
	path := filepath.Join(l.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	l.file = f
	l.writer = csv.NewWriter(f)
	l.rows = 0

	if err := l.writer.Write(l.header); err != nil {
		return err
	}
	l.writer.Flush()

	log.Printf("[logger] opened %s", path)
	return nil
}

func (l *Logger) closeFile() {
	if l.writer != nil {
		l.writer.Flush()
		l.writer = nil
	}
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

func (l *Logger) buildRow(ts time.Time, f *telemetry.DataFrame) []string {
	row := make([]string, len(l.header))

	row[0] = ts.Format(time.RFC3339Nano)
	row[1] = fmt.Sprintf("%.1f", f.RPM)
	row[2] = fmt.Sprintf("%.2f", f.Throttle)
	row[3] = boolStr(f.Starter)
	row[4] = boolStr(f.Running)

	for i, cyl := range f.Cylinders {
		if i >= maxCylinders {
			break
		}
		off := 5 + i*4
		row[off] = fmt.Sprintf("%.1f", cyl.Temperature)
		row[off+1] = fmt.Sprintf("%.1f", cyl.Pressure/1000)
		row[off+2] = cyl.Mode
		row[off+3] = fmt.Sprintf("%.3f", cyl.Fuel*1000)
	}

	return row
}

func boolStr(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
