package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DanielDobromylskyj/2D-Engine-Simulator/internal/ecu"
	"github.com/DanielDobromylskyj/2D-Engine-Simulator/internal/engine"
	"github.com/DanielDobromylskyj/2D-Engine-Simulator/internal/server"
	"github.com/DanielDobromylskyj/2D-Engine-Simulator/internal/telemetry"
	"github.com/DanielDobromylskyj/2D-Engine-Simulator/web"
)

func main() {
	configPath := flag.String("config", "/etc/enginesim/config.yaml", "Path to config file")
	listenAddr := flag.String("listen", "", "Override listen address (e.g. :8080)")
	autostart := flag.Bool("start", false, "Engage the starter motor immediately")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] enginesim starting")

	// Load config
	cfg := server.LoadConfig(*configPath)
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	// Build the engine — a bad fire order or geometry is fatal here.
	eng, err := engine.New(cfg.Engine)
	if err != nil {
		log.Fatalf("[main] engine config: %v", err)
	}

	sim := telemetry.NewSimProvider(eng)
	if err := sim.Connect(); err != nil {
		log.Fatalf("[main] sim provider: %v", err)
	}
	if *autostart {
		sim.Start()
	}

	// Optional serial dash output with exponential backoff retry —
	// the dashboard starts regardless of whether the port is present.
	var sink *ecu.Sink
	if cfg.Dash.Enabled {
		sink = ecu.NewSink(cfg.Dash)
		go connectWithRetry(ctx, "dash", sink, 10)
	}

	srv := server.New(cfg, sim, sink, web.FS)
	if err := srv.Run(ctx); err != nil {
		log.Printf("[main] server exited: %v", err)
	}
}

// connectable is satisfied by the serial sink and any telemetry provider.
type connectable interface {
	Connect() error
	Close() error
}

// connectWithRetry attempts to connect with exponential backoff.
// Starts at 1s, doubles each attempt up to 60s, retries up to maxAttempts
// then continues at max interval indefinitely.
func connectWithRetry(ctx context.Context, name string, c connectable, maxAttempts int) {
	delay := 1 * time.Second
	maxDelay := 60 * time.Second
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.Connect(); err != nil {
			attempt++
			if attempt <= maxAttempts {
				log.Printf("[%s] connect attempt %d/%d failed: %v (retry in %v)",
					name, attempt, maxAttempts, err, delay)
			} else {
				log.Printf("[%s] connect attempt %d failed: %v (retry in %v)",
					name, attempt, err, delay)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		} else {
			log.Printf("[%s] connected successfully (attempt %d)", name, attempt+1)
			return
		}
	}
}
