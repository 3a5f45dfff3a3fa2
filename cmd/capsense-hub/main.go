// Command capsense-hub runs the capacitive-sensor hub: a scan loop that
// publishes per-sensor readings into two bus-exposed buffers, a serial bus
// slave serving those buffers to external masters, and a decimated debug
// mirror on a console.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.bug.st/serial"

	"github.com/banshee-data/capsense.hub/internal/capsense"
	"github.com/banshee-data/capsense.hub/internal/config"
	"github.com/banshee-data/capsense.hub/internal/ezi2c"
	"github.com/banshee-data/capsense.hub/internal/mirror"
	"github.com/banshee-data/capsense.hub/internal/monitoring"
	"github.com/banshee-data/capsense.hub/internal/pubbuf"
	"github.com/banshee-data/capsense.hub/internal/reading"
	"github.com/banshee-data/capsense.hub/internal/scanloop"
	"github.com/banshee-data/capsense.hub/internal/version"
)

var (
	devMode    = flag.Bool("dev", false, "Run in dev mode (mock bus port with a self-polling master)")
	configPath = flag.String("config", "", "Path to YAML config file")
	listen     = flag.String("listen", "", "Admin debug listen address (overrides config)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *listen != "" {
		cfg.Admin.Listen = *listen
	}
	log.Printf("starting capsense hub %s (%s): %s", version.Version, version.GitSHA, cfg)

	engine, err := capsense.NewSimEngine(cfg.Sim)
	if err != nil {
		log.Fatalf("failed to create scan engine: %v", err)
	}
	defer engine.Close()

	// publication buffers: sized once from the engine's fixed sensor count,
	// never resized, zero until the first completed cycle
	compact, err := pubbuf.New(reading.BytesPerSensor * engine.NumSensors())
	if err != nil {
		log.Fatalf("failed to create compact buffer: %v", err)
	}
	diag, err := pubbuf.New(len(engine.Diagnostics()))
	if err != nil {
		log.Fatalf("failed to create diagnostic buffer: %v", err)
	}

	var slave ezi2c.SlaveInterface
	if *devMode {
		slave = ezi2c.NewMockSlave(compact.Size(), 500*time.Millisecond)
	} else {
		mode := ezi2c.DefaultPortMode()
		mode.BaudRate = cfg.Bus.Baud
		slave, err = ezi2c.NewRealSlave(cfg.Bus.Port, mode)
		if err != nil {
			log.Fatalf("failed to open bus port %s: %v", cfg.Bus.Port, err)
		}
	}
	defer slave.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// expose the diagnostic structure on the primary address for tuning
	// tools and the compact record on the secondary address for other
	// masters, then arm the slave
	slave.SetBuffer1(diag)
	slave.SetBuffer2(compact)
	if err := slave.Enable(); err != nil {
		// a hub without its publication path must not scan: park until
		// shutdown with the buffers at their initial all-zero state
		log.Printf("failed to enable bus slave: %v; halting without scanning", err)
		<-ctx.Done()
		return
	}

	console, closeConsole, err := openConsole(cfg.Console)
	if err != nil {
		log.Fatalf("failed to open debug console: %v", err)
	}
	if closeConsole != nil {
		defer closeConsole()
	}

	stats := monitoring.NewCycleStats(0)
	driver, err := scanloop.New(engine, diag, compact, mirror.New(console), stats)
	if err != nil {
		log.Fatalf("failed to create scan driver: %v", err)
	}

	if err := engine.Enable(); err != nil {
		// the loop still runs, but a dead engine never reports ready:
		// reproduces the silent stall of a failed hardware bring-up
		log.Printf("failed to enable scan engine: %v; loop will idle", err)
	}

	if *devMode {
		// give the self-polling dev master something to see
		engine.Touch(0, 600)
	}

	var wg sync.WaitGroup

	// run the bus slave to serve master reads from the buffers
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := slave.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("bus slave stopped: %v", err)
		}
		log.Print("bus slave routine terminated")
	}()

	// run the scan loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := driver.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("scan loop stopped: %v", err)
		}
		log.Print("scan loop routine terminated")
	}()

	// admin debug HTTP server
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		slave.AttachAdminRoutes(mux)
		attachCycleStats(mux, stats)

		server := &http.Server{Addr: cfg.Admin.Listen, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start admin server: %v", err)
			}
		}()

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("admin server shutdown error: %v", err)
		}
		log.Print("admin server routine stopped")
	}()

	wg.Wait()
	log.Print("graceful shutdown complete")
}

// openConsole returns the debug-console writer: a serial port when one is
// configured, stdout otherwise.
func openConsole(cfg config.ConsoleConfig) (io.Writer, func() error, error) {
	if cfg.Port == "" {
		return os.Stdout, nil, nil
	}
	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.Baud})
	if err != nil {
		return nil, nil, err
	}
	return port, port.Close, nil
}
