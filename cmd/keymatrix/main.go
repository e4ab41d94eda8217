// Command keymatrix scans a GPIO key matrix and publishes debounced key transitions to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/keymatrix/internal/board"
	"github.com/sweeney/keymatrix/internal/gpio"
	"github.com/sweeney/keymatrix/internal/keys"
	"github.com/sweeney/keymatrix/internal/matrix"
	"github.com/sweeney/keymatrix/internal/mqtt"
	"github.com/sweeney/keymatrix/internal/status"
	"github.com/sweeney/keymatrix/internal/web"
)

// options holds the parsed command line.
type options struct {
	boardPath string
	backend   string
	poll      time.Duration
	debounce  time.Duration
	broker    string
	heartbeat time.Duration
	httpAddr  string
	print     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.boardPath, "board", "", "Board YAML file (empty for the built-in 8x13 board)")
	flag.StringVar(&opts.backend, "backend", "gpiocdev", "GPIO backend: gpiocdev or periph")
	flag.DurationVar(&opts.poll, "poll", time.Millisecond, "Matrix scan interval")
	flag.DurationVar(&opts.debounce, "debounce", 0, "Debounce window (0 uses the board value)")
	flag.StringVar(&opts.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	flag.DurationVar(&opts.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&opts.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.BoolVar(&opts.print, "print", false, "Print the settled matrix and exit")

	flag.Parse()

	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func loadBoard(path string) (*board.Board, error) {
	if path == "" {
		return board.Default(), nil
	}
	return board.Load(path)
}

func openDevice(backend string, b *board.Board) (gpio.Device, error) {
	switch backend {
	case "gpiocdev":
		dev, err := gpio.NewChipIO(b.Ports())
		if err != nil {
			return nil, err
		}
		return dev, nil
	case "periph":
		dev, err := gpio.NewPeriphIO()
		if err != nil {
			return nil, err
		}
		return dev, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func run(opts options) error {
	b, err := loadBoard(opts.boardPath)
	if err != nil {
		return fmt.Errorf("load board: %w", err)
	}
	cfg := b.MatrixConfig()
	if opts.debounce > 0 {
		cfg.Debounce = opts.debounce
	}

	dev, err := openDevice(opts.backend, b)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer dev.Close()

	scanner := matrix.New(cfg, dev)
	scanner.Init()
	if err := dev.Err(); err != nil {
		return fmt.Errorf("configure matrix: %w", err)
	}

	if opts.print {
		if err := printMatrix(scanner, cfg.Debounce, os.Stdout, time.Sleep); err != nil {
			return err
		}
		if err := dev.Err(); err != nil {
			return fmt.Errorf("scan matrix: %w", err)
		}
		return nil
	}

	publisher := mqtt.NewRealPublisher(opts.broker)
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Board:       b.Name,
		Backend:     opts.backend,
		Rows:        scanner.Rows(),
		Cols:        scanner.Cols(),
		PollMs:      opts.poll.Milliseconds(),
		DebounceMs:  cfg.Debounce.Milliseconds(),
		HeartbeatMs: opts.heartbeat.Milliseconds(),
		Broker:      opts.broker,
		HTTPAddr:    opts.httpAddr,
	})

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", opts.httpAddr)
	}

	log.Printf("started: board=%s %dx%d backend=%s poll=%v debounce=%v broker=%s heartbeat=%v",
		b.Name, scanner.Rows(), scanner.Cols(), opts.backend, opts.poll, cfg.Debounce, opts.broker, opts.heartbeat)

	ticker := time.NewTicker(opts.poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	detector := keys.NewDetector(snap.StartTime)
	return runLoop(scanner, dev, detector, publisher, publisher, tracker, opts.heartbeat, time.Now, ticker.C, sigCh)
}

// printMatrix scans once, waits out the debounce window, scans again so the
// window commits, then writes the grid.
func printMatrix(scanner *matrix.Scanner, debounce time.Duration, w io.Writer, sleep func(time.Duration)) error {
	scanner.Scan()
	sleep(debounce)
	scanner.Scan()
	return scanner.Print(w)
}

// hardwareErr reports a latched backend failure. dev may be nil.
func hardwareErr(dev interface{ Err() error }) error {
	if dev == nil {
		return nil
	}
	return dev.Err()
}

func runLoop(scanner *matrix.Scanner, dev interface{ Err() error }, detector *keys.Detector, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	var scans uint64
	var lastErr error

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			scanner.Scan()
			scans++

			// The backend keeps serving its last good state after a failure,
			// so scanning continues; only log when the error changes.
			hwErr := hardwareErr(dev)
			if hwErr != nil && (lastErr == nil || hwErr.Error() != lastErr.Error()) {
				log.Printf("gpio error: %v", hwErr)
			}
			lastErr = hwErr

			events := detector.Process(scanner, t)
			for _, event := range events {
				log.Printf("event: %s row=%d col=%d", event.Type, event.Row, event.Col)
				if err := publisher.Publish(event); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
			}

			if tracker != nil {
				tracker.Update(scanner.Snapshot(), detector.IsBaselined(), detector.Held(), detector.EventCountsSnapshot(), scans)
				tracker.SetHardwareError(hwErr)
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}

			if hbData := detector.CheckHeartbeat(t, heartbeat); hbData != nil {
				log.Printf("heartbeat: uptime=%v key_down=%d key_up=%d held=%d",
					hbData.Uptime, hbData.Counts.Down, hbData.Counts.Up, hbData.Held)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					hbEvent.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}
