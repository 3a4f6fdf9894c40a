// Command lanmode-device simulates a LAN-capable device.
//
// The device serves local_reg.json, opens a LAN session with whichever
// app registers with it and answers the commands it polls.
//
// Usage:
//
//	lanmode-device [flags]
//
// Flags:
//
//	-dsn string            Device serial number
//	-key-id int            LAN key id
//	-key string            LAN key
//	-listen string         local_reg listen address (default ":80")
//	-props string          Properties as name:type[:ack], comma separated
//	-advertise             Advertise the device over mDNS
//	-simulate              Toggle boolean properties every interval
//	-interval duration     Simulation interval (default 10s)
//	-protocol-log string   CBOR protocol log file
//	-log-level string      Log level: debug, info, warn, error (default "info")
//	-version               Print version and exit
//
// Examples:
//
//	# Device with two LEDs, one of them ack-enabled
//	lanmode-device -dsn AC000W000000001 -key-id 4321 -key s3cret \
//	    -listen :8080 -props Blue_LED:boolean,Green_LED:boolean:ack
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yuvaraj-ayla/lanmode/pkg/devicesim"
	"github.com/yuvaraj-ayla/lanmode/pkg/discovery"
	plog "github.com/yuvaraj-ayla/lanmode/pkg/log"
	"github.com/yuvaraj-ayla/lanmode/pkg/version"
)

// Config holds the device configuration.
type Config struct {
	DSN         string
	KeyID       int
	Key         string
	Listen      string
	Props       string
	Advertise   bool
	Simulate    bool
	Interval    time.Duration
	ProtocolLog string
	LogLevel    string
	Version     bool
}

var config Config

func init() {
	flag.StringVar(&config.DSN, "dsn", "AC000W000000001", "Device serial number")
	flag.IntVar(&config.KeyID, "key-id", 1, "LAN key id")
	flag.StringVar(&config.Key, "key", "", "LAN key")
	flag.StringVar(&config.Listen, "listen", ":80", "local_reg listen address")
	flag.StringVar(&config.Props, "props", "Blue_LED:boolean,Green_LED:boolean", "Properties as name:type[:ack], comma separated")
	flag.BoolVar(&config.Advertise, "advertise", false, "Advertise the device over mDNS")
	flag.BoolVar(&config.Simulate, "simulate", false, "Toggle boolean properties every interval")
	flag.DurationVar(&config.Interval, "interval", 10*time.Second, "Simulation interval")
	flag.StringVar(&config.ProtocolLog, "protocol-log", "", "CBOR protocol log file")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&config.Version, "version", false, "Print version and exit")
}

func main() {
	flag.Parse()

	if config.Version {
		fmt.Println("lanmode-device", version.Get())
		return
	}

	logger := setupLogging(config.LogLevel)

	if config.Key == "" {
		log.Fatal("A LAN key is required (-key)")
	}
	props, err := parseProps(config.Props)
	if err != nil {
		log.Fatalf("Invalid -props: %v", err)
	}

	log.Println("LAN Mode Device Simulator")
	log.Println("=========================")
	log.Printf("DSN: %s", config.DSN)
	log.Printf("Listen: %s", config.Listen)

	simConfig := devicesim.Config{
		DSN:           config.DSN,
		KeyID:         config.KeyID,
		Key:           config.Key,
		ListenAddress: config.Listen,
		Properties:    props,
		Logger:        logger,
	}
	if config.ProtocolLog != "" {
		fl, err := plog.NewFileLogger(config.ProtocolLog)
		if err != nil {
			log.Fatalf("Failed to open protocol log: %v", err)
		}
		defer fl.Close()
		simConfig.ProtocolLog = fl
	}
	if config.Advertise {
		simConfig.Advertiser = discovery.NewAdvertiser(discovery.AdvertiserConfig{Logger: logger})
	}

	dev := devicesim.New(simConfig)
	dev.OnCommand(func(cmd devicesim.Command) {
		log.Printf("[CMD] %d %s %s", cmd.CmdID, cmd.Method, cmd.Resource)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dev.Start(ctx); err != nil {
		log.Fatalf("Failed to start device: %v", err)
	}
	log.Printf("Serving local_reg on %s", dev.Addr())

	if config.Simulate {
		go runSimulation(ctx, dev, props, config.Interval)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Printf("Received signal: %v", sig)
	log.Println("Shutting down...")
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := dev.Stop(stopCtx); err != nil {
		log.Printf("Error stopping device: %v", err)
	}

	log.Println("Goodbye!")
}

func setupLogging(level string) *slog.Logger {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	lvl := slog.LevelInfo
	switch level {
	case "debug":
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
		lvl = slog.LevelDebug
	case "warn":
		log.SetFlags(log.Ltime)
		lvl = slog.LevelWarn
	case "error":
		log.SetFlags(log.Ltime)
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// runSimulation flips every boolean property once per interval and
// reports the change while a session is open.
func runSimulation(ctx context.Context, dev *devicesim.Device, props []devicesim.Property, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !dev.Active() {
				continue
			}
			for _, p := range props {
				if p.BaseType != "boolean" {
					continue
				}
				v, _ := dev.Value(p.Name)
				next := 1
				if isOn(v) {
					next = 0
				}
				if err := dev.SetValue(ctx, p.Name, next); err != nil {
					log.Printf("[SIM] %s: %v", p.Name, err)
					continue
				}
				log.Printf("[SIM] %s = %d", p.Name, next)
			}
		}
	}
}

func isOn(v any) bool {
	switch x := v.(type) {
	case int:
		return x != 0
	case float64:
		return x != 0
	case bool:
		return x
	}
	return false
}
