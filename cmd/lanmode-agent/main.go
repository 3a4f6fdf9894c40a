// Command lanmode-agent runs the app side of LAN mode for a set of
// statically configured devices.
//
// Usage:
//
//	lanmode-agent run [flags]
//	lanmode-agent keys import <dsn> <key-id> <key> [flags]
//	lanmode-agent keys list [flags]
//
// Global flags:
//
//	--config string        YAML configuration file
//	--log-level string     debug, info, warn, error (default "info")
//	--protocol-log string  CBOR protocol log file
//	--metrics-addr string  Prometheus listen address
//	--key-store string     LAN key cache file
//	--passphrase string    passphrase sealing the key cache
//
// Examples:
//
//	# Run with an interactive console
//	lanmode-agent run --config agent.yaml -i
//
//	# Cache a LAN key for a device listed without one
//	lanmode-agent keys import AC000W000000001 4321 s3cret --key-store keys.json
package main

import (
	"fmt"
	"os"

	"github.com/yuvaraj-ayla/lanmode/cmd/lanmode-agent/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
