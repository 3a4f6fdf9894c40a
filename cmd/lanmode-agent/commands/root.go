// Package commands implements the lanmode-agent command tree.
package commands

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yuvaraj-ayla/lanmode/internal/agentconfig"
)

// options holds the persistent flags.
type options struct {
	configPath  string
	logLevel    string
	protocolLog string
	metricsAddr string
	keyStore    string
	passphrase  string
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "lanmode-agent",
		Short:         "App side of the LAN mode session protocol",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	f.StringVar(&opts.protocolLog, "protocol-log", "", "CBOR protocol log file (overrides protocol_log)")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus listen address (overrides metrics_addr)")
	f.StringVar(&opts.keyStore, "key-store", "", "LAN key cache file (overrides key_store)")
	f.StringVarP(&opts.passphrase, "passphrase", "p", "", "passphrase sealing the key cache")

	root.AddCommand(runCmd(opts), keysCmd(opts), versionCmd())
	return root
}

// load reads the configuration file, or the defaults when none is given,
// and applies flag overrides.
func (o *options) load() (*agentconfig.Config, error) {
	cfg := agentconfig.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = agentconfig.Load(o.configPath); err != nil {
			return nil, err
		}
	}
	if o.protocolLog != "" {
		cfg.ProtocolLog = o.protocolLog
	}
	if o.metricsAddr != "" {
		cfg.MetricsAddr = o.metricsAddr
	}
	if o.keyStore != "" {
		cfg.KeyStore = o.keyStore
	}
	return cfg, nil
}

// logger configures the standard logger and returns the slog logger for
// components.
func (o *options) logger() (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(o.logLevel) {
	case "debug":
		level = slog.LevelDebug
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
	case "info", "":
		level = slog.LevelInfo
		log.SetFlags(log.Ltime | log.Lmicroseconds)
	case "warn":
		level = slog.LevelWarn
		log.SetFlags(log.Ltime)
	case "error":
		level = slog.LevelError
		log.SetFlags(log.Ltime)
	default:
		return nil, fmt.Errorf("unknown log level: %s (use: debug, info, warn, error)", o.logLevel)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}
