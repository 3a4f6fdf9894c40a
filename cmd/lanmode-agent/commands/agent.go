package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yuvaraj-ayla/lanmode/internal/agentconfig"
	"github.com/yuvaraj-ayla/lanmode/pkg/discovery"
	"github.com/yuvaraj-ayla/lanmode/pkg/dispatch"
	"github.com/yuvaraj-ayla/lanmode/pkg/lanconfig"
	plog "github.com/yuvaraj-ayla/lanmode/pkg/log"
	"github.com/yuvaraj-ayla/lanmode/pkg/metrics"
	"github.com/yuvaraj-ayla/lanmode/pkg/persistence"
	"github.com/yuvaraj-ayla/lanmode/pkg/registry"
	"github.com/yuvaraj-ayla/lanmode/pkg/session"
)

// agent wires the LAN server, one session per configured device and the
// optional metrics endpoint.
type agent struct {
	cfg        *agentconfig.Config
	manager    *session.Manager
	dispatcher *dispatch.Dispatcher
	promReg    *prometheus.Registry
	fileLog    *plog.FileLogger
	metricsSrv *http.Server
}

func newAgent(cfg *agentconfig.Config, logger *slog.Logger, passphrase string) (*agent, error) {
	a := &agent{cfg: cfg, promReg: prometheus.NewRegistry()}
	m := metrics.New(a.promReg)

	var protocolLog plog.Logger
	if cfg.ProtocolLog != "" {
		fl, err := plog.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			return nil, fmt.Errorf("open protocol log: %w", err)
		}
		a.fileLog = fl
		protocolLog = fl
		if logger.Enabled(context.Background(), slog.LevelDebug) {
			protocolLog = plog.Tee(fl, plog.NewSlogAdapter(logger))
		}
	}

	mc := session.DefaultManagerConfig()
	mc.ListenAddress = cfg.ListenAddress()
	mc.AdvertiseIP = cfg.AdvertiseIP
	mc.KeyExchangeRate = cfg.KeyExchangeRate
	if cfg.KeyExchangeRate == 0 {
		mc.KeyExchangeRate = -1
	}
	mc.Session.Resolver = newResolver(cfg, logger)
	mc.Session.Rediscovery = cfg.Rediscovery()
	mc.Session.Rediscovery.Logger = logger
	mc.Session.OfflineCapable = true
	mc.Session.KeepAliveInterval = cfg.KeepAlive
	mc.Session.Metrics = m
	mc.Session.Logger = logger
	mc.Session.ProtocolLog = protocolLog
	if cfg.KeyStore != "" {
		mc.Session.Provider = &lanconfig.CachedProvider{
			Store: persistence.NewKeyStore(cfg.KeyStore, passphrase),
		}
	}

	a.manager = session.NewManager(registry.New(), mc)
	for _, d := range cfg.Devices {
		c, err := a.manager.Add(d.RegistryDevice(), d.Port)
		if err != nil {
			a.close()
			return nil, err
		}
		dsn := c.DSN()
		c.OnStateChange(func(active bool, err error) {
			if err != nil {
				log.Printf("[SESSION] %s active=%v: %v", dsn, active, err)
				return
			}
			log.Printf("[SESSION] %s active=%v", dsn, active)
		})
	}

	a.dispatcher = dispatch.New(dispatch.Config{Metrics: m, Logger: logger})
	return a, nil
}

func newResolver(cfg *agentconfig.Config, logger *slog.Logger) discovery.Resolver {
	host := discovery.NewHostResolver(discovery.HostResolverConfig{Logger: logger})
	if cfg.Resolver != agentconfig.ResolverBrowse {
		return host
	}
	browse := discovery.NewBrowseResolver(discovery.BrowseResolverConfig{
		Service: cfg.BrowseService,
		Logger:  logger,
	})
	return discovery.Chain{browse, host}
}

// start brings up the LAN server and opens a session with every device.
// A device that cannot be reached now is retried by its keep-alive.
func (a *agent) start(ctx context.Context) error {
	if err := a.manager.Start(ctx); err != nil {
		return err
	}
	ip, port := a.manager.Endpoint()
	log.Printf("LAN server listening on %s:%d", ip, port)

	for _, c := range a.manager.Controllers() {
		if err := a.manager.StartSession(ctx, c.DSN()); err != nil {
			log.Printf("Failed to start session for %s: %v", c.DSN(), err)
		}
	}

	if a.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.promReg, promhttp.HandlerOpts{Registry: a.promReg}))
		a.metricsSrv = &http.Server{
			Addr:              a.cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Metrics server: %v", err)
			}
		}()
		log.Printf("Metrics on http://%s/metrics", a.cfg.MetricsAddr)
	}
	return nil
}

func (a *agent) stop(ctx context.Context) error {
	var errs []error
	if a.metricsSrv != nil {
		errs = append(errs, a.metricsSrv.Shutdown(ctx))
	}
	errs = append(errs, a.manager.Stop(ctx))
	a.close()
	return errors.Join(errs...)
}

func (a *agent) close() {
	if a.fileLog != nil {
		if err := a.fileLog.Close(); err != nil {
			log.Printf("Closing protocol log: %v", err)
		}
		a.fileLog = nil
	}
}
