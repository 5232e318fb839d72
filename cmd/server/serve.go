package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	router "github.com/dkeye/Relay/internal/adapters/http"
	wsignal "github.com/dkeye/Relay/internal/adapters/signal"
	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/control"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/certs"
	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/metrics"
	"github.com/dkeye/Relay/internal/transport"
)

func serveCmd(env *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay on its plain and TLS ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			if *env != "" {
				if err := os.Setenv("CONFIG_ENV", *env); err != nil {
					return err
				}
			}
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx)
		},
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := config.ApplyInitFile(cfg); err != nil {
		log.Warn().Err(err).Str("file", cfg.InitFile).Msg("could not persist init file")
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	reg := app.NewRegistry()
	monitor := app.NewMonitor(reg, m, cfg.HealthInterval)
	monitor.RoleA = domain.RoomName(cfg.RoleARoom)
	monitor.RoleB = domain.RoomName(cfg.RoleBRoom)

	store := certs.NewStore(cfg.CertDir, certs.NewSelfSigned(), m)
	if err := store.Load(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.WatchCerts {
		go func() {
			if err := certs.Watch(ctx, store); err != nil {
				log.Error().Err(err).Msg("certificate watcher stopped")
			}
		}()
	}

	o := &orch.Orchestrator{
		Registry: reg,
		Relay:    app.NewRelay(reg, m),
		Monitor:  monitor,
		Limiter:  app.NewCommandLimiter(cfg.ControlLimit, cfg.ControlInterval),
		Metrics:  m,
	}

	ctl := wsignal.NewSignalWSController(o)
	ctl.ReadLimit = cfg.ReadLimit
	ctl.PingPeriod = cfg.PingPeriod
	ctl.SendBuffer = cfg.SendBuffer

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Status:   o,
		Certs:    store,
		Signal:   ctl,
		Gatherer: promReg,
	})

	listeners := transport.New(cfg.PlainAddr(), cfg.TLSAddr(), r, store.TLSConfig())
	plane := control.New(listeners, func() { reg.CancelAll() }, m)
	if cfg.ShutdownTimeout > 0 {
		plane.CloseTimeout = cfg.ShutdownTimeout
	}
	o.Control = plane

	go monitor.Run(ctx)

	log.Info().Str("http", cfg.PlainAddr()).Str("https", cfg.TLSAddr()).Msg("Relay server starting")
	if err := plane.Run(ctx); err != nil {
		return err
	}
	log.Info().Int("restarts", plane.Restarts()).Msg("Server exited gracefully")
	return nil
}
