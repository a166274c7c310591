// Command switchd is the broker daemon: it serves the HTTP wire protocol
// of §6 and a Prometheus /metrics endpoint, optionally detaching into the
// background after binding its listener.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dantte-lp/switchd/internal/assets"
	"github.com/dantte-lp/switchd/internal/broker"
	"github.com/dantte-lp/switchd/internal/config"
	"github.com/dantte-lp/switchd/internal/metrics"
	"github.com/dantte-lp/switchd/internal/transporthttp"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		port       = flag.Int("port", 0, "listen port (overrides config)")
		ip         = flag.String("ip", "", "listen address (overrides config)")
		daemonFlag = flag.Bool("daemon", false, "detach into the background after binding")
		pidfile    = flag.String("pidfile", "", "write the daemon's pid to this path")
		configPath = flag.String("config", "", "path to a YAML config file")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "switchd: load config:", err)
		return 1
	}
	applyFlagOverrides(cfg, *port, *ip, *daemonFlag, *pidfile)

	log := newLogger(cfg.Log.Level)

	isChild := os.Getenv("SWITCHD_DAEMON_CHILD") == "1"

	var ln *net.TCPListener
	if isChild {
		ln, err = inheritedListener()
	} else {
		var tcpAddr *net.TCPAddr
		tcpAddr, err = net.ResolveTCPAddr("tcp", cfg.Listen.Addr())
		if err == nil {
			ln, err = net.ListenTCP("tcp", tcpAddr)
		}
	}
	if err != nil {
		log.Error("bind listener", "error", err)
		return 1
	}

	if cfg.Listen.Daemon {
		if err := daemonize(ln, cfg.Listen.PIDFile); err != nil {
			log.Error("daemonize", "error", err)
			return 1
		}
		// daemonize exits the parent; only the re-executed child reaches here.
	} else if cfg.Listen.PIDFile != "" {
		if err := writePIDFile(cfg.Listen.PIDFile, os.Getpid()); err != nil {
			log.Error("write pidfile", "error", err)
			return 1
		}
	}

	return serve(ln, cfg, log)
}

func applyFlagOverrides(cfg *config.Config, port int, ip string, daemon bool, pidfile string) {
	if port != 0 {
		cfg.Listen.Port = port
	}
	if ip != "" {
		cfg.Listen.IP = ip
	}
	if daemon {
		cfg.Listen.Daemon = true
	}
	if pidfile != "" {
		cfg.Listen.PIDFile = pidfile
	}
}

func serve(ln *net.TCPListener, cfg *config.Config, log *slog.Logger) int {
	reg := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(reg)

	b := broker.New(
		broker.WithLogger(log),
		broker.WithMetrics(recorder),
		broker.WithAssets(assets.NewDir(cfg.Assets.Root)),
		broker.WithTraceCapacity(cfg.Trace.Capacity),
	)

	log.Info("switchd starting",
		"addr", cfg.Listen.Addr(),
		"metrics_addr", cfg.Metrics.Addr,
		"trace_instance", b.Trace.InstanceID(),
	)

	tracker := transporthttp.NewConnTracker()
	handler := transporthttp.New(b, log)

	httpSrv := &http.Server{
		Handler:           handler,
		ConnContext:       tracker.ConnContext,
		ConnState:         tracker.StateHook(b),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve metrics: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("switchd exited with error", "error", err)
		return 1
	}
	log.Info("switchd stopped")
	return 0
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: lvl}))
}
