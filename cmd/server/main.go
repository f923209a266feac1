package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"xg27station/internal/config"
	"xg27station/internal/server"
	"xg27station/internal/source"
)

func main() {
	var (
		configPath string
		listen     string
		logLevel   string
	)
	flag.StringVar(&configPath, "config", "", "path to YAML config file")
	flag.StringVar(&listen, "listen", "", "listen address override")
	flag.StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger := newLogger(cfg.Log)
	logger.Info().Str("backend", cfg.Source.Backend).Str("device", cfg.Source.Device).Msg("starting xg27station")

	src, err := source.New(cfg.Source)
	if err != nil {
		logger.Fatal().Err(err).Msg("build source")
	}

	overflow, err := server.ParseOverflowPolicy(cfg.Stream.Overflow)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse overflow policy")
	}

	cache := server.NewCache()
	hub := server.NewStreamHub(cfg.Stream.Buffer, overflow)
	api := server.NewAPI(cache, hub,
		server.WithAsset(cfg.Asset),
		server.WithHeartbeat(cfg.Stream.Heartbeat.Std()),
		server.WithLogger(logger.With().Str("component", "http").Logger()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ingest := server.NewIngestLoop(src, cache, hub,
		cfg.Source.RetryDelay.Std(),
		logger.With().Str("component", "ingest").Logger(),
	)

	var group sync.WaitGroup
	group.Add(1)
	go func() {
		defer group.Done()
		ingest.Run(ctx)
	}()

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           withCORS("*", api.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		// WriteTimeout stays zero: /events responses are open-ended.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	logDashboardURLs(logger, cfg.Listen)

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		group.Add(1)
		go func() {
			defer group.Done()
			watchdog(ctx, interval)
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server failed")
		}
		stop()
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
		_ = httpServer.Close()
	}

	group.Wait()
	logger.Info().Msg("shutdown complete")
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}

	var writer io.Writer = console
	if cfg.File != "" {
		writer = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		})
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func watchdog(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}

// logDashboardURLs prints clickable localhost and LAN URLs so the
// dashboard is one click away in a terminal.
func logDashboardURLs(logger zerolog.Logger, listen string) {
	_, port, err := net.SplitHostPort(listen)
	if err != nil || port == "" {
		logger.Info().Str("listen", listen).Msg("dashboard server listening")
		return
	}

	logger.Info().Str("url", "http://localhost:"+port+"/").Msg("dashboard server listening")
	if ip := localIP(); ip != "" {
		logger.Info().Str("url", "http://"+ip+":"+port+"/").Msg("reachable on lan")
	}
}

func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()

	address, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return ""
	}
	return address.IP.String()
}

func withCORS(allowedOrigin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		response.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		response.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		response.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if request.Method == http.MethodOptions {
			response.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(response, request)
	})
}
