// Command portico-serve runs an HTTP server on a portico listener.
//
// It binds a TCP, unix or polled unix socket, optionally wraps it in TLS,
// runs the backoff accept loop and serves a small diagnostics handler that
// reports the negotiated protocol and the client certificate chain.
//
// Usage:
//
//	portico-serve [flags]
//
// Flags:
//
//	-config string        Configuration file path (YAML)
//	-listen string        Listen address, overrides the config file
//	-log-level string     Log level: debug, info, warn, error
//	-protocol-log string  File path for connection event logging (CBOR format)
//
// Examples:
//
//	# Plain HTTP on a local port
//	portico-serve -listen 127.0.0.1:8080
//
//	# HTTP on a unix socket
//	portico-serve -listen unix:/run/portico.sock
//
//	# TLS with client certificates, recording connection events
//	portico-serve -config /etc/portico/portico.yaml -protocol-log serve.plog
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/portico-http/portico/internal/config"
	"github.com/portico-http/portico/internal/serve"
	"github.com/portico-http/portico/pkg/advertise"
	"github.com/portico-http/portico/pkg/listener"
	"github.com/portico-http/portico/pkg/log"
	"github.com/portico-http/portico/pkg/tlslistener"
)

const shutdownTimeout = 10 * time.Second

var (
	configFile  = flag.String("config", "", "Configuration file path (YAML)")
	listenAddr  = flag.String("listen", "", "Listen address: host:port or unix:/path")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
	protocolLog = flag.String("protocol-log", "", "File path for connection event logging (CBOR format)")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	events, closeEvents, err := eventLogger(cfg.Log.ProtocolLog, logger)
	if err != nil {
		return err
	}
	defer closeEvents()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	inner, err := bind(ctx, cfg)
	if err != nil {
		return err
	}

	var ln listener.Listener = inner
	var protocols []string
	if cfg.TLS != nil {
		tcfg, err := cfg.TLS.ListenerConfig()
		if err != nil {
			inner.Close()
			return err
		}
		tl, err := tlslistener.Bind(inner, tcfg,
			tlslistener.WithLogger(logger),
			tlslistener.WithEventLogger(events),
			tlslistener.WithHTTP2(cfg.TLS.HTTP2Enabled()))
		if err != nil {
			inner.Close()
			return err
		}
		ln = tl
		protocols = tl.TLSConfig().NextProtos
	}

	in := listener.NewIncoming(ln,
		listener.WithLogger(logger),
		listener.WithEventLogger(events)).
		SleepOnErrors(cfg.Accept.SleepOnErrors()).
		NoDelay(cfg.Accept.NoDelay)
	defer in.Close()

	if cfg.Advertise != nil {
		adv := advertise.New(advertise.Config{
			Instance:  cfg.Advertise.Instance,
			Interface: cfg.Advertise.Interface,
			TTL:       cfg.Advertise.TTL,
			TXT:       cfg.Advertise.TXT,
		}, advertise.WithLogger(logger))
		addr, _ := in.Addr()
		if err := adv.Advertise(addr, cfg.TLS != nil, protocols); err != nil {
			logger.Warn("mDNS advertisement failed", "error", err)
		}
		defer adv.Stop()
	}

	srv, err := serve.New(serve.InfoHandler(), serve.WithLogger(logger))
	if err != nil {
		return err
	}

	logger.Info("portico serving", "listener", in.String(), "tls", cfg.TLS != nil)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, in) }()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	logger.Info("stopped", "accepted", in.Accepted())
	return nil
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			return nil, err
		}
	}

	if *listenAddr != "" {
		cfg.Listen.Address = *listenAddr
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *protocolLog != "" {
		cfg.Log.ProtocolLog = *protocolLog
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// eventLogger sends connection events to slog at debug level and, when a
// path is given, to a CBOR event log.
func eventLogger(path string, logger *slog.Logger) (log.Logger, func(), error) {
	slogEvents := log.NewSlogAdapter(logger)
	if path == "" {
		return slogEvents, func() {}, nil
	}

	file, err := log.NewFileLogger(path, log.WithErrorLog(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create protocol logger: %w", err)
	}
	closeFile := func() {
		if n := file.Dropped(); n > 0 {
			logger.Warn("events not written to protocol log", "path", path, "dropped", n)
		}
		file.Close()
	}
	return log.NewMultiLogger(slogEvents, file), closeFile, nil
}

// bind opens the configured transport.
func bind(ctx context.Context, cfg *config.Config) (listener.Listener, error) {
	path, ok := cfg.UnixPath()
	switch {
	case !ok:
		return listener.BindTCP(ctx, cfg.Listen.Address)
	case cfg.Listen.UnixMode == config.UnixModePolled:
		ln, err := listener.BindUnixPolled(path)
		if err != nil {
			return nil, err
		}
		ln.SetPollInterval(cfg.Listen.PollInterval)
		return ln, nil
	default:
		return listener.BindUnix(path)
	}
}
