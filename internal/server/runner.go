package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kvdns/kvdnsd/internal/config"
	"github.com/kvdns/kvdnsd/internal/resolver"
	"github.com/kvdns/kvdnsd/internal/store"
)

// Runner orchestrates startup, wiring, and graceful shutdown of the DNS
// server: it opens the two store pools, builds the resolver, and starts
// UDP, TCP, and (if enabled) DoH concurrently.
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a new server runner with the given logger.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run starts the DNS server with the given configuration and blocks until
// a shutdown signal arrives or a listener fails to start.
//
// Server lifecycle:
//  1. Open the main RRset pool and the DNSSEC RRSIG pool
//  2. Build the store-backed resolver
//  3. Start UDP and TCP (always) and DoH (if UseDoH)
//  4. Wait for SIGINT/SIGTERM or a startup/runtime error
//  5. Gracefully stop every listener with a timeout
func (r *Runner) Run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	client := store.NewClient(
		store.PoolConfig{
			Hostname:     cfg.Redis.Hostname,
			Port:         cfg.Redis.Port,
			Username:     cfg.Redis.Username,
			Password:     cfg.Redis.Password,
			RetryBackoff: time.Duration(cfg.Redis.RetrySeconds) * time.Second,
		},
		store.PoolConfig{
			Hostname:     cfg.Redis.Hostname,
			Port:         cfg.Redis.Port,
			Username:     cfg.Redis.Username,
			Password:     cfg.Redis.Password,
			RetryBackoff: time.Duration(cfg.Redis.RetrySeconds) * time.Second,
		},
	)

	res := resolver.NewStoreResolver(client)
	defer res.Close()

	stats := NewDNSStats()
	h := &QueryHandler{Logger: r.logger, Resolver: res, Timeout: 4 * time.Second, Stats: stats}
	limiter := NewRateLimiterFromEnv()

	addr := cfg.Addr()
	r.logStartup(cfg, addr)

	udp := &UDPServer{Logger: r.logger, Handler: h, Limiter: limiter}
	tcp := &TCPServer{Logger: r.logger, Handler: h, IdleTimeout: time.Duration(cfg.TCPTimeoutSeconds) * time.Second}

	errCh := make(chan error, 3)
	go func() { errCh <- udp.Run(ctx, addr) }()
	go func() { errCh <- tcp.Run(ctx, addr) }()

	var doh *DoHServer
	if cfg.UseDoH {
		doh = &DoHServer{Logger: r.logger, Handler: h, Addr: cfg.DoHAddr(), Stats: stats}
		go func() { errCh <- doh.Run(ctx) }()
	}

	select {
	case <-ctx.Done():
		// shutdown requested via signal
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			cancelRun()
			return fmt.Errorf("server: listener failed: %w", err)
		}
	}

	stopTimeout := 5 * time.Second
	_ = udp.Stop(stopTimeout)
	_ = tcp.Stop(stopTimeout)
	if doh != nil {
		_ = doh.Stop(stopTimeout)
	}
	return nil
}

func (r *Runner) logStartup(cfg *config.Config, addr string) {
	if r.logger == nil {
		return
	}
	r.logger.Info(
		"dns listening",
		"addr", addr,
		"udp", true,
		"tcp", true,
		"doh", cfg.UseDoH,
		"doh_addr", cfg.DoHAddr(),
		"redis", cfg.Redis,
	)
}
