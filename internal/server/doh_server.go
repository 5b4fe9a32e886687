package server

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/kvdns/kvdnsd/internal/dnsmsg"
)

// maxDoHBodySize bounds the request body read for POST /dns-query, matching
// the largest request ParseRequestBounded accepts (MaxIncomingDNSMessageSize).
const maxDoHBodySize = dnsmsg.MaxIncomingDNSMessageSize

// DoHServer implements RFC 8484 DNS-over-HTTPS: POST with a raw wire-format
// body, GET with a base64url (no padding) "dns" query parameter, and a
// /healthz endpoint for process liveness.
type DoHServer struct {
	Logger  *slog.Logger
	Handler *QueryHandler
	Addr    string
	Stats   *DNSStats // optional; included in /healthz when set

	startTime time.Time
	srv       *http.Server
}

// engine builds the gin router, split out from Run so tests can exercise
// the handlers via httptest without binding a real socket.
func (d *DoHServer) engine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), corsMiddleware())
	engine.POST("/dns-query", d.handlePOST)
	engine.GET("/dns-query", d.handleGET)
	engine.GET("/healthz", d.handleHealthz)
	return engine
}

// Run builds the gin engine and serves until ctx is canceled.
func (d *DoHServer) Run(ctx context.Context) error {
	d.startTime = time.Now()

	d.srv = &http.Server{
		Addr:              d.Addr,
		Handler:           d.engine(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- d.srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		_ = d.srv.Shutdown(context.Background())
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Stop gracefully shuts the HTTP server down within timeout.
func (d *DoHServer) Stop(timeout time.Duration) error {
	if d.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return d.srv.Shutdown(ctx)
}

func (d *DoHServer) handlePOST(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDoHBodySize+1))
	if err != nil || len(body) > maxDoHBodySize {
		c.Status(http.StatusBadRequest)
		return
	}
	d.respond(c, body)
}

func (d *DoHServer) handleGET(c *gin.Context) {
	raw := c.Query("dns")
	if raw == "" {
		c.Status(http.StatusBadRequest)
		return
	}
	body, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	d.respond(c, body)
}

func (d *DoHServer) respond(c *gin.Context, body []byte) {
	result := d.Handler.Handle(c.Request.Context(), "doh", c.ClientIP(), body)
	if result.ResponseBytes == nil {
		if result.ParsedOK {
			// Request decoded fine; the failure was encoding the response.
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusBadRequest)
		return
	}
	c.Data(http.StatusOK, "application/dns-message", result.ResponseBytes)
}

func (d *DoHServer) handleHealthz(c *gin.Context) {
	uptime := time.Since(d.startTime)

	resp := gin.H{
		"status":         "ok",
		"uptime_seconds": int64(uptime.Seconds()),
		"num_cpu":        runtime.NumCPU(),
	}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		resp["memory_used_percent"] = vmStat.UsedPercent
	}
	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		resp["cpu_used_percent"] = cpuPercent[0]
	}
	if d.Stats != nil {
		resp["stats"] = d.Stats.Snapshot()
	}
	c.JSON(http.StatusOK, resp)
}

// corsMiddleware allows any origin to call /dns-query with GET or POST and a
// content-type header, so browser-based DoH clients can reach this server
// directly.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST")
		c.Header("Access-Control-Allow-Headers", "content-type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
