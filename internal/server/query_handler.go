// Package server implements the transport adapters: UDP listener, TCP
// listener, and DNS-over-HTTPS server. Each is framing only; all three
// delegate to a shared QueryHandler that runs the resolver with a timeout
// and falls back to SERVFAIL on a resolver failure. A request that fails
// to parse gets no response from the handler at all.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/kvdns/kvdnsd/internal/dnsmsg"
	"github.com/kvdns/kvdnsd/internal/resolver"
)

// QueryHandler runs a decoded-or-raw DNS request through a Resolver and
// enforces a timeout, independent of which transport called it.
type QueryHandler struct {
	Logger   *slog.Logger
	Resolver resolver.Resolver
	Timeout  time.Duration // default 4s
	Stats    *DNSStats     // optional; nil disables counters
}

// HandleResult is the outcome of processing one request.
type HandleResult struct {
	ResponseBytes []byte
	Parsed        dnsmsg.Packet
	ParsedOK      bool
}

// Handle parses reqBytes, resolves it with a timeout, and returns the
// marshaled response. A request that fails to parse gets no response at
// all: UDP and TCP drop it silently, and the DoH handler turns the absent
// response into an HTTP 400.
func (h *QueryHandler) Handle(ctx context.Context, transport string, src string, reqBytes []byte) HandleResult {
	start := time.Now()
	if h.Stats != nil {
		h.Stats.RecordQuery(transport)
	}

	parsed, err := dnsmsg.ParseRequestBounded(reqBytes)
	if err != nil {
		if h.Stats != nil {
			h.Stats.RecordError()
		}
		return HandleResult{ResponseBytes: nil, ParsedOK: false}
	}

	qname, qtype := extractQuestionInfo(parsed)
	respBytes := h.resolveWithTimeout(ctx, parsed)
	h.logRequest(ctx, transport, src, parsed, qname, qtype, len(reqBytes))

	if h.Stats != nil {
		h.Stats.RecordLatency(time.Since(start).Nanoseconds())
		h.recordResponseOutcome(respBytes)
	}

	return HandleResult{ResponseBytes: respBytes, Parsed: parsed, ParsedOK: true}
}

func (h *QueryHandler) recordResponseOutcome(respBytes []byte) {
	if len(respBytes) < 4 {
		return
	}
	flags := uint16(respBytes[2])<<8 | uint16(respBytes[3])
	switch dnsmsg.RCodeFromFlags(flags) {
	case dnsmsg.RCodeNXDomain:
		h.Stats.RecordNXDOMAIN()
	case dnsmsg.RCodeServFail, dnsmsg.RCodeFormErr:
		h.Stats.RecordError()
	}
}

func extractQuestionInfo(parsed dnsmsg.Packet) (string, int) {
	qname := "<no-question>"
	qtype := -1
	if len(parsed.Questions) > 0 {
		qname = parsed.Questions[0].Name
		qtype = int(parsed.Questions[0].Type)
	}
	return qname, qtype
}

// resolveWithTimeout runs the resolver in its own goroutine so a stuck
// store read cannot block the caller past the timeout; the goroutine is
// abandoned (not canceled) on timeout and its result discarded when it
// eventually arrives, since the channel is buffered.
func (h *QueryHandler) resolveWithTimeout(ctx context.Context, parsed dnsmsg.Packet) []byte {
	type outcome struct {
		resp dnsmsg.Packet
		err  error
	}
	resCh := make(chan outcome, 1)
	go func() {
		resp, err := h.Resolver.Resolve(ctx, parsed)
		resCh <- outcome{resp: resp, err: err}
	}()

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return mustMarshal(dnsmsg.BuildErrorResponse(parsed, uint16(dnsmsg.RCodeServFail)))
	case <-timer.C:
		return mustMarshal(dnsmsg.BuildErrorResponse(parsed, uint16(dnsmsg.RCodeServFail)))
	case r := <-resCh:
		if r.err != nil {
			return mustMarshal(dnsmsg.BuildErrorResponse(parsed, uint16(dnsmsg.RCodeServFail)))
		}
		return mustMarshal(r.resp)
	}
}

func (h *QueryHandler) logRequest(
	ctx context.Context,
	transport, src string,
	parsed dnsmsg.Packet,
	qname string,
	qtype int,
	reqLen int,
) {
	if h.Logger == nil || !h.Logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	h.Logger.DebugContext(
		ctx,
		"dns request",
		"transport", transport,
		"src", src,
		"id", int(parsed.Header.ID),
		"qname", qname,
		"qtype", qtype,
		"bytes", reqLen,
	)
}

func mustMarshal(p dnsmsg.Packet) []byte {
	b, err := p.Marshal()
	if err != nil {
		return nil
	}
	return b
}
