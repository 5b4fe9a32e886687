// Package resolver implements the query pipeline: it turns a decoded DNS
// request into a decoded DNS response by reading RRsets out of the store.
// It never recurses and never talks to the network directly; that is the
// transport adapters' job (see internal/server).
package resolver

import (
	"context"

	"github.com/kvdns/kvdnsd/internal/dnsmsg"
)

// Resolver answers a single decoded DNS request. Implementations are pure
// with respect to transport: their only side effects are store reads.
type Resolver interface {
	Resolve(ctx context.Context, req dnsmsg.Packet) (dnsmsg.Packet, error)
	Close() error
}
