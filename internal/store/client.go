package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kvdns/kvdnsd/internal/dnsmsg"
	"github.com/kvdns/kvdnsd/internal/dnsname"
	"github.com/redis/go-redis/v9"
)

// PoolConfig describes how to reach one of the two independent KV pools (the
// main RRset pool and the DNSSEC RRSIG pool): same shape, different target,
// so one struct and one constructor serve both.
type PoolConfig struct {
	Hostname     string
	Port         int
	Username     string
	Password     string
	RetryBackoff time.Duration
}

// Client is a pooled, Redis-backed store client. MainPool answers
// GetRRset/ListAuthoritativeZones; DNSSECPool answers GetRRSIG. They are
// separate *redis.Client instances, each with its own connection pool, even
// when pointed at the same server, so a DNSSEC-pool saturation never
// starves ordinary answers.
type Client struct {
	MainPool   *redis.Client
	DNSSECPool *redis.Client
}

// NewClient builds the two pools from configuration. Connections are lazy:
// go-redis dials on first use, so this never blocks or fails at startup by
// itself - a genuinely unreachable store surfaces as a transport error on
// the first query, which the resolver turns into SERVFAIL.
func NewClient(main, dnssec PoolConfig) *Client {
	return &Client{
		MainPool:   newRedisClient(main),
		DNSSECPool: newRedisClient(dnssec),
	}
}

func newRedisClient(cfg PoolConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:            fmt.Sprintf("%s:%d", cfg.Hostname, cfg.Port),
		Username:        cfg.Username,
		Password:        cfg.Password,
		MinRetryBackoff: cfg.RetryBackoff,
		MaxRetryBackoff: cfg.RetryBackoff,
	})
}

// Close releases both pools' connections.
func (c *Client) Close() error {
	errMain := c.MainPool.Close()
	errDNSSEC := c.DNSSECPool.Close()
	if errMain != nil {
		return errMain
	}
	return errDNSSEC
}

// GetRRset looks up the definitive and wildcard keys for name/rtype in a
// single round trip against MainPool.
func (c *Client) GetRRset(ctx context.Context, name string, rtype dnsmsg.RecordType) (QueryResponse, error) {
	return mget(ctx, c.MainPool, DefinitiveKey(name, rtype), WildcardKey(name, rtype))
}

// GetRRSIG is the same lookup shape as GetRRset, against the DNSSEC pool
// and RRSIG key.
func (c *Client) GetRRSIG(ctx context.Context, name string, coveredType dnsmsg.RecordType) (QueryResponse, error) {
	key := RRSIGKey(name, coveredType)
	return mget(ctx, c.DNSSECPool, key, key)
}

// isPoolTimeout reports whether err is go-redis giving up waiting for a
// free connection (pool exhaustion), as opposed to a network/server fault.
func isPoolTimeout(err error) bool {
	return strings.Contains(err.Error(), "pool timeout")
}

// storeErrSentinel picks ErrPool for pool-exhaustion failures and
// ErrTransport for everything else (dial/timeout/server errors).
func storeErrSentinel(err error) error {
	if isPoolTimeout(err) {
		return ErrPool
	}
	return ErrTransport
}

func mget(ctx context.Context, rdb *redis.Client, definitiveKey, wildcardKey string) (QueryResponse, error) {
	vals, err := rdb.MGet(ctx, definitiveKey, wildcardKey).Result()
	if err != nil {
		return QueryResponse{}, fmt.Errorf("%w: mget %s/%s: %v", storeErrSentinel(err), definitiveKey, wildcardKey, err)
	}

	var resp QueryResponse
	if entry, err := parseMGetValue(vals[0]); err != nil {
		return QueryResponse{}, err
	} else if entry != nil {
		resp.Definitive = entry
	}
	if definitiveKey != wildcardKey {
		if entry, err := parseMGetValue(vals[1]); err != nil {
			return QueryResponse{}, err
		} else if entry != nil {
			resp.Wildcard = entry
		}
	}
	return resp, nil
}

// parseMGetValue interprets one MGET result slot: nil means the key was
// absent (not an error); a string is parsed as a StoreEntry; anything else
// (go-redis never actually returns anything else for a GET
// over a string key, but a non-string value at that key shows up as a
// WRONGTYPE error from Redis itself, which mget already turned into
// ErrTransport) would be an InvalidStoreValue.
func parseMGetValue(v any) (*StoreEntry, error) {
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected value shape %T", ErrInvalidStoreValue, v)
	}
	var entry StoreEntry
	if err := json.Unmarshal([]byte(s), &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStoreData, err)
	}
	return &entry, nil
}

// ListAuthoritativeZones reads the zones-index list and parses every
// element as a zone name. An unparseable element is a fatal
// InvalidStoreData error, since zone names gate authority for every
// subsequent query.
func (c *Client) ListAuthoritativeZones(ctx context.Context) ([]string, error) {
	raw, err := c.MainPool.LRange(ctx, ZonesIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: lrange %s: %v", storeErrSentinel(err), ZonesIndexKey, err)
	}
	zones := make([]string, 0, len(raw))
	for _, z := range raw {
		if _, err := dnsmsg.EncodeName(z); err != nil {
			return nil, fmt.Errorf("%w: zone name %q in %s: %v", ErrInvalidStoreData, z, ZonesIndexKey, err)
		}
		zones = append(zones, dnsname.Canonical(z))
	}
	return zones, nil
}
