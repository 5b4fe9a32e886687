// Package config loads kvdnsd's configuration from environment variables
// using github.com/spf13/viper. There is no config file and no flag layer:
// the entire surface is the flat env-var table below, each variable bound
// individually so a malformed value can be reported by name.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
)

// RedisConfig holds the dial parameters for one of the two store pools
// (main RRset pool and DNSSEC RRSIG pool share these, see server.Runner).
type RedisConfig struct {
	Hostname     string
	Port         int
	Username     string
	Password     string
	RetrySeconds int
}

// Addr returns host:port suitable for redis.Options.Addr.
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Hostname, strconv.Itoa(r.Port))
}

// String redacts Password so it never lands in a log line or %+v dump via
// fmt's Stringer hook.
func (r RedisConfig) String() string {
	return fmt.Sprintf("RedisConfig{Hostname:%s Port:%d Username:%s Password:<redacted> RetrySeconds:%d}",
		r.Hostname, r.Port, r.Username, r.RetrySeconds)
}

// LogValue gives slog the same redaction when a RedisConfig is logged
// directly as an attribute value.
func (r RedisConfig) LogValue() slog.Value {
	return slog.StringValue(r.String())
}

// Config is the root configuration, one field per environment variable in
// the external interface table.
type Config struct {
	BindAddress string // BIND_ADDRESS, default "::"
	BindPort    int    // BIND_PORT, default 53

	Redis RedisConfig // REDIS_HOSTNAME/REDIS_PORT/REDIS_USERNAME/REDIS_PASSWORD/REDIS_RETRY_SECONDS

	TCPTimeoutSeconds int // TCP_TIMEOUT_SECONDS, default 3

	UseDoH         bool   // USE_DOH, default true
	DoHBindAddress string // DOH_BIND_ADDRESS, default "::"
	DoHBindPort    int    // DOH_BIND_PORT, default 80
}

// Addr returns the UDP/TCP bind address in host:port form.
func (c Config) Addr() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.BindPort))
}

// DoHAddr returns the DoH HTTP bind address in host:port form.
func (c Config) DoHAddr() string {
	return net.JoinHostPort(c.DoHBindAddress, strconv.Itoa(c.DoHBindPort))
}

// ConfigError names the offending environment variable so startup failures
// are actionable, per the "invalid value is fatal, naming the variable"
// requirement.
type ConfigError struct {
	Variable string
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: invalid %s: %v", e.Variable, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
