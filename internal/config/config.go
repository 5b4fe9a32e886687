package config

import (
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultBindAddress  = "::"
	defaultBindPort     = 53
	defaultRedisHost    = "pektin-redis"
	defaultRedisPort    = 6379
	defaultRedisUser    = "r-pektin-server"
	defaultRetrySeconds = 1
	defaultTCPTimeout   = 3
	defaultUseDoH       = true
	defaultDoHAddress   = "::"
	defaultDoHPort      = 80
)

// envVars lists every bound variable so Load can enumerate them without
// repeating the literal strings at each call site.
var envVars = []string{
	"BIND_ADDRESS", "BIND_PORT",
	"REDIS_HOSTNAME", "REDIS_PORT", "REDIS_USERNAME", "REDIS_PASSWORD", "REDIS_RETRY_SECONDS",
	"TCP_TIMEOUT_SECONDS",
	"USE_DOH", "DOH_BIND_ADDRESS", "DOH_BIND_PORT",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("BIND_ADDRESS", defaultBindAddress)
	v.SetDefault("BIND_PORT", defaultBindPort)
	v.SetDefault("REDIS_HOSTNAME", defaultRedisHost)
	v.SetDefault("REDIS_PORT", defaultRedisPort)
	v.SetDefault("REDIS_USERNAME", defaultRedisUser)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_RETRY_SECONDS", defaultRetrySeconds)
	v.SetDefault("TCP_TIMEOUT_SECONDS", defaultTCPTimeout)
	v.SetDefault("USE_DOH", defaultUseDoH)
	v.SetDefault("DOH_BIND_ADDRESS", defaultDoHAddress)
	v.SetDefault("DOH_BIND_PORT", defaultDoHPort)

	for _, name := range envVars {
		_ = v.BindEnv(name, name)
	}
	return v
}

// Load builds a Config from the process environment. Every field is parsed
// explicitly (rather than trusting viper's GetInt/GetBool, which silently
// coerce malformed input to the zero value) so a bad value is reported as a
// *ConfigError naming the variable, not discovered later as a wrong default.
func Load() (*Config, error) {
	v := newViper()

	bindPort, err := parseIntVar(v, "BIND_PORT")
	if err != nil {
		return nil, err
	}
	redisPort, err := parseIntVar(v, "REDIS_PORT")
	if err != nil {
		return nil, err
	}
	retrySeconds, err := parseIntVar(v, "REDIS_RETRY_SECONDS")
	if err != nil {
		return nil, err
	}
	tcpTimeout, err := parseIntVar(v, "TCP_TIMEOUT_SECONDS")
	if err != nil {
		return nil, err
	}
	useDoH, err := parseBoolVar(v, "USE_DOH")
	if err != nil {
		return nil, err
	}
	dohPort, err := parseIntVar(v, "DOH_BIND_PORT")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BindAddress: v.GetString("BIND_ADDRESS"),
		BindPort:    bindPort,
		Redis: RedisConfig{
			Hostname:     v.GetString("REDIS_HOSTNAME"),
			Port:         redisPort,
			Username:     v.GetString("REDIS_USERNAME"),
			Password:     v.GetString("REDIS_PASSWORD"),
			RetrySeconds: retrySeconds,
		},
		TCPTimeoutSeconds: tcpTimeout,
		UseDoH:            useDoH,
		DoHBindAddress:    v.GetString("DOH_BIND_ADDRESS"),
		DoHBindPort:       dohPort,
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseIntVar(v *viper.Viper, name string) (int, error) {
	raw := strings.TrimSpace(v.GetString(name))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ConfigError{Variable: name, Err: err}
	}
	return n, nil
}

func parseBoolVar(v *viper.Viper, name string) (bool, error) {
	raw := strings.TrimSpace(v.GetString(name))
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &ConfigError{Variable: name, Err: err}
	}
	return b, nil
}

func validate(cfg *Config) error {
	if err := validatePort(cfg.BindPort, "BIND_PORT"); err != nil {
		return err
	}
	if err := validatePort(cfg.Redis.Port, "REDIS_PORT"); err != nil {
		return err
	}
	if cfg.Redis.RetrySeconds < 0 {
		return &ConfigError{Variable: "REDIS_RETRY_SECONDS", Err: errNegative}
	}
	if cfg.TCPTimeoutSeconds <= 0 {
		return &ConfigError{Variable: "TCP_TIMEOUT_SECONDS", Err: errNotPositive}
	}
	if cfg.Redis.Password == "" {
		return &ConfigError{Variable: "REDIS_PASSWORD", Err: errRequired}
	}
	if cfg.UseDoH {
		if err := validatePort(cfg.DoHBindPort, "DOH_BIND_PORT"); err != nil {
			return err
		}
	}
	return nil
}

func validatePort(port int, name string) error {
	if port <= 0 || port > 65535 {
		return &ConfigError{Variable: name, Err: errPortRange}
	}
	return nil
}
