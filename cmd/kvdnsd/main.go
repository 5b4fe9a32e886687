// Command kvdnsd runs the authoritative DNS server described in the
// package documentation of internal/server: UDP and TCP always, DoH when
// USE_DOH is enabled, all answering from the external KV store.
package main

import (
	"fmt"
	"os"

	"github.com/kvdns/kvdnsd/internal/config"
	"github.com/kvdns/kvdnsd/internal/logging"
	"github.com/kvdns/kvdnsd/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.Configure(logging.Config{
		Level:            "INFO",
		Structured:       true,
		StructuredFormat: "json",
	})

	runner := server.NewRunner(logger)
	return runner.Run(cfg)
}
