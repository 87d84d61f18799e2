// Package config holds the client settings.
package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/cryptexdrive/internal/flagx"
)

// Config holds runtime settings for the CryptexDrive CLI.
type Config struct {
	ServerEndpointAddr string
	RequestTimeout     time.Duration
}

func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.RequestTimeout = 30 * time.Second
}

// LoadConfig applies defaults and then the -a and -t flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg, os.Args[1:])
	return cfg
}

// parseFlags handles:
//
//	-a string   address and port of the server
//	-t int      per-request timeout, seconds
func parseFlags(cfg *Config, osArgs []string) {
	args := flagx.FilterArgs(osArgs, []string{"-a", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
