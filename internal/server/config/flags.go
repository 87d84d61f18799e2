package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/cryptexdrive/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-k string   vault master secret
//	-m int      session-sourced token max age, minutes
//	-l string   local storage root
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name (empty disables the remote tier)
//	-g string   S3 region
//	-e string   S3 base endpoint
//	-q int      quarantine interval, seconds
//	-v string   log level
//
// Args are filtered to the flags above first, so the -c/-config flag handled
// by the JSON layer does not collide.
func parseFlags(config *Config, osArgs []string) {
	args := flagx.FilterArgs(osArgs, []string{"-a", "-d", "-s", "-k", "-m", "-l", "-u", "-p", "-b", "-g", "-e", "-q", "-v"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "token signing secret")
	fs.StringVar(&config.MasterSecret, "k", config.MasterSecret, "vault master secret")

	sessionMaxAge := fs.Int("m", int(config.SessionTokenMaxAge.Minutes()), "session token max age (in minutes)")

	fs.StringVar(&config.StorageRoot, "l", config.StorageRoot, "local storage root")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	quarantineInterval := fs.Int("q", int(config.QuarantineInterval.Seconds()), "quarantine interval (in seconds)")

	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionTokenMaxAge = time.Duration(*sessionMaxAge) * time.Minute
	config.QuarantineInterval = time.Duration(*quarantineInterval) * time.Second
}
