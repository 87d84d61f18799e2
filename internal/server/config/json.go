package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/cryptexdrive/internal/flagx"
	"github.com/dmitrijs2005/cryptexdrive/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations
// accept "90s"-style strings or integer nanoseconds. Fields absent from the
// file keep the values already present in Config.
type JsonConfig struct {
	EndpointAddrGRPC        *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN             *string         `json:"database_dsn"`
	SecretKey               *string         `json:"secret_key"`
	MasterSecret            *string         `json:"master_secret"`
	SessionTokenMaxAge      *timex.Duration `json:"session_token_max_age"`
	StorageRoot             *string         `json:"storage_root"`
	S3RootUser              *string         `json:"s3_root_user"`
	S3RootPassword          *string         `json:"s3_root_password"`
	S3Bucket                *string         `json:"s3_bucket"`
	S3Region                *string         `json:"s3_region"`
	S3BaseEndpoint          *string         `json:"s3_base_endpoint"`
	RemoteTimeout           *timex.Duration `json:"remote_timeout"`
	QuarantineInterval      *timex.Duration `json:"quarantine_interval"`
	QuarantineThreshold     *int            `json:"quarantine_threshold"`
	RevocationPurgeInterval *timex.Duration `json:"revocation_purge_interval"`
	LogLevel                *string         `json:"log_level"`
}

// parseJson overlays values from the JSON file named by -c/-config (or
// CRYPTEX_CONFIG) onto config. Nothing happens when no file is named.
// An unreadable or invalid file panics: the server must not start on a
// half-applied configuration.
func parseJson(config *Config, osArgs []string) {
	path := flagx.JSONConfigPath(osArgs)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.MasterSecret, c.MasterSecret)
	setString(&config.StorageRoot, c.StorageRoot)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)

	if c.SessionTokenMaxAge != nil {
		config.SessionTokenMaxAge = c.SessionTokenMaxAge.Duration
	}
	if c.RemoteTimeout != nil {
		config.RemoteTimeout = c.RemoteTimeout.Duration
	}
	if c.QuarantineInterval != nil {
		config.QuarantineInterval = c.QuarantineInterval.Duration
	}
	if c.RevocationPurgeInterval != nil {
		config.RevocationPurgeInterval = c.RevocationPurgeInterval.Duration
	}
	if c.QuarantineThreshold != nil {
		config.QuarantineThreshold = *c.QuarantineThreshold
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
