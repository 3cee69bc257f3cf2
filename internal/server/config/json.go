package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/containeer/internal/flagx"
	"github.com/dmitrijs2005/containeer/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Durations accept
// both "30m" style strings and integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	SigningAlgorithm             string         `json:"signing_algorithm"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	ReadGrantValidityDuration    timex.Duration `json:"read_grant_validity_duration"`
	GoogleClientID               string         `json:"google_client_id"`
	GoogleJWKSURL                string         `json:"google_jwks_url"`
	StorageBackend               string         `json:"storage_backend"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	RedisAddr                    string         `json:"redis_addr"`
	RedisPassword                string         `json:"redis_password"`
	DatabaseTimeout              timex.Duration `json:"database_timeout"`
	StorageTimeout               timex.Duration `json:"storage_timeout"`
	IdentityTimeout              timex.Duration `json:"identity_timeout"`
	MaxUploadBytes               int64          `json:"max_upload_bytes"`
	RateLimitRPS                 float64        `json:"rate_limit_rps"`
	RateLimitBurst               int            `json:"rate_limit_burst"`
	LogLevel                     string         `json:"log_level"`
	OTLPEndpoint                 string         `json:"otlp_endpoint"`
}

// parseJson overlays the JSON file named by -c/-config onto config. Keys
// missing from the file keep their current values. Without the flag nothing
// is loaded.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	fromJson(c, config)
	return nil
}

func toJson(c *Config) *JsonConfig {
	d := func(v time.Duration) timex.Duration { return timex.Duration{Duration: v} }
	return &JsonConfig{
		EndpointAddrHTTP:             c.EndpointAddrHTTP,
		DatabaseDSN:                  c.DatabaseDSN,
		SecretKey:                    c.SecretKey,
		SigningAlgorithm:             c.SigningAlgorithm,
		AccessTokenValidityDuration:  d(c.AccessTokenValidityDuration),
		RefreshTokenValidityDuration: d(c.RefreshTokenValidityDuration),
		ReadGrantValidityDuration:    d(c.ReadGrantValidityDuration),
		GoogleClientID:               c.GoogleClientID,
		GoogleJWKSURL:                c.GoogleJWKSURL,
		StorageBackend:               c.StorageBackend,
		S3RootUser:                   c.S3RootUser,
		S3RootPassword:               c.S3RootPassword,
		S3Bucket:                     c.S3Bucket,
		S3Region:                     c.S3Region,
		S3BaseEndpoint:               c.S3BaseEndpoint,
		RedisAddr:                    c.RedisAddr,
		RedisPassword:                c.RedisPassword,
		DatabaseTimeout:              d(c.DatabaseTimeout),
		StorageTimeout:               d(c.StorageTimeout),
		IdentityTimeout:              d(c.IdentityTimeout),
		MaxUploadBytes:               c.MaxUploadBytes,
		RateLimitRPS:                 c.RateLimitRPS,
		RateLimitBurst:               c.RateLimitBurst,
		LogLevel:                     c.LogLevel,
		OTLPEndpoint:                 c.OTLPEndpoint,
	}
}

func fromJson(j *JsonConfig, c *Config) {
	c.EndpointAddrHTTP = j.EndpointAddrHTTP
	c.DatabaseDSN = j.DatabaseDSN
	c.SecretKey = j.SecretKey
	c.SigningAlgorithm = j.SigningAlgorithm
	c.AccessTokenValidityDuration = j.AccessTokenValidityDuration.Duration
	c.RefreshTokenValidityDuration = j.RefreshTokenValidityDuration.Duration
	c.ReadGrantValidityDuration = j.ReadGrantValidityDuration.Duration
	c.GoogleClientID = j.GoogleClientID
	c.GoogleJWKSURL = j.GoogleJWKSURL
	c.StorageBackend = j.StorageBackend
	c.S3RootUser = j.S3RootUser
	c.S3RootPassword = j.S3RootPassword
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.RedisAddr = j.RedisAddr
	c.RedisPassword = j.RedisPassword
	c.DatabaseTimeout = j.DatabaseTimeout.Duration
	c.StorageTimeout = j.StorageTimeout.Duration
	c.IdentityTimeout = j.IdentityTimeout.Duration
	c.MaxUploadBytes = j.MaxUploadBytes
	c.RateLimitRPS = j.RateLimitRPS
	c.RateLimitBurst = j.RateLimitBurst
	c.LogLevel = j.LogLevel
	c.OTLPEndpoint = j.OTLPEndpoint
}
