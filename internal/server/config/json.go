package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted. Only
// keys present in the file override the current values.
type JsonConfig struct {
	HTTPAddr             *string         `json:"http_addr"`
	GRPCAddr             *string         `json:"grpc_addr"`
	DatabaseDSN          *string         `json:"database_dsn"`
	SecretKey            *string         `json:"secret_key"`
	SessionTokenTTL      *timex.Duration `json:"session_token_ttl"`
	PasswordResetTTL     *timex.Duration `json:"password_reset_ttl"`
	EmailVerificationTTL *timex.Duration `json:"email_verification_ttl"`
	BcryptCost           *int            `json:"bcrypt_cost"`
	RevocationBackend    *string         `json:"revocation_backend"`
	RedisAddr            *string         `json:"redis_addr"`
	RedisPassword        *string         `json:"redis_password"`
	RedisDB              *int            `json:"redis_db"`
	PurgeInterval        *timex.Duration `json:"purge_interval"`
	Notifier             *string         `json:"notifier"`
	AppBaseURL           *string         `json:"app_base_url"`
	S3RootUser           *string         `json:"s3_root_user"`
	S3RootPassword       *string         `json:"s3_root_password"`
	S3Bucket             *string         `json:"s3_bucket"`
	S3Region             *string         `json:"s3_region"`
	S3BaseEndpoint       *string         `json:"s3_base_endpoint"`
	RateLimitPerMinute   *int            `json:"rate_limit_per_minute"`
	LogLevel             *string         `json:"log_level"`
	LogFormat            *string         `json:"log_format"`
}

// parseJson loads the file named by -c/-config in args into config.
// Without the flag nothing happens. An unreadable or invalid file panics:
// it is a startup error.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigFileFlag(args)
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

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.SessionTokenTTL, c.SessionTokenTTL)
	setDuration(&config.PasswordResetTTL, c.PasswordResetTTL)
	setDuration(&config.EmailVerificationTTL, c.EmailVerificationTTL)
	setInt(&config.BcryptCost, c.BcryptCost)
	setString(&config.RevocationBackend, c.RevocationBackend)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setInt(&config.RedisDB, c.RedisDB)
	setDuration(&config.PurgeInterval, c.PurgeInterval)
	setString(&config.Notifier, c.Notifier)
	setString(&config.AppBaseURL, c.AppBaseURL)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setInt(&config.RateLimitPerMinute, c.RateLimitPerMinute)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
}
