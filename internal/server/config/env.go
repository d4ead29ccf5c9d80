package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// parseEnv overlays environment variables, optionally read from a .env file
// in the working directory. Variables that are unset or unparsable leave the
// current value untouched.
func parseEnv(config *Config) {
	// .env is optional
	_ = godotenv.Load()

	setString(&config.HTTPAddr, lookupEnv("HTTP_ADDR"))
	if port := lookupEnv("PORT"); port != nil {
		addr := ":" + *port
		config.HTTPAddr = addr
	}
	setString(&config.GRPCAddr, lookupEnv("GRPC_ADDR"))
	setString(&config.DatabaseDSN, lookupEnv("DATABASE_URL"))
	setString(&config.SecretKey, lookupEnv("JWT_SECRET"))
	setDuration(&config.SessionTokenTTL, envDuration("JWT_TTL"))
	setDuration(&config.PasswordResetTTL, envDuration("PASSWORD_RESET_TTL"))
	setDuration(&config.EmailVerificationTTL, envDuration("EMAIL_VERIFICATION_TTL"))
	setInt(&config.BcryptCost, envInt("BCRYPT_COST"))
	setString(&config.RevocationBackend, lookupEnv("REVOCATION_BACKEND"))
	setString(&config.RedisAddr, lookupEnv("REDIS_ADDR"))
	setString(&config.RedisPassword, lookupEnv("REDIS_PASSWORD"))
	setInt(&config.RedisDB, envInt("REDIS_DB"))
	setDuration(&config.PurgeInterval, envDuration("PURGE_INTERVAL"))
	setString(&config.Notifier, lookupEnv("NOTIFIER"))
	setString(&config.AppBaseURL, lookupEnv("APP_BASE_URL"))
	setString(&config.S3RootUser, lookupEnv("S3_ROOT_USER"))
	setString(&config.S3RootPassword, lookupEnv("S3_ROOT_PASSWORD"))
	setString(&config.S3Bucket, lookupEnv("S3_BUCKET"))
	setString(&config.S3Region, lookupEnv("S3_REGION"))
	setString(&config.S3BaseEndpoint, lookupEnv("S3_BASE_ENDPOINT"))
	setInt(&config.RateLimitPerMinute, envInt("RATE_LIMIT_PER_MINUTE"))
	setString(&config.LogLevel, lookupEnv("LOG_LEVEL"))
	setString(&config.LogFormat, lookupEnv("LOG_FORMAT"))
}

func lookupEnv(key string) *string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	return &v
}

func envInt(key string) *int {
	v := lookupEnv(key)
	if v == nil {
		return nil
	}
	n, err := strconv.Atoi(*v)
	if err != nil {
		return nil
	}
	return &n
}

func envDuration(key string) *timex.Duration {
	v := lookupEnv(key)
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return nil
	}
	return &timex.Duration{Duration: d}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
