package config

import "os"

// parseEnv overlays Config fields from environment variables.
//
// Supported variables:
//
//	ENDPOINT_ADDR  HTTP bind address
//	DATABASE_DSN   PostgreSQL DSN
//	SECRET_KEY     JWT HMAC secret
//
// Token lifetimes are configured through flags or the JSON file only.
func parseEnv(config *Config) {
	if v, ok := os.LookupEnv("ENDPOINT_ADDR"); ok {
		config.EndpointAddr = v
	}
	if v, ok := os.LookupEnv("DATABASE_DSN"); ok {
		config.DatabaseDSN = v
	}
	if v, ok := os.LookupEnv("SECRET_KEY"); ok {
		config.SecretKey = v
	}
}
