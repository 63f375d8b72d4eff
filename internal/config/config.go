package config

import (
	"os"

	"github.com/joho/godotenv"
)

// UID binding policies for issued tokens. See token.UIDPolicy.
const (
	UIDPolicyClient = "client"
	UIDPolicyServer = "server"
)

type Config struct {
	Port           string
	AppID          string
	AppCertificate string
	AllowedOrigin  string
	UIDPolicy      string
}

// Load reads configuration from a .env file (if present) and environment
// variables. Environment variables take precedence over .env values.
// AppID and AppCertificate have no defaults: a deployment without them can
// still serve health checks but rejects token requests as misconfigured.
func Load() *Config {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		AppID:          os.Getenv("APP_ID"),
		AppCertificate: os.Getenv("APP_CERTIFICATE"),
		AllowedOrigin:  getEnv("ALLOWED_ORIGIN", "*"),
		UIDPolicy:      getEnv("UID_POLICY", UIDPolicyClient),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
