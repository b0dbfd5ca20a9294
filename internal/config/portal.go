package config

import (
	"time"

	"github.com/joho/godotenv"
)

// PortalConfig configures the command line portal client.
type PortalConfig struct {
	BaseURL     string
	SessionPath string
	IdleTimeout time.Duration
	HTTPTimeout time.Duration
	LogLevel    string
	LogOutput   string
	Version     string
	AllowReopen bool
}

// LoadPortal reads client settings from the environment.
func LoadPortal() PortalConfig {
	_ = godotenv.Load()

	return PortalConfig{
		BaseURL:     getEnv("PORTAL_API_URL", "http://127.0.0.1:8080/api/grievances"),
		SessionPath: getEnv("PORTAL_SESSION_PATH", "portal_session.db"),
		IdleTimeout: getEnvAsDuration("PORTAL_IDLE_TIMEOUT", 5*time.Minute),
		HTTPTimeout: getEnvAsDuration("PORTAL_HTTP_TIMEOUT", 15*time.Second),
		LogLevel:    getEnv("PORTAL_LOG_LEVEL", "warn"),
		LogOutput:   getEnv("PORTAL_LOG_OUTPUT", "stderr"),
		Version:     getEnv("APP_VERSION", "dev"),
		AllowReopen: getEnvAsBool("GRIEVANCE_ALLOW_REOPEN", true),
	}
}
