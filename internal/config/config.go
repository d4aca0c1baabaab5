package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all process configuration, read once at startup.
type Config struct {
	PostgresConn       string
	ServerAddress      string
	BaseDir            string
	JWTSecret          string
	AuditExportMax     int
	CORSAllowedOrigins []string
}

// Load reads .env (if present) and the environment. Missing optional values
// get defaults; the database DSN has none and is checked by the caller.
func Load() Config {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		slog.Debug("no env file loaded", "file", envFile)
	}

	wd, _ := os.Getwd()

	return Config{
		PostgresConn:       os.Getenv("POSTGRES_CONN"),
		ServerAddress:      getEnv("SERVER_ADDRESS", "0.0.0.0:8080"),
		BaseDir:            getEnv("AUSSCHREIBUNGEN_BASE_DIR", filepath.Join(wd, "data")),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		AuditExportMax:     getEnvInt("AUDIT_EXPORT_MAX", 25000),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
