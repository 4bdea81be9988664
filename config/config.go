package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment
// variables. It is constructed once at process start and passed by
// reference into the crawler, reconciler, and orchestrator; nothing
// reads the environment after Load returns.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// BaseURL is the storefront root; relative listing hrefs resolve
	// against it. SiteName is the marketplace identifier recorded on
	// every price observation.
	BaseURL  string
	SiteName string

	SearchPages    int
	MaxConcurrency int
	NavTimeoutSec  int
	JitterMinMs    int
	JitterMaxMs    int

	CookieJarPath  string
	DiagnosticsDir string
	RawExportPath  string

	ChromeBin string
	Headless  bool
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "tracker"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "tracker123"),
		PostgresDB:       getEnv("POSTGRES_DB", "price_tracker"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		BaseURL:  getEnv("BASE_URL", "https://www.amazon.com"),
		SiteName: getEnv("SITE_NAME", "amazon.com"),

		SearchPages:    getEnvInt("SEARCH_PAGES", 3),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 5),
		NavTimeoutSec:  getEnvInt("NAV_TIMEOUT_S", 30),
		JitterMinMs:    getEnvInt("JITTER_MIN_MS", 1500),
		JitterMaxMs:    getEnvInt("JITTER_MAX_MS", 4000),

		CookieJarPath:  getEnv("COOKIE_JAR_PATH", "./data/cookies.json"),
		DiagnosticsDir: getEnv("DIAGNOSTICS_DIR", "./diagnostics"),
		RawExportPath:  getEnv("RAW_EXPORT_PATH", ""),

		ChromeBin: getEnv("CHROME_BIN", ""),
		Headless:  getEnvBool("HEADLESS", true),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
