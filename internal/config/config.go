package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port                     string
	AllowedOrigin            string
	StoreDriver              string
	DatabaseURL              string
	SQLitePath               string
	DataFile                 string
	RedisAddr                string
	RedisPassword            string
	RedisDB                  int
	DashboardCacheTTLSeconds int
	AuthSecret               string
	AccessTokenTTLMinutes    int
	AdminUsername            string
	AdminPassword            string
	ReportTimezone           string
	LogFormat                string
	SeedDemo                 bool
}

// LoadEnvFile loads variables from the given files (".env" when none) into
// the environment without overriding values already set. Missing files are
// skipped.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return nil
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := strconv.Atoi(getEnv("DASHBOARD_CACHE_TTL_SECONDS", "30"))
	if err != nil || ttl < 1 {
		ttl = 30
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	seed, err := strconv.ParseBool(getEnv("SEED_DEMO", "false"))
	if err != nil {
		seed = false
	}

	cfg := Config{
		Port:                     getEnv("PORT", "8080"),
		AllowedOrigin:            getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:5173"),
		StoreDriver:              strings.ToLower(strings.TrimSpace(os.Getenv("STORE_DRIVER"))),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		SQLitePath:               os.Getenv("SQLITE_PATH"),
		DataFile:                 os.Getenv("DATA_FILE"),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  redisDB,
		DashboardCacheTTLSeconds: ttl,
		AuthSecret:               strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:    tokenTTL,
		AdminUsername:            getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:            strings.TrimSpace(os.Getenv("ADMIN_PASSWORD")),
		ReportTimezone:           getEnv("REPORT_TIMEZONE", "Local"),
		LogFormat:                strings.ToLower(getEnv("LOG_FORMAT", "json")),
		SeedDemo:                 seed,
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = cfg.inferDriver()
	}

	return cfg
}

func (c Config) inferDriver() string {
	switch {
	case c.DatabaseURL != "":
		return DriverPostgres
	case c.SQLitePath != "":
		return DriverSQLite
	case c.DataFile != "":
		return DriverFile
	default:
		return DriverMemory
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) DashboardCacheTTL() time.Duration {
	return time.Duration(c.DashboardCacheTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

// Location resolves REPORT_TIMEZONE, the zone calendar-day filters use.
func (c Config) Location() (*time.Location, error) {
	if c.ReportTimezone == "" || strings.EqualFold(c.ReportTimezone, "Local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid REPORT_TIMEZONE %q: %w", c.ReportTimezone, err)
	}
	return loc, nil
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
