package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// DefaultSeatIDs is the floor plan used when SEAT_IDS is unset: three rows
// of six desks.
const DefaultSeatIDs = "A1,A2,A3,A4,A5,A6,B1,B2,B3,B4,B5,B6,C1,C2,C3,C4,C5,C6"

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env            string   // application environment (e.g. "dev", "prod")
	Port           string   // HTTP port to listen on
	StoreDriver    string   // "mysql" or "memory"
	DBUser         string   // database username
	DBPass         string   // database password (optional)
	DBHost         string   // database host address
	DBPort         string   // database port number
	DBName         string   // database name
	JWTSecret      string   // secret used to sign JWTs
	AccessTTLMin   int      // access token time‑to‑live in minutes
	RefreshTTLDays int      // refresh token time‑to‑live in days
	SeatIDs        []string // seat labels seeded into the seat map
	TxMaxAttempts  int      // attempts per transaction on lock conflicts
	EventsEnabled  bool     // publish session events to RabbitMQ
	SessionLogDir  string   // directory of the session event audit log
}

// Load reads configuration values from the environment, after merging a
// .env file when one exists.  Required variables are enforced by must()
// and missing values cause the program to exit with a fatal log message.
// Database settings are only required for the mysql driver.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}
	cfg := Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		StoreDriver:    strings.ToLower(envStr("STORE_DRIVER", DriverMySQL)),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		SeatIDs:        ParseSeatIDs(envStr("SEAT_IDS", DefaultSeatIDs)),
		TxMaxAttempts:  envInt("TX_MAX_ATTEMPTS", 3),
		EventsEnabled:  envBool("EVENTS_ENABLED", true),
		SessionLogDir:  envStr("SESSION_LOG_DIR", "logs"),
	}
	switch cfg.StoreDriver {
	case DriverMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case DriverMemory:
	default:
		log.Fatalf("invalid STORE_DRIVER: %q", cfg.StoreDriver)
	}
	if len(cfg.SeatIDs) == 0 {
		log.Fatalf("SEAT_IDS lists no seats")
	}
	if cfg.TxMaxAttempts < 1 {
		cfg.TxMaxAttempts = 1
	}
	return cfg
}

// ParseSeatIDs splits a comma separated list, trimming blanks and dropping
// duplicates while keeping the first occurrence order.
func ParseSeatIDs(s string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
