package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings"

	"github.com/joho/godotenv" // godotenv loads a local .env file into the environment
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations and costs.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time‑to‑live in minutes
	RefreshTTLDays int    // refresh token time‑to‑live in days
	BcryptCost     int    // bcrypt cost for password hashing

	PaymentPolicy string // "owner" (only the reserving user pays) or "open"
	StoreBackend  string // "mysql" or "memory"
	SeedFile      string // optional YAML fixture used by `parkd seed`

	// StreamOrigins are the browser origins allowed on /slots/stream; "*"
	// allows any, empty means same-origin only.
	StreamOrigins []string

	Logging LoggingConfig
	Events  EventsConfig
	Sensor  SensorConfig
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	Output string // stdout or stderr
}

// Load reads an optional .env file, then configuration values from
// environment variables.  Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.  The
// DB_* variables are required only when STORE_BACKEND is mysql.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: could not load .env: %v", err)
	}
	cfg := Config{
		Env:            must("APP_ENV"),                   // environment (dev/test/prod)
		Port:           must("APP_PORT"),                  // port to bind the HTTP server
		DBPass:         os.Getenv("DB_PASS"),              // database password (empty allowed)
		JWTSecret:      must("JWT_SECRET"),                // secret used for signing JWTs
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),   // TTL for access tokens in minutes
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"), // TTL for refresh tokens in days
		BcryptCost:     mustInt("BCRYPT_COST"),            // bcrypt cost factor

		PaymentPolicy: oneOf("PAYMENT_POLICY", "owner", "owner", "open"),
		StoreBackend:  oneOf("STORE_BACKEND", "mysql", "mysql", "memory"),
		SeedFile:      os.Getenv("SEED_FILE"),
		StreamOrigins: envList("STREAM_ALLOWED_ORIGINS"),

		Logging: LoggingConfig{
			Level:  envStr("LOG_LEVEL", "info"),
			Format: envStr("LOG_FORMAT", "json"),
			Output: envStr("LOG_OUTPUT", "stdout"),
		},
		Events: LoadEventsConfig(),
		Sensor: LoadSensorConfig(),
	}

	dbVar := must
	if cfg.StoreBackend != "mysql" {
		dbVar = func(key string) string { return os.Getenv(key) }
	}
	cfg.DBUser = dbVar("DB_USER") // database user
	cfg.DBHost = dbVar("DB_HOST") // database host
	cfg.DBPort = dbVar("DB_PORT") // database port
	cfg.DBName = dbVar("DB_NAME") // database name
	return cfg
}

// OpenPayment reports whether any authenticated user may confirm payment.
func (c Config) OpenPayment() bool { return c.PaymentPolicy == "open" }

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

// oneOf returns the lower-cased value of key when it is one of allowed and
// def otherwise.
func oneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	if v != "" {
		log.Printf("config: ignoring %s=%q, using %q", key, v, def)
	}
	return def
}
