package config // package config loads application configuration from environment variables

import (
	"log" // log is used to report configuration errors and halt execution
	"os"  // os provides access to environment variables
	"strings"
	"time"
)

// Store backends accepted by STORE.
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Durations are kept in the units operators set
// them in (minutes, days) and converted by the accessor methods.
type Config struct {
	Env      string // application environment (e.g. "dev", "prod")
	Port     string // HTTP port to listen on
	LogLevel string // slog level name
	Store    string // "mysql" or "memory"

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	JWTSecret      string // secret used to sign access tokens
	JWTIssuer      string // iss claim written and required on verify
	JWTAudience    string // aud claim written and required on verify
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	CORSOrigins []string // browser origins allowed to call the API

	WS     WSConfig
	Broker BrokerConfig
}

// WSConfig tunes the push channel.
type WSConfig struct {
	AllowedOrigins    []string
	SendQueueSize     int
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
}

// BrokerConfig configures the cross-instance snapshot relay.  An empty URL
// disables it and broadcasts stay local to the process.
type BrokerConfig struct {
	URL      string
	Exchange string
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:      must("APP_ENV"),  // environment (dev/test/prod)
		Port:     must("APP_PORT"), // port to bind the HTTP server
		LogLevel: envStr("LOG_LEVEL", "info"),
		Store:    strings.ToLower(envStr("STORE", StoreMySQL)),

		JWTSecret:      must("JWT_SECRET"), // secret used for signing access tokens
		JWTIssuer:      envStr("JWT_ISSUER", "tasktracker"),
		JWTAudience:    envStr("JWT_AUDIENCE", "tasktracker-web"),
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 30),
		RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 7),
		BcryptCost:     envInt("BCRYPT_COST", 11),

		CORSOrigins: envCSV("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),

		WS: WSConfig{
			AllowedOrigins:    envCSV("WS_ALLOWED_ORIGINS", "http://localhost:3000"),
			SendQueueSize:     envInt("WS_SEND_QUEUE", 64),
			WriteTimeout:      envDur("WS_WRITE_TIMEOUT", 5*time.Second),
			HeartbeatInterval: envDur("WS_HEARTBEAT_INTERVAL", 30*time.Second),
			HeartbeatTimeout:  envDur("WS_HEARTBEAT_TIMEOUT", 10*time.Second),
		},
		Broker: BrokerConfig{
			URL:      firstNonEmpty(os.Getenv("RABBITMQ_URL"), os.Getenv("AMQP_URL")),
			Exchange: envStr("BROADCAST_EXCHANGE", "tasktracker.snapshots"),
		},
	}

	switch cfg.Store {
	case StoreMySQL:
		cfg.DBUser = must("DB_USER")      // database user
		cfg.DBPass = os.Getenv("DB_PASS") // database password (empty allowed)
		cfg.DBHost = must("DB_HOST")      // database host
		cfg.DBPort = must("DB_PORT")      // database port
		cfg.DBName = must("DB_NAME")      // database name
	case StoreMemory:
	default:
		log.Fatalf("invalid STORE %q (want %s or %s)", cfg.Store, StoreMySQL, StoreMemory)
	}

	if cfg.AccessTTLMin <= 0 {
		log.Fatalf("invalid ACCESS_TOKEN_TTL_MIN: %d", cfg.AccessTTLMin)
	}
	if cfg.RefreshTTLDays <= 0 {
		log.Fatalf("invalid REFRESH_TOKEN_TTL_DAYS: %d", cfg.RefreshTTLDays)
	}
	if cfg.WS.SendQueueSize < 1 {
		cfg.WS.SendQueueSize = 1
	}
	return cfg
}

// AccessTTL returns the access token lifetime.
func (c Config) AccessTTL() time.Duration { return time.Duration(c.AccessTTLMin) * time.Minute }

// RefreshTTL returns the refresh token lifetime.
func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}

// IsDev reports whether the process runs in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local":
		return true
	}
	return false
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

func envCSV(key, def string) []string {
	var out []string
	for _, p := range strings.Split(envStr(key, def), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
