package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strings"
    "time"

    "github.com/joho/godotenv" // optional .env file for local runs
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Database settings are optional: when DB_HOST is
// empty the server keeps tickets in memory and serves demo sessions.
type Config struct {
    Env      string // application environment (e.g. "dev", "prod")
    Port     string // HTTP port to listen on
    LogLevel string // debug, info, warn or error

    DBUser string // database username
    DBPass string // database password (optional)
    DBHost string // database host address; empty disables MySQL
    DBPort string // database port number
    DBName string // database name

    HolderTokenSecret string        // secret used to sign holder tokens
    HolderTokenTTL    time.Duration // lifetime of a minted holder token

    HoldTTL         time.Duration // how long claimed seats stay held
    HoldHeartbeat   time.Duration // expected renewal period of a live client
    ArchiveInterval time.Duration // how often started sessions are dropped

    AMQPURL      string   // RabbitMQ URL; empty disables ticket events
    TicketLogDir string   // directory of the ticket consumer's log file
    DemoSessions []string // session ids served when MySQL is disabled
}

// Load reads an optional .env file and then builds a Config from the
// environment.  Required variables are enforced by must() and missing
// values cause the program to exit with a fatal log message.
func Load() Config {
    _ = godotenv.Load()

    cfg := Config{
        Env:      envStr("APP_ENV", "dev"),
        Port:     envStr("APP_PORT", "8080"),
        LogLevel: envStr("LOG_LEVEL", "info"),

        DBHost: os.Getenv("DB_HOST"),
        DBPass: os.Getenv("DB_PASS"), // empty allowed

        HolderTokenSecret: must("HOLDER_TOKEN_SECRET"),
        HolderTokenTTL:    envDur("HOLDER_TOKEN_TTL", 24*time.Hour),

        HoldTTL:         envDur("HOLD_TTL", 120*time.Second),
        HoldHeartbeat:   envDur("HOLD_HEARTBEAT_PERIOD", 30*time.Second),
        ArchiveInterval: envDur("SESSION_ARCHIVE_INTERVAL", time.Minute),

        AMQPURL:      amqpURL(),
        TicketLogDir: envStr("TICKET_LOG_DIR", "logs"),
        DemoSessions: splitList(envStr("DEMO_SESSIONS", "demo-1,demo-2")),
    }
    if cfg.DBHost != "" {
        cfg.DBUser = must("DB_USER")
        cfg.DBPort = envStr("DB_PORT", "3306")
        cfg.DBName = must("DB_NAME")
    }
    return cfg
}

// HasDB reports whether MySQL is configured.
func (c Config) HasDB() bool { return c.DBHost != "" }

// IsDev reports whether the server runs in a development environment.
func (c Config) IsDev() bool {
    switch strings.ToLower(c.Env) {
    case "dev", "development", "local", "test":
        return true
    }
    return false
}

// amqpURL resolves the broker URL.  RABBITMQ_URL wins over AMQP_URL, the
// same order the ticket consumer uses.
func amqpURL() string {
    if v := os.Getenv("RABBITMQ_URL"); v != "" {
        return v
    }
    return os.Getenv("AMQP_URL")
}

func splitList(s string) []string {
    var out []string
    for _, p := range strings.Split(s, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
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
