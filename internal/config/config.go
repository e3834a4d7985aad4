// Package config reads process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	validBackends   = []string{"memory", "sqlite", "sheets"}
	validLogLevels  = []string{"debug", "info", "warn", "warning", "error"}
	validLogFormats = []string{"", "text", "json"}
)

type Config struct {
	Port               string
	RateLimitPerMinute int
	CORSAllowedOrigins []string

	// DataBackend is one of validBackends, lower-cased.
	DataBackend string
	DataDir     string

	SQLiteDBPath string

	// AMQPURL empty disables change events.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	ListLimit int
	CacheTTL  time.Duration

	ReconcileInterval time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads every setting, substituting defaults for unset or unparsable
// values. Call Validate on the result.
func Load() *Config {
	return &Config{
		Port:               envString("PORT", "8081"),
		RateLimitPerMinute: env("RATE_LIMIT_PER_MINUTE", 60, strconv.Atoi),
		CORSAllowedOrigins: env("CORS_ALLOWED_ORIGINS", []string{"*"}, splitList),

		DataBackend: strings.ToLower(strings.TrimSpace(envString("DATA_BACKEND", "memory"))),
		DataDir:     envString("DATA_DIR", "data"),

		SQLiteDBPath: envString("SQLITE_DB_PATH", "./data/wallet.db"),

		AMQPURL:      envString("AMQP_URL", ""),
		AMQPExchange: envString("AMQP_EXCHANGE", "wallet"),
		AMQPQueue:    envString("AMQP_QUEUE", "mirror_transactions"),

		GoogleSpreadsheetID:      envString("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          envString("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountFile: envString("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: envString("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		ListLimit: env("LIST_LIMIT", 50, strconv.Atoi),
		CacheTTL:  env("CACHE_TTL", 5*time.Minute, time.ParseDuration),

		ReconcileInterval: env("RECONCILE_INTERVAL", 15*time.Minute, time.ParseDuration),

		LogLevel:  envString("LOG_LEVEL", "info"),
		LogFormat: envString("LOG_FORMAT", "text"),
	}
}

// problems collects validation failures into one multi-line error.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p problems) err(title string) error {
	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("%s:\n- %s", title, strings.Join(p, "\n- "))
}

// Validate reports every invalid setting at once. For the sqlite backend it
// also creates the database directory.
func (c *Config) Validate() error {
	var p problems

	if port, err := strconv.Atoi(c.Port); err != nil {
		p.addf("invalid port '%s': must be a number", c.Port)
	} else if port < 1 || port > 65535 {
		p.addf("invalid port %d: must be between 1 and 65535", port)
	}

	switch c.DataBackend {
	case "sqlite":
		c.checkSQLite(&p)
	case "sheets":
		c.checkSheets(&p)
	case "memory":
	default:
		p.addf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends)
	}

	if c.AMQPURL != "" {
		c.checkAMQP(&p)
	}

	if c.ListLimit < 1 || c.ListLimit > 1000 {
		p.addf("invalid list limit %d: must be between 1 and 1000", c.ListLimit)
	}
	if c.CacheTTL < 0 || c.CacheTTL > 24*time.Hour {
		p.addf("invalid cache TTL %v: must be between 0 and 24 hours", c.CacheTTL)
	}
	if c.RateLimitPerMinute < 1 {
		p.addf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute)
	}
	switch {
	case c.ReconcileInterval < time.Second:
		p.addf("invalid reconcile interval %v: must be at least 1 second", c.ReconcileInterval)
	case c.ReconcileInterval > 24*time.Hour:
		p.addf("invalid reconcile interval %v: must be at most 24 hours", c.ReconcileInterval)
	}
	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		p.addf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel)
	}
	if !slices.Contains(validLogFormats, strings.ToLower(c.LogFormat)) {
		p.addf("invalid log format '%s': must be text or json", c.LogFormat)
	}

	return p.err("configuration validation failed")
}

// ValidateMirror checks what the mirror worker needs beyond Validate: an
// AMQP source and a Sheets target.
func (c *Config) ValidateMirror() error {
	var p problems
	if c.AMQPURL == "" {
		p.addf("AMQP_URL is required for the mirror worker")
	}
	c.checkSheets(&p)
	return p.err("mirror configuration validation failed")
}

func (c *Config) checkSQLite(p *problems) {
	if c.SQLiteDBPath == "" {
		p.addf("SQLite database path cannot be empty when using sqlite backend")
		return
	}
	dir := filepath.Dir(c.SQLiteDBPath)
	if dir == "." {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		p.addf("cannot create SQLite database directory '%s': %v", dir, err)
	}
}

func (c *Config) checkAMQP(p *problems) {
	u, err := url.Parse(c.AMQPURL)
	switch {
	case err != nil:
		p.addf("invalid AMQP URL '%s': %v", c.AMQPURL, err)
	case u.Scheme != "amqp" && u.Scheme != "amqps":
		p.addf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme)
	}
	if c.AMQPExchange == "" {
		p.addf("AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPQueue == "" {
		p.addf("AMQP queue name cannot be empty when AMQP URL is provided")
	}
}

func (c *Config) checkSheets(p *problems) {
	if c.GoogleSpreadsheetID == "" {
		p.addf("Google Spreadsheet ID is required when using sheets backend")
	}
	switch {
	case c.GoogleServiceAccountFile != "":
		if _, err := os.Stat(c.GoogleServiceAccountFile); errors.Is(err, os.ErrNotExist) {
			p.addf("Google service account file does not exist: %s", c.GoogleServiceAccountFile)
		}
	case c.GoogleServiceAccountJSON != "", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "":
	default:
		p.addf("either GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_APPLICATION_CREDENTIALS must be provided for sheets backend")
	}
}

func envString(key, def string) string {
	return env(key, def, func(s string) (string, error) { return s, nil })
}

// env parses key with parse, falling back to def when the variable is unset
// or does not parse.
func env[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

// splitList splits a comma separated value, dropping empty items.
func splitList(s string) ([]string, error) {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("empty list")
	}
	return out, nil
}
