// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, storage, upstream AI services, face scan tuning, rate limiting and
// observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// UpstreamConfig points at the chat gateway and the face classifier.
type UpstreamConfig struct {
	ChatGatewayURL string        // CHAT_GATEWAY_URL
	ClassifierURL  string        // CLASSIFIER_URL
	APIKey         string        // AI_GATEWAY_API_KEY
	Timeout        time.Duration // UPSTREAM_TIMEOUT
}

// FaceScanConfig tunes frame sampling and the classifier ensemble.
type FaceScanConfig struct {
	Frames    int
	Interval  time.Duration
	Passes    int
	Parallel  bool
	MaxUpload int64 // bytes accepted for one multipart upload
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "wellness-backend")
	Environment string  // OTEL_DEPLOYMENT_ENVIRONMENT, optional
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // covers a whole streamed answer
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath           string         // SQLite path
	Timezone         string         // IANA zone that decides "today"
	Location         *time.Location // resolved Timezone
	ChatHistoryLimit int            // prior messages sent to the companion
	SearchMinScore   float64        // content search cut-off [0,1]
	ContentFactsPath string         // optional Markdown file with extra facts

	// Upstream AI services
	Upstream UpstreamConfig

	// Face scan
	FaceScan FaceScanConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad is Load for main: it panics on an invalid environment.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load builds the Config from the environment. Unset or empty variables take
// their defaults; a value that does not parse is an error, as is any setting
// out of range. All problems are reported together.
func Load() (Config, error) {
	var e env
	cfg := Config{
		Port:              e.str("PORT", "8080"),
		ReadTimeout:       e.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.dur("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       e.dur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.integer("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(e.str("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(e.str("LOG_LEVEL", "info")),
		LogPretty:      e.boolean("LOG_PRETTY", false),
		SwaggerEnabled: e.boolean("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(e.str("API_BASE_PATH", "/api/v1")),

		DBPath:           e.str("DB_PATH", "app.db"),
		Timezone:         e.str("TIMEZONE", "UTC"),
		ChatHistoryLimit: e.integer("CHAT_HISTORY_LIMIT", 50),
		SearchMinScore:   e.float("SEARCH_MIN_SCORE", 0.05),
		ContentFactsPath: e.str("CONTENT_FACTS_PATH", ""),

		Upstream: UpstreamConfig{
			ChatGatewayURL: e.str("CHAT_GATEWAY_URL", "http://localhost:9000/chat"),
			ClassifierURL:  e.str("CLASSIFIER_URL", "http://localhost:9000/face-mood"),
			APIKey:         e.str("AI_GATEWAY_API_KEY", ""),
			Timeout:        e.dur("UPSTREAM_TIMEOUT", 30*time.Second),
		},

		FaceScan: FaceScanConfig{
			Frames:    e.integer("FACESCAN_FRAMES", 5),
			Interval:  e.dur("FACESCAN_INTERVAL", 150*time.Millisecond),
			Passes:    e.integer("FACESCAN_PASSES", 3),
			Parallel:  e.boolean("FACESCAN_PARALLEL", false),
			MaxUpload: int64(e.integer("FACESCAN_MAX_UPLOAD", 8<<20)),
		},

		RateRPS:   e.float("RATE_RPS", 5.0),
		RateBurst: e.integer("RATE_BURST", 10),

		CORS: CORSConfig{AllowedOrigins: splitCSV(e.str("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: e.boolean("ENABLE_HSTS", false),
			HSTSMaxAge: e.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: e.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     e.boolean("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.boolean("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "wellness-backend"),
			Environment: e.str("OTEL_DEPLOYMENT_ENVIRONMENT", ""),
			SampleRatio: e.float("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if loc, err := time.LoadLocation(cfg.Timezone); err != nil {
		e.fail(fmt.Errorf("TIMEZONE %q: %w", cfg.Timezone, err))
	} else {
		cfg.Location = loc
	}

	return cfg, errors.Join(append(e.errs, cfg.validate()...)...)
}

func (cfg Config) validate() []error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		check(false, "LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	check(!blank(cfg.Port), "PORT must not be empty")
	check(cfg.ReadTimeout > 0 && cfg.ReadHeaderTimeout > 0 && cfg.WriteTimeout > 0 && cfg.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(cfg.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")
	check(!blank(cfg.DBPath), "DB_PATH must not be empty")
	check(cfg.ChatHistoryLimit >= 1, "CHAT_HISTORY_LIMIT must be >= 1")
	check(cfg.SearchMinScore >= 0 && cfg.SearchMinScore <= 1, "SEARCH_MIN_SCORE must be between 0 and 1")
	check(!blank(cfg.Upstream.ChatGatewayURL) && !blank(cfg.Upstream.ClassifierURL),
		"CHAT_GATEWAY_URL and CLASSIFIER_URL must not be empty")
	check(cfg.Upstream.Timeout > 0, "UPSTREAM_TIMEOUT must be > 0")
	check(cfg.FaceScan.Frames >= 1 && cfg.FaceScan.Passes >= 1, "FACESCAN_FRAMES and FACESCAN_PASSES must be >= 1")
	check(cfg.FaceScan.Interval >= 0, "FACESCAN_INTERVAL must be >= 0")
	check(cfg.FaceScan.MaxUpload > 0, "FACESCAN_MAX_UPLOAD must be > 0")
	check(cfg.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(cfg.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(cfg.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(cfg.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(cfg.OTEL.SampleRatio >= 0 && cfg.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	return errs
}

// env reads typed variables and remembers the ones that fail to parse.
type env struct {
	errs []error
}

func (e *env) fail(err error) { e.errs = append(e.errs, err) }

func (e *env) raw(k string) (string, bool) {
	v, ok := os.LookupEnv(k)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *env) str(k, def string) string {
	if v, ok := e.raw(k); ok {
		return v
	}
	return def
}

func (e *env) integer(k string, def int) int {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(fmt.Errorf("%s: %q is not an integer", k, v))
		return def
	}
	return n
}

func (e *env) float(k string, def float64) float64 {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(fmt.Errorf("%s: %q is not a number", k, v))
		return def
	}
	return f
}

func (e *env) dur(k string, def time.Duration) time.Duration {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(fmt.Errorf("%s: %q is not a duration", k, v))
		return def
	}
	return d
}

func (e *env) boolean(k string, def bool) bool {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	e.fail(fmt.Errorf("%s: %q is not a boolean", k, v))
	return def
}

// splitCSV splits a comma list, dropping blanks.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath returns "/" or a path with one leading and no trailing
// slash.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
