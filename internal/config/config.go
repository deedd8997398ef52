package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
}

type Config struct {
	LogDir   string // logs directory
	LogLevel string // debug|info|warn|error

	DatabaseURL string // empty means use in-memory store

	CheckInterval   time.Duration // time between sweep starts
	ProbeTimeout    time.Duration // per-probe HTTP timeout, must be < CheckInterval
	MaxConcurrent   int           // probes in flight per sweep
	RegistryRefresh time.Duration // 0 reloads endpoints before every sweep
	ShutdownGrace   time.Duration // how long in-flight probes may run after shutdown
	DNSDiagnose     bool          // annotate transport failures with a DNS class

	DownThreshold int           // consecutive DOWN records needed before alerting
	AlertCooldown time.Duration // minimum gap between two emails for one endpoint

	QueueURL     string        // amqp://, redis://, kafka:// or mem://
	QueueName    string        // queue / topic name
	ReconnectMax time.Duration // consumer reconnect backoff cap

	MailFrom     string
	ResendAPIKey string
	SMTP         SMTP
	SlackWebhook string

	OpsAddr       string // ops HTTP bind address, "off" disables
	OpsRatePerMin int    // per-client request budget on /api
	OpsRateBurst  int

	// DevEndpoints seeds the in-memory store: "url=email,url=email".
	DevEndpoints string
}

// LoadDotEnv reads .env into the environment if the file exists. Variables
// already set win.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func FromEnv() Config {
	// Logs
	logDir := envString("LOG_DIR", "logs")
	logLevel := strings.ToLower(envString("LOG_LEVEL", "info"))

	// Database (empty means use in-memory store)
	db := os.Getenv("DATABASE_URL")

	// Mail; RESEND_API is the older name
	resendKey := os.Getenv("RESEND_API_KEY")
	if resendKey == "" {
		resendKey = os.Getenv("RESEND_API")
	}

	return Config{
		LogDir:   logDir,
		LogLevel: logLevel,

		DatabaseURL: db,

		CheckInterval:   envMillis("CHECK_INTERVAL_MS", 30*time.Second, false),
		ProbeTimeout:    envMillis("PROBE_TIMEOUT_MS", 10*time.Second, false),
		MaxConcurrent:   envInt("MAX_CONCURRENT_CHECKS", 16),
		RegistryRefresh: envMillis("REGISTRY_REFRESH_MS", 0, true),
		ShutdownGrace:   envMillis("SHUTDOWN_GRACE_MS", 5*time.Second, true),
		DNSDiagnose:     envBool("PROBE_DNS_DIAGNOSE", false),

		DownThreshold: envInt("DOWN_PERSISTENCE_THRESHOLD", 10),
		AlertCooldown: envMillis("ALERT_COOLDOWN_MS", 10*time.Minute, true),

		QueueURL:     envString("QUEUE_URL", "mem://"),
		QueueName:    envString("QUEUE_NAME", "website-check"),
		ReconnectMax: envMillis("QUEUE_RECONNECT_MAX_MS", 30*time.Second, false),

		MailFrom:     envString("MAIL_FROM", "alerts@sitewatch.local"),
		ResendAPIKey: resendKey,
		SMTP: SMTP{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
		SlackWebhook: os.Getenv("SLACK_WEBHOOK_URL"),

		OpsAddr:       envString("OPS_ADDR", "127.0.0.1:8080"),
		OpsRatePerMin: envInt("OPS_RATE_PER_MIN", 120),
		OpsRateBurst:  envInt("OPS_RATE_BURST", 30),

		DevEndpoints: os.Getenv("DEV_ENDPOINTS"),
	}
}

// Validate reports configuration the pipeline cannot run with.
func (c Config) Validate() error {
	var problems []string
	if c.ProbeTimeout >= c.CheckInterval {
		problems = append(problems, fmt.Sprintf("PROBE_TIMEOUT_MS (%s) must be less than CHECK_INTERVAL_MS (%s)", c.ProbeTimeout, c.CheckInterval))
	}
	if c.DownThreshold < 1 {
		problems = append(problems, "DOWN_PERSISTENCE_THRESHOLD must be >= 1")
	}
	if c.MaxConcurrent < 1 {
		problems = append(problems, "MAX_CONCURRENT_CHECKS must be >= 1")
	}
	if strings.TrimSpace(c.QueueName) == "" {
		problems = append(problems, "QUEUE_NAME is empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// MailConfigured tells whether any mail provider has credentials.
func (c Config) MailConfigured() bool {
	return c.ResendAPIKey != "" || c.SMTP.Host != ""
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envMillis(key string, def time.Duration, allowZero bool) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && (ms > 0 || (allowZero && ms == 0)) {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
