package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Ledger Configuration
	LedgerBackend string // mongo | memory
	MongoURI      string
	MongoDatabase string
	MongoTimeout  time.Duration

	// HTTP Server Configuration
	HTTPPort         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	ShutdownTimeout  time.Duration

	// Worker Pool Configuration
	WorkerPoolSize int
	ChunkCount     int
	MaxRetries     int

	// Logging Configuration
	LogLevel  string
	LogFormat string

	// Tasy Configuration
	TasyURL           string
	TasyUser          string
	TasyPassword      string
	HeadlessMode      bool
	ChromePath        string
	TasyEstablishment string
	LocatorsFile      string

	// Work item decoding
	BoletosIDPath string
	RecursoIDPath string

	// E-mail summary
	SMTPServer   string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPTLS      bool
	EmailFrom    string
	EmailTo      []string

	// Webhook summary
	SummaryWebhookURL     string
	DefaultWebhookTimeout time.Duration

	// Oracle lookups
	OracleDSN string

	// Auth
	JWTSecret   string
	JWTTTL      time.Duration
	AppUser     string
	AppPassword string

	// CORS Configuration
	CORSAllowedOrigins   string
	CORSAllowedMethods   string
	CORSAllowedHeaders   string
	CORSAllowCredentials bool
	CORSMaxAge           int

	// Sweeper Configuration
	InstanceID        string
	SweeperEnabled    bool
	SweeperSchedule   string
	SweeperStaleAfter time.Duration
	SweeperLockTTL    time.Duration
	HeartbeatInterval time.Duration
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		// Ledger
		LedgerBackend: strings.ToLower(getEnv("LEDGER", "mongo")),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017/tasyrunner?authSource=admin"),
		MongoDatabase: getEnv("MONGO_DATABASE", "tasyrunner"),
		MongoTimeout:  getDurationEnv("MONGO_TIMEOUT_SEC", 10) * time.Second,

		// HTTP Server
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		HTTPReadTimeout:  getDurationEnv("HTTP_READ_TIMEOUT_SEC", 30) * time.Second,
		HTTPWriteTimeout: getDurationEnv("HTTP_WRITE_TIMEOUT_SEC", 60) * time.Second,
		ShutdownTimeout:  getDurationEnv("SHUTDOWN_TIMEOUT_SEC", 60) * time.Second,

		// Worker Pool
		WorkerPoolSize: getIntEnv("WORKER_POOL_SIZE", 10),
		ChunkCount:     getIntEnv("CHUNK_COUNT", 10),
		MaxRetries:     getIntEnv("MAX_RETRIES", 2),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Tasy
		TasyURL:           getEnv("TASY_URL", ""),
		TasyUser:          getEnv("TASY_WEB_USER", ""),
		TasyPassword:      getEnv("TASY_WEB_PASS", ""),
		HeadlessMode:      getBoolEnv("HEADLESS_MODE", true),
		ChromePath:        getEnv("CHROME_PATH", ""),
		TasyEstablishment: getEnv("TASY_ESTABLISHMENT", "Hospital Unimed Rio Verde"),
		LocatorsFile:      getEnv("LOCATORS_FILE", ""),

		// Work items
		BoletosIDPath: getEnv("BOLETOS_ID_PATH", "$.nr_titulo"),
		RecursoIDPath: getEnv("RECURSO_ID_PATH", "$.nr_sequencia"),

		// E-mail
		SMTPServer:   getEnv("SMTP_SERVER", ""),
		SMTPPort:     getIntEnv("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASS", ""),
		SMTPTLS:      getBoolEnv("SMTP_TLS", true),
		EmailFrom:    getEnv("EMAIL_FROM", ""),
		EmailTo:      getListEnv("EMAIL_TO"),

		// Webhook
		SummaryWebhookURL:     getEnv("SUMMARY_WEBHOOK_URL", ""),
		DefaultWebhookTimeout: getDurationEnv("DEFAULT_WEBHOOK_TIMEOUT_SEC", 10) * time.Second,

		// Oracle
		OracleDSN: getEnv("ORACLE_DSN", ""),

		// Auth
		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTTTL:      getDurationEnv("JWT_TTL_MIN", 720) * time.Minute,
		AppUser:     getEnv("APP_USER", ""),
		AppPassword: getEnv("APP_PASS", ""),

		// CORS
		CORSAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "*"),
		CORSAllowedMethods:   getEnv("CORS_ALLOWED_METHODS", "GET, POST, OPTIONS"),
		CORSAllowedHeaders:   getEnv("CORS_ALLOWED_HEADERS", "*"),
		CORSAllowCredentials: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAge:           getIntEnv("CORS_MAX_AGE", 3600),

		// Sweeper
		InstanceID:        getEnv("INSTANCE_ID", ""),
		SweeperEnabled:    getBoolEnv("SWEEPER_ENABLED", true),
		SweeperSchedule:   getEnv("SWEEPER_SCHEDULE", "*/5 * * * *"),
		SweeperStaleAfter: getDurationEnv("SWEEPER_STALE_AFTER_SEC", 900) * time.Second,
		SweeperLockTTL:    getDurationEnv("SWEEPER_LOCK_TTL_SEC", 120) * time.Second,
		HeartbeatInterval: getDurationEnv("JOB_HEARTBEAT_SEC", 60) * time.Second,
	}
}

// EmailEnabled reports whether the SMTP summary is configured
func (c *Config) EmailEnabled() bool {
	return c.SMTPServer != "" && c.EmailFrom != "" && len(c.EmailTo) > 0
}

// AuthEnabled reports whether API routes require a token
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return time.Duration(intVal)
		}
		log.Printf("Warning: Invalid duration value for %s, using default %d", key, defaultValue)
	}
	return time.Duration(defaultValue)
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: Invalid boolean value for %s, using default %t", key, defaultValue)
	}
	return defaultValue
}

// getListEnv splits a comma or semicolon separated list
func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ';' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
