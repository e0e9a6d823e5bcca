package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/live-links/internal/domain/provider"
	"github.com/riskibarqy/live-links/internal/platform/logging"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv             string
	ServiceName        string
	ServiceVersion     string
	HTTPAddr           string
	DBURL              string
	AdminToken         string
	CORSAllowedOrigins []string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	LogLevel           logging.Level

	Sources                  string
	SourceTimeout            time.Duration
	SourceMaxRetries         int
	SourceRatePerSecond      float64
	SourceBurst              int
	SourceCircuitEnabled     bool
	SourceCircuitFailures    int
	SourceCircuitOpenTimeout time.Duration
	SourceCircuitHalfOpenMax int
	ScanBatchTimeout         time.Duration
	ScanConcurrency          int
	ScanCacheTTL             time.Duration

	ScheduleBaseURL    string
	ScheduleTimeout    time.Duration
	ScheduleMaxRetries int
	AssignLeagues      []string
	AssignWindowLead   time.Duration
	AssignWindowGrace  time.Duration
	AssignBatchSize    int
	AssignBatchPause   time.Duration
	EmbedProviders     []provider.Template

	HealthTimeout     time.Duration
	HealthConcurrency int
	HealthStaleAfter  time.Duration

	ProxyTimeout             time.Duration
	ProxyPath                string
	ProxySegmentCacheSeconds int

	BrowserUserAgents     []string
	BrowserAcceptLanguage string

	JobsEnabled      bool
	JobsRunOnStart   bool
	ScanSchedule     string
	HealthSchedule   string
	ScanJobTimeout   time.Duration
	HealthJobTimeout time.Duration

	UptraceEnabled             bool
	UptraceDSN                 string
	UptraceLogsEnabled         bool
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
	PprofEnabled               bool
	PprofAddr                  string
	MetricsEnabled             bool
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:                appEnv,
		ServiceName:           getEnv("APP_SERVICE_NAME", "live-links-api"),
		ServiceVersion:        getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:              getEnv("APP_HTTP_ADDR", ":8080"),
		DBURL:                 strings.TrimSpace(getEnv("DB_URL", "")),
		AdminToken:            strings.TrimSpace(getEnv("ADMIN_TOKEN", "")),
		CORSAllowedOrigins:    splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		LogLevel:              parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),
		Sources:               strings.TrimSpace(getEnv("SOURCES", "")),
		ScheduleBaseURL:       strings.TrimSpace(getEnv("SCHEDULE_BASE_URL", "https://site.api.espn.com/apis/site/v2/sports")),
		AssignLeagues:         splitCSV(getEnv("ASSIGN_LEAGUES", "basketball/nba,hockey/nhl,soccer/eng.1,football/nfl")),
		ProxyPath:             getEnv("PROXY_PATH", "/proxy"),
		BrowserUserAgents:     splitList(getEnv("BROWSER_USER_AGENTS", ""), "||"),
		BrowserAcceptLanguage: strings.TrimSpace(getEnv("BROWSER_ACCEPT_LANGUAGE", "en-US,en;q=0.9")),
		ScanSchedule:          strings.TrimSpace(getEnv("SCAN_SCHEDULE", "*/10 * * * *")),
		HealthSchedule:        strings.TrimSpace(getEnv("HEALTH_SCHEDULE", "*/5 * * * *")),
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}
	if !strings.HasPrefix(cfg.ProxyPath, "/") {
		return Config{}, fmt.Errorf("PROXY_PATH must start with /")
	}

	durations := []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"APP_READ_TIMEOUT", "10s", &cfg.ReadTimeout},
		{"APP_WRITE_TIMEOUT", "60s", &cfg.WriteTimeout},
		{"SOURCE_TIMEOUT", "12s", &cfg.SourceTimeout},
		{"SOURCE_CIRCUIT_OPEN_TIMEOUT", "30s", &cfg.SourceCircuitOpenTimeout},
		{"SCAN_BATCH_TIMEOUT", "30s", &cfg.ScanBatchTimeout},
		{"SCAN_CACHE_TTL", "5m", &cfg.ScanCacheTTL},
		{"SCHEDULE_TIMEOUT", "15s", &cfg.ScheduleTimeout},
		{"ASSIGN_WINDOW_LEAD", "30m", &cfg.AssignWindowLead},
		{"ASSIGN_WINDOW_GRACE", "10m", &cfg.AssignWindowGrace},
		{"HEALTH_TIMEOUT", "5s", &cfg.HealthTimeout},
		{"HEALTH_STALE_AFTER", "6h", &cfg.HealthStaleAfter},
		{"PROXY_TIMEOUT", "15s", &cfg.ProxyTimeout},
		{"SCAN_JOB_TIMEOUT", "5m", &cfg.ScanJobTimeout},
		{"HEALTH_JOB_TIMEOUT", "3m", &cfg.HealthJobTimeout},
		{"PYROSCOPE_UPLOAD_RATE", "15s", &cfg.PyroscopeUploadRate},
	}
	for _, d := range durations {
		value, err := getEnvAsPositiveDuration(d.key, d.fallback)
		if err != nil {
			return Config{}, err
		}
		*d.dst = value
	}

	// ASSIGN_BATCH_PAUSE may be zero.
	cfg.AssignBatchPause, err = time.ParseDuration(getEnv("ASSIGN_BATCH_PAUSE", "1s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse ASSIGN_BATCH_PAUSE: %w", err)
	}
	if cfg.AssignBatchPause < 0 {
		return Config{}, fmt.Errorf("ASSIGN_BATCH_PAUSE must be >= 0")
	}

	ints := []struct {
		key      string
		fallback int
		min      int
		dst      *int
	}{
		{"SOURCE_MAX_RETRIES", 1, 0, &cfg.SourceMaxRetries},
		{"SOURCE_BURST", 2, 1, &cfg.SourceBurst},
		{"SOURCE_CIRCUIT_FAILURE_COUNT", 3, 1, &cfg.SourceCircuitFailures},
		{"SOURCE_CIRCUIT_HALF_OPEN_MAX_REQ", 1, 1, &cfg.SourceCircuitHalfOpenMax},
		{"SCAN_CONCURRENCY", 6, 1, &cfg.ScanConcurrency},
		{"SCHEDULE_MAX_RETRIES", 1, 0, &cfg.ScheduleMaxRetries},
		{"ASSIGN_BATCH_SIZE", 5, 1, &cfg.AssignBatchSize},
		{"HEALTH_CONCURRENCY", 8, 1, &cfg.HealthConcurrency},
		{"PROXY_SEGMENT_CACHE_SECONDS", 60, 0, &cfg.ProxySegmentCacheSeconds},
	}
	for _, item := range ints {
		value, err := getEnvAsInt(item.key, item.fallback)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", item.key, err)
		}
		if value < item.min {
			return Config{}, fmt.Errorf("%s must be >= %d", item.key, item.min)
		}
		*item.dst = value
	}

	cfg.SourceRatePerSecond, err = strconv.ParseFloat(getEnv("SOURCE_RATE_PER_SECOND", "2"), 64)
	if err != nil {
		return Config{}, fmt.Errorf("parse SOURCE_RATE_PER_SECOND: %w", err)
	}
	if cfg.SourceRatePerSecond <= 0 {
		return Config{}, fmt.Errorf("SOURCE_RATE_PER_SECOND must be > 0")
	}

	bools := []struct {
		key      string
		fallback string
		dst      *bool
	}{
		{"SOURCE_CIRCUIT_ENABLED", "true", &cfg.SourceCircuitEnabled},
		{"JOBS_ENABLED", "true", &cfg.JobsEnabled},
		{"JOBS_RUN_ON_START", "false", &cfg.JobsRunOnStart},
		{"UPTRACE_ENABLED", "false", &cfg.UptraceEnabled},
		{"UPTRACE_LOGS_ENABLED", "false", &cfg.UptraceLogsEnabled},
		{"PYROSCOPE_ENABLED", "false", &cfg.PyroscopeEnabled},
		{"PPROF_ENABLED", "false", &cfg.PprofEnabled},
		{"METRICS_ENABLED", "true", &cfg.MetricsEnabled},
	}
	for _, item := range bools {
		value, err := strconv.ParseBool(getEnv(item.key, item.fallback))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", item.key, err)
		}
		*item.dst = value
	}

	cfg.EmbedProviders, err = provider.ParseTemplates(getEnv("EMBED_PROVIDERS", ""))
	if err != nil {
		return Config{}, fmt.Errorf("parse EMBED_PROVIDERS: %w", err)
	}
	for _, league := range cfg.AssignLeagues {
		if strings.Count(league, "/") != 1 || strings.HasPrefix(league, "/") || strings.HasSuffix(league, "/") {
			return Config{}, fmt.Errorf("invalid ASSIGN_LEAGUES item %q, expected sport/league", league)
		}
	}
	if cfg.JobsEnabled {
		if cfg.ScanSchedule == "" || cfg.HealthSchedule == "" {
			return Config{}, fmt.Errorf("SCAN_SCHEDULE and HEALTH_SCHEDULE are required when JOBS_ENABLED=true")
		}
	}

	cfg.UptraceDSN = strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if cfg.UptraceDSN == "" {
		cfg.UptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if cfg.UptraceEnabled && cfg.UptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	cfg.PyroscopeServerAddress = strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	cfg.PyroscopeAuthToken = strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", ""))
	cfg.PyroscopeBasicAuthUser = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", ""))
	cfg.PyroscopeBasicAuthPassword = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", ""))
	if cfg.PyroscopeEnabled && cfg.PyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))

	cfg.PprofAddr = strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if cfg.PprofEnabled && cfg.PprofAddr == "" {
		return Config{}, fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	return cfg, nil
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsPositiveDuration(key, fallback string) (time.Duration, error) {
	value, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return value, nil
}

func splitCSV(v string) []string {
	return splitList(v, ",")
}

func splitList(v, sep string) []string {
	parts := strings.Split(v, sep)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
