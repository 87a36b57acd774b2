package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dagwatch/dagwatch/internal/platform/logging"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	StoreBackendFile     = "file"
	StoreBackendPostgres = "postgres"
)

// Config stores runtime configuration for every entry point.
type Config struct {
	AppEnv         string
	ServiceName    string
	ServiceVersion string
	LogLevel       logging.Level

	StoreBackend string
	DataDir      string
	DBURL        string

	HTTPAddr           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	CORSAllowedOrigins []string
	InternalJobToken   string
	QueryCacheTTL      time.Duration

	ESPNBaseURL             string
	ESPNTimeout             time.Duration
	ESPNMaxAttempts         int
	ESPNRetryDelay          time.Duration
	ESPNCircuitEnabled      bool
	ESPNCircuitFailureCount int
	ESPNCircuitOpenTimeout  time.Duration

	UFCStatsBaseURL    string
	UFCStatsTimeout    time.Duration
	UFCStatsFetchDelay time.Duration

	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	OpenAITimeout     time.Duration
	OpenAIMaxAttempts int

	ClassifierCacheFallbacks bool

	BootstrapRecentEvents int
	FetchConcurrency      int
	RefreshLockTTL        time.Duration

	PprofEnabled bool
	PprofAddr    string

	UptraceEnabled bool
	UptraceDSN     string

	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	storeBackend := strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", StoreBackendFile)))
	switch storeBackend {
	case StoreBackendFile, StoreBackendPostgres:
	default:
		return Config{}, fmt.Errorf("invalid STORE_BACKEND %q: valid values are %s, %s", storeBackend, StoreBackendFile, StoreBackendPostgres)
	}

	dbURL := strings.TrimSpace(getEnv("DB_URL", ""))
	if storeBackend == StoreBackendPostgres && dbURL == "" {
		return Config{}, fmt.Errorf("DB_URL is required when STORE_BACKEND=postgres")
	}

	readTimeout, err := time.ParseDuration(getEnv("APP_READ_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_READ_TIMEOUT: %w", err)
	}
	writeTimeout, err := time.ParseDuration(getEnv("APP_WRITE_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_WRITE_TIMEOUT: %w", err)
	}
	queryCacheTTL, err := time.ParseDuration(getEnv("APP_QUERY_CACHE_TTL", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_QUERY_CACHE_TTL: %w", err)
	}
	if queryCacheTTL < 0 {
		return Config{}, fmt.Errorf("APP_QUERY_CACHE_TTL must be >= 0")
	}

	espnTimeout, err := time.ParseDuration(getEnv("ESPN_TIMEOUT", "20s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse ESPN_TIMEOUT: %w", err)
	}
	if espnTimeout <= 0 {
		return Config{}, fmt.Errorf("ESPN_TIMEOUT must be > 0")
	}
	espnMaxAttempts, err := getEnvAsInt("ESPN_MAX_ATTEMPTS", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse ESPN_MAX_ATTEMPTS: %w", err)
	}
	if espnMaxAttempts < 1 {
		return Config{}, fmt.Errorf("ESPN_MAX_ATTEMPTS must be >= 1")
	}
	espnRetryDelay, err := time.ParseDuration(getEnv("ESPN_RETRY_DELAY", "2s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse ESPN_RETRY_DELAY: %w", err)
	}
	if espnRetryDelay < 0 {
		return Config{}, fmt.Errorf("ESPN_RETRY_DELAY must be >= 0")
	}
	espnCircuitEnabled, err := strconv.ParseBool(getEnv("ESPN_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse ESPN_CIRCUIT_ENABLED: %w", err)
	}
	espnCircuitFailureCount, err := getEnvAsInt("ESPN_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse ESPN_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if espnCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("ESPN_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	espnCircuitOpenTimeout, err := time.ParseDuration(getEnv("ESPN_CIRCUIT_OPEN_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse ESPN_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if espnCircuitOpenTimeout <= 0 {
		return Config{}, fmt.Errorf("ESPN_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}

	ufcStatsTimeout, err := time.ParseDuration(getEnv("UFCSTATS_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UFCSTATS_TIMEOUT: %w", err)
	}
	if ufcStatsTimeout <= 0 {
		return Config{}, fmt.Errorf("UFCSTATS_TIMEOUT must be > 0")
	}
	ufcStatsFetchDelay, err := time.ParseDuration(getEnv("UFCSTATS_FETCH_DELAY", "1s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UFCSTATS_FETCH_DELAY: %w", err)
	}
	if ufcStatsFetchDelay < 0 {
		return Config{}, fmt.Errorf("UFCSTATS_FETCH_DELAY must be >= 0")
	}

	openAITimeout, err := time.ParseDuration(getEnv("OPENAI_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse OPENAI_TIMEOUT: %w", err)
	}
	if openAITimeout <= 0 {
		return Config{}, fmt.Errorf("OPENAI_TIMEOUT must be > 0")
	}
	openAIMaxAttempts, err := getEnvAsInt("OPENAI_MAX_ATTEMPTS", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse OPENAI_MAX_ATTEMPTS: %w", err)
	}
	if openAIMaxAttempts < 1 {
		return Config{}, fmt.Errorf("OPENAI_MAX_ATTEMPTS must be >= 1")
	}

	cacheFallbacks, err := strconv.ParseBool(getEnv("CLASSIFIER_CACHE_FALLBACKS", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CLASSIFIER_CACHE_FALLBACKS: %w", err)
	}

	bootstrapRecentEvents, err := getEnvAsInt("BOOTSTRAP_RECENT_EVENTS", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse BOOTSTRAP_RECENT_EVENTS: %w", err)
	}
	if bootstrapRecentEvents < 1 {
		return Config{}, fmt.Errorf("BOOTSTRAP_RECENT_EVENTS must be >= 1")
	}

	fetchConcurrency, err := getEnvAsInt("FETCH_CONCURRENCY", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse FETCH_CONCURRENCY: %w", err)
	}
	if fetchConcurrency < 1 {
		return Config{}, fmt.Errorf("FETCH_CONCURRENCY must be >= 1")
	}

	refreshLockTTL, err := time.ParseDuration(getEnv("REFRESH_LOCK_TTL", "30m"))
	if err != nil {
		return Config{}, fmt.Errorf("parse REFRESH_LOCK_TTL: %w", err)
	}
	if refreshLockTTL <= 0 {
		return Config{}, fmt.Errorf("REFRESH_LOCK_TTL must be > 0")
	}

	pprofEnabled, err := strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	pprofAddr := strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if pprofEnabled && pprofAddr == "" {
		return Config{}, fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := time.ParseDuration(getEnv("PYROSCOPE_UPLOAD_RATE", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_UPLOAD_RATE: %w", err)
	}
	if pyroscopeUploadRate <= 0 {
		return Config{}, fmt.Errorf("PYROSCOPE_UPLOAD_RATE must be > 0")
	}

	cfg := Config{
		AppEnv:         appEnv,
		ServiceName:    getEnv("APP_SERVICE_NAME", "dagwatch-core"),
		ServiceVersion: getEnv("APP_SERVICE_VERSION", "dev"),
		LogLevel:       parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),

		StoreBackend: storeBackend,
		DataDir:      getEnv("DATA_DIR", "./data"),
		DBURL:        dbURL,

		HTTPAddr:           getEnv("APP_HTTP_ADDR", ":8080"),
		ReadTimeout:        readTimeout,
		WriteTimeout:       writeTimeout,
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		InternalJobToken:   strings.TrimSpace(getEnv("APP_INTERNAL_JOB_TOKEN", "")),
		QueryCacheTTL:      queryCacheTTL,

		ESPNBaseURL:             strings.TrimSpace(getEnv("ESPN_BASE_URL", "https://site.web.api.espn.com/apis/site/v2/sports/mma/ufc")),
		ESPNTimeout:             espnTimeout,
		ESPNMaxAttempts:         espnMaxAttempts,
		ESPNRetryDelay:          espnRetryDelay,
		ESPNCircuitEnabled:      espnCircuitEnabled,
		ESPNCircuitFailureCount: espnCircuitFailureCount,
		ESPNCircuitOpenTimeout:  espnCircuitOpenTimeout,

		UFCStatsBaseURL:    strings.TrimSpace(getEnv("UFCSTATS_BASE_URL", "http://ufcstats.com")),
		UFCStatsTimeout:    ufcStatsTimeout,
		UFCStatsFetchDelay: ufcStatsFetchDelay,

		OpenAIAPIKey:      strings.TrimSpace(getEnv("OPENAI_API_KEY", "")),
		OpenAIBaseURL:     strings.TrimSpace(getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1")),
		OpenAIModel:       strings.TrimSpace(getEnv("OPENAI_MODEL", "gpt-4o-mini")),
		OpenAITimeout:     openAITimeout,
		OpenAIMaxAttempts: openAIMaxAttempts,

		ClassifierCacheFallbacks: cacheFallbacks,

		BootstrapRecentEvents: bootstrapRecentEvents,
		FetchConcurrency:      fetchConcurrency,
		RefreshLockTTL:        refreshLockTTL,

		PprofEnabled: pprofEnabled,
		PprofAddr:    pprofAddr,

		UptraceEnabled: uptraceEnabled,
		UptraceDSN:     uptraceDSN,

		PyroscopeEnabled:           pyroscopeEnabled,
		PyroscopeServerAddress:     pyroscopeServerAddress,
		PyroscopeAuthToken:         strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:     strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword: strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
		PyroscopeUploadRate:        pyroscopeUploadRate,
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	if cfg.PyroscopeEnabled && cfg.PyroscopeAppName == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
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

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
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

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
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
