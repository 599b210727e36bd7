package config

import "time"

// APIConfig holds runtime configuration for the commentary API service.
type APIConfig struct {
	Environment   string
	Addr          string
	LogLevel      string
	DatabaseURL   string
	MigrationsDir string

	OpenAIBaseURL        string
	OpenAIAPIKey         string
	OpenAIVisionModel    string
	OpenAIRequestTimeout time.Duration
	OpenAIMaxTokens      int

	MediaRoot          string
	MediaBaseURL       string
	MediaSigningSecret string
	SignedURLTTL       time.Duration

	SchedulerTokenHash string
	AdminTokenHash     string

	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int

	RecapSchedulerEnabled bool
	RecapInterval         time.Duration
	RecapDuplicateWindow  time.Duration
	CostCheckInterval     time.Duration
	CostAlertDailyUSD     float64
	CostAlertHourlyUSD    float64
	PricingFile           string

	SettingsCacheTTL time.Duration
	MaxSnapshots     int
	MaxPromptFrames  int
	AdhocMaxLookback time.Duration
	// PromptTimezone is an IANA zone name used for times quoted to the model.
	PromptTimezone string
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:   GetString("APP_ENV", "development"),
		Addr:          GetString("API_ADDR", ":4000"),
		LogLevel:      GetString("LOG_LEVEL", "info"),
		DatabaseURL:   GetString("DATABASE_URL", "postgres://izzocam:izzocam@db:5432/izzocam?sslmode=disable"),
		MigrationsDir: GetString("DB_MIGRATIONS_DIR", ""),

		OpenAIBaseURL:        GetString("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIAPIKey:         GetString("OPENAI_API_KEY", ""),
		OpenAIVisionModel:    GetString("OPENAI_VISION_MODEL", "gpt-4o-mini"),
		OpenAIRequestTimeout: time.Duration(GetInt("OPENAI_REQUEST_TIMEOUT_MS", 20000)) * time.Millisecond,
		OpenAIMaxTokens:      GetInt("OPENAI_MAX_TOKENS", 600),

		MediaRoot:          GetString("MEDIA_ROOT", "./data/media"),
		MediaBaseURL:       GetString("MEDIA_BASE_URL", "http://localhost:4000"),
		MediaSigningSecret: GetString("MEDIA_SIGNING_SECRET", "supersecuresecret"),
		SignedURLTTL:       time.Duration(GetInt("SIGNED_URL_TTL_SECONDS", 300)) * time.Second,

		SchedulerTokenHash: GetString("SCHEDULER_TOKEN_HASH", ""),
		AdminTokenHash:     GetString("ADMIN_TOKEN_HASH", ""),

		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),

		RecapSchedulerEnabled: GetBool("RECAP_SCHEDULER_ENABLED", false),
		RecapInterval:         time.Duration(GetInt("RECAP_INTERVAL_MINUTES", 60)) * time.Minute,
		RecapDuplicateWindow:  time.Duration(GetInt("RECAP_DUPLICATE_WINDOW_MINUTES", 55)) * time.Minute,
		CostCheckInterval:     time.Duration(GetInt("COST_CHECK_INTERVAL_MINUTES", 60)) * time.Minute,
		CostAlertDailyUSD:     GetFloat("COST_ALERT_DAILY_USD", 10),
		CostAlertHourlyUSD:    GetFloat("COST_ALERT_HOURLY_USD", 1),
		PricingFile:           GetString("PRICING_FILE", ""),

		SettingsCacheTTL: time.Duration(GetInt("SETTINGS_CACHE_TTL_SECONDS", 300)) * time.Second,
		MaxSnapshots:     GetInt("MAX_SNAPSHOTS", 50),
		MaxPromptFrames:  GetInt("MAX_PROMPT_FRAMES", 6),
		AdhocMaxLookback: time.Duration(GetInt("ADHOC_MAX_LOOKBACK_MINUTES", 0)) * time.Minute,
		PromptTimezone:   GetString("COMMENTARY_TIMEZONE", "UTC"),
	}
}
