package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

type AppCfg struct{ Env, Port, BaseURL, EndpointName string }
type DBCfg struct{ DSN string }

type RedisCfg struct {
	Addr     string
	Password string
	DB       int
}

// OAICfg holds the repository identity and harvesting limits
type OAICfg struct {
	PageSize       int
	RepositoryName string
	AdminEmail     string
	TokenStore     string
	TokenTTL       time.Duration
	PurgeCron      string
	RefreshCron    string
	HarvestRetries int
}

type SecurityCfg struct {
	RateLimitPerMin int
	AdminToken      string // guards /admin
}

type TelemetryCfg struct {
	StdoutTrace bool
}

type Cfg struct {
	App       AppCfg
	DB        DBCfg
	Redis     RedisCfg
	OAI       OAICfg
	Sec       SecurityCfg
	Telemetry TelemetryCfg
}

func Load() Cfg {
	// 1) Load .env into process env (missing file is fine)
	_ = godotenv.Load(".env")

	// 2) Read from env via viper
	viper.AutomaticEnv()
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("OAI_ENDPOINT_NAME", "oai")
	viper.SetDefault("OAI_PAGE_SIZE", 100)
	viper.SetDefault("OAI_REPOSITORY_NAME", "OAI-PMH Repository")
	viper.SetDefault("OAI_ADMIN_EMAIL", "admin@example.org")
	viper.SetDefault("OAI_TOKEN_STORE", StorePostgres)
	viper.SetDefault("OAI_TOKEN_TTL", "24h")
	viper.SetDefault("OAI_TOKEN_PURGE_CRON", "*/15 * * * *")
	viper.SetDefault("OAI_REFRESH_CRON", "")
	viper.SetDefault("OAI_HARVEST_RETRIES", 5)
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("RATE_LIMIT_PER_MIN", 300)
	viper.SetDefault("ADMIN_TOKEN", "")
	viper.SetDefault("OTEL_STDOUT_TRACE", false)

	cfg := Cfg{
		App: AppCfg{
			Env:          viper.GetString("APP_ENV"),
			Port:         viper.GetString("APP_PORT"),
			BaseURL:      strings.TrimSpace(viper.GetString("APP_BASE_URL")),
			EndpointName: strings.Trim(viper.GetString("OAI_ENDPOINT_NAME"), "/ "),
		},
		DB: DBCfg{DSN: viper.GetString("DB_DSN")},
		Redis: RedisCfg{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		OAI: OAICfg{
			PageSize:       viper.GetInt("OAI_PAGE_SIZE"),
			RepositoryName: viper.GetString("OAI_REPOSITORY_NAME"),
			AdminEmail:     viper.GetString("OAI_ADMIN_EMAIL"),
			TokenStore:     strings.ToLower(strings.TrimSpace(viper.GetString("OAI_TOKEN_STORE"))),
			TokenTTL:       viper.GetDuration("OAI_TOKEN_TTL"),
			PurgeCron:      strings.TrimSpace(viper.GetString("OAI_TOKEN_PURGE_CRON")),
			RefreshCron:    strings.TrimSpace(viper.GetString("OAI_REFRESH_CRON")),
			HarvestRetries: viper.GetInt("OAI_HARVEST_RETRIES"),
		},
		Sec: SecurityCfg{
			RateLimitPerMin: viper.GetInt("RATE_LIMIT_PER_MIN"),
			AdminToken:      strings.TrimSpace(viper.GetString("ADMIN_TOKEN")),
		},
		Telemetry: TelemetryCfg{
			StdoutTrace: viper.GetBool("OTEL_STDOUT_TRACE"),
		},
	}

	// 3) Fail fast on required settings
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	return cfg
}
