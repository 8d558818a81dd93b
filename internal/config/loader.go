package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies OMEN_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known OMEN_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "OMEN_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "OMEN_POSTGRES_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "OMEN_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "OMEN_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "OMEN_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "OMEN_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "OMEN_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "OMEN_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "OMEN_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "OMEN_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "OMEN_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "OMEN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "OMEN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "OMEN_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "OMEN_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "OMEN_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "OMEN_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "OMEN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "OMEN_S3_REGION")
	setStr(&cfg.S3.Bucket, "OMEN_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "OMEN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "OMEN_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "OMEN_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "OMEN_S3_FORCE_PATH_STYLE")

	// ── Engine ──
	setDuration(&cfg.Engine.LivenessWindow, "OMEN_ENGINE_LIVENESS_WINDOW")
	setInt64(&cfg.Engine.MinBond, "OMEN_ENGINE_MIN_BOND")
	setInt64(&cfg.Engine.MaxStake, "OMEN_ENGINE_MAX_STAKE")
	setDuration(&cfg.Engine.SettleInterval, "OMEN_ENGINE_SETTLE_INTERVAL")

	// ── Oracle ──
	setStr(&cfg.Oracle.URL, "OMEN_ORACLE_URL")
	setStr(&cfg.Oracle.ApiKey, "OMEN_ORACLE_API_KEY")
	setDuration(&cfg.Oracle.Timeout, "OMEN_ORACLE_TIMEOUT")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "OMEN_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "OMEN_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "OMEN_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "OMEN_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "OMEN_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "OMEN_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimitPerMin, "OMEN_SERVER_RATE_LIMIT_PER_MIN")

	// ── Admin ──
	setStr(&cfg.Admin.ApiKey, "OMEN_ADMIN_API_KEY")
	setStr(&cfg.Admin.EncryptedKeyPath, "OMEN_ADMIN_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Admin.KeyPassword, "OMEN_ADMIN_KEY_PASSWORD")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "OMEN_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "OMEN_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "OMEN_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "OMEN_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "OMEN_MODE")
	setStr(&cfg.LogLevel, "OMEN_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
