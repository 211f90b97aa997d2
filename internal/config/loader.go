package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load layers the TOML file at path over Defaults and applies NFTMART_*
// environment overrides. An empty path skips the file. A .env file in the
// working directory is loaded first when present. The result is not
// validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides lets deployments inject secrets and endpoints without
// editing the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.LogLevel, "NFTMART_LOG_LEVEL")

	setStr(&cfg.Market.MinOrderDeposit, "NFTMART_MARKET_MIN_ORDER_DEPOSIT")
	setStr(&cfg.Market.PlatformFeePercent, "NFTMART_MARKET_PLATFORM_FEE_PERCENT")
	setStr(&cfg.Market.MaxCommissionPercent, "NFTMART_MARKET_MAX_COMMISSION_PERCENT")
	setStr(&cfg.Market.MinCommissionAgentDeposit, "NFTMART_MARKET_MIN_COMMISSION_AGENT_DEPOSIT")
	setStr(&cfg.Market.RoyaltiesCapPercent, "NFTMART_MARKET_ROYALTIES_CAP_PERCENT")
	setUint64(&cfg.Market.AuctionCloseDelayBlocks, "NFTMART_MARKET_AUCTION_CLOSE_DELAY_BLOCKS")
	setStr(&cfg.Market.Treasury, "NFTMART_MARKET_TREASURY")

	setTime(&cfg.Chain.Genesis, "NFTMART_CHAIN_GENESIS")
	setDuration(&cfg.Chain.BlockTime, "NFTMART_CHAIN_BLOCK_TIME")

	setStr(&cfg.Backend.Kind, "NFTMART_BACKEND")

	setStr(&cfg.Postgres.DSN, "NFTMART_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "NFTMART_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "NFTMART_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "NFTMART_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "NFTMART_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "NFTMART_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "NFTMART_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "NFTMART_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "NFTMART_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "NFTMART_POSTGRES_RUN_MIGRATIONS")

	setBool(&cfg.Redis.Enabled, "NFTMART_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "NFTMART_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "NFTMART_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "NFTMART_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "NFTMART_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "NFTMART_REDIS_TLS_ENABLED")

	setStr(&cfg.S3.Endpoint, "NFTMART_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "NFTMART_S3_REGION")
	setStr(&cfg.S3.Bucket, "NFTMART_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "NFTMART_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "NFTMART_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "NFTMART_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "NFTMART_S3_FORCE_PATH_STYLE")

	setBool(&cfg.Archive.Enabled, "NFTMART_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "NFTMART_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Cron, "NFTMART_ARCHIVE_CRON")

	setBool(&cfg.Server.Enabled, "NFTMART_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "NFTMART_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "NFTMART_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "NFTMART_SERVER_RATE_LIMIT")

	setStr(&cfg.Notify.TelegramToken, "NFTMART_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "NFTMART_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "NFTMART_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "NFTMART_NOTIFY_EVENTS")

	setStr(&cfg.Operator.PrivateKey, "NFTMART_OPERATOR_PRIVATE_KEY")
	setStr(&cfg.Operator.EncryptedKeyPath, "NFTMART_OPERATOR_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Operator.KeyPassword, "NFTMART_OPERATOR_KEY_PASSWORD")
	setStr(&cfg.Operator.Address, "NFTMART_OPERATOR_ADDRESS")
}

// Each setter only touches dst when the variable is set and parses.

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

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
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

func setTime(dst *time.Time, key string) {
	if v := os.Getenv(key); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			*dst = t
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
