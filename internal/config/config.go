// Package config defines the daemon configuration, its defaults and
// validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// Config is the root configuration. Fields come from a TOML file and are
// then overridden by NFTMART_* environment variables.
type Config struct {
	Market   MarketConfig   `toml:"market"`
	Chain    ChainConfig    `toml:"chain"`
	Backend  BackendConfig  `toml:"backend"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Operator OperatorConfig `toml:"operator"`
	Genesis  GenesisConfig  `toml:"genesis"`
	LogLevel string         `toml:"log_level"`
}

// MarketConfig holds the governance parameters written on first start.
// Amounts are decimal strings in whole currency units, rates are percents.
type MarketConfig struct {
	MinOrderDeposit           string `toml:"min_order_deposit"`
	PlatformFeePercent        string `toml:"platform_fee_percent"`
	MaxCommissionPercent      string `toml:"max_commission_percent"`
	MinCommissionAgentDeposit string `toml:"min_commission_agent_deposit"`
	RoyaltiesCapPercent       string `toml:"royalties_cap_percent"`
	AuctionCloseDelayBlocks   uint64 `toml:"auction_close_delay_blocks"`
	Treasury                  string `toml:"treasury"`
}

// ChainConfig maps wall time to block heights.
type ChainConfig struct {
	Genesis   time.Time `toml:"genesis"`
	BlockTime duration  `toml:"block_time"`
}

// BackendConfig selects the state store: "memory" or "postgres".
type BackendConfig struct {
	Kind string `toml:"kind"`
}

type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig drives the event export job. It needs the postgres backend
// and S3.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	RetentionDays int    `toml:"retention_days"`
	Cron          string `toml:"cron"`
	Prefix        string `toml:"prefix"`
}

// ServerConfig holds HTTP parameters. RateLimit is requests per RateWindow
// per client and only applies when Redis is enabled.
type ServerConfig struct {
	Enabled      bool     `toml:"enabled"`
	Port         int      `toml:"port"`
	CORSOrigins  []string `toml:"cors_origins"`
	RateLimit    int      `toml:"rate_limit"`
	RateWindow   duration `toml:"rate_window"`
	SignatureTTL duration `toml:"signature_ttl"`
}

type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// OperatorConfig identifies the admin account. Either a key (raw or an
// encrypted file) or a bare address may be given.
type OperatorConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	Address          string `toml:"address"`
}

// GenesisConfig seeds an empty store.
type GenesisConfig struct {
	Accounts   []GenesisAccount `toml:"accounts"`
	Whitelist  []string         `toml:"whitelist"`
	Categories []string         `toml:"categories"`
}

// GenesisAccount funds Address with Balance whole native units.
type GenesisAccount struct {
	Address string `toml:"address"`
	Balance string `toml:"balance"`
}

// duration decodes TOML strings such as "6s" or "1m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the values config.example.toml documents.
func Defaults() Config {
	return Config{
		Market: MarketConfig{
			MinOrderDeposit:           "10",
			PlatformFeePercent:        "0",
			MaxCommissionPercent:      "100",
			MinCommissionAgentDeposit: "0",
			RoyaltiesCapPercent:       "50",
			AuctionCloseDelayBlocks:   uint64(10 * domain.Minutes),
		},
		Chain: ChainConfig{
			Genesis:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			BlockTime: duration{6 * time.Second},
		},
		Backend: BackendConfig{Kind: "memory"},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "nftmart",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "nftmart-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			RetentionDays: 90,
			Cron:          "0 3 * * *",
			Prefix:        "archive/events",
		},
		Server: ServerConfig{
			Enabled:      true,
			Port:         8000,
			CORSOrigins:  []string{"http://localhost:3000"},
			RateLimit:    120,
			RateWindow:   duration{time.Minute},
			SignatureTTL: duration{5 * time.Minute},
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate reports every problem it finds in one error.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	if _, err := c.Market.Params(); err != nil {
		add("%v", err)
	}
	if c.Market.Treasury != "" && !common.IsHexAddress(c.Market.Treasury) {
		add("market: treasury %q is not an address", c.Market.Treasury)
	}

	if c.Chain.BlockTime.Duration <= 0 {
		add("chain: block_time must be > 0")
	}

	switch c.Backend.Kind {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				add("postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				add("postgres: port must be 1-65535, got %d", c.Postgres.Port)
			}
			if c.Postgres.Database == "" {
				add("postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			add("postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			add("postgres: pool_min_conns must be within [0, pool_max_conns]")
		}
	default:
		add("backend: unknown kind %q (valid: memory, postgres)", c.Backend.Kind)
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			add("redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			add("redis: pool_size must be >= 1")
		}
	}

	if c.Archive.Enabled {
		if c.Backend.Kind != "postgres" {
			add("archive: requires backend.kind = \"postgres\"")
		}
		if c.S3.Bucket == "" || c.S3.Region == "" {
			add("archive: s3 bucket and region must be set")
		}
		if c.Archive.RetentionDays < 1 {
			add("archive: retention_days must be >= 1")
		}
		if len(strings.Fields(c.Archive.Cron)) != 5 {
			add("archive: cron must have 5 fields, got %q", c.Archive.Cron)
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server: port must be 1-65535, got %d", c.Server.Port)
		}
		if c.Server.SignatureTTL.Duration <= 0 {
			add("server: signature_ttl must be > 0")
		}
	}

	if c.Operator.EncryptedKeyPath != "" && c.Operator.KeyPassword == "" {
		add("operator: key_password is required when encrypted_key_path is set")
	}
	if c.Operator.Address != "" && !common.IsHexAddress(c.Operator.Address) {
		add("operator: address %q is not an address", c.Operator.Address)
	}

	for i, a := range c.Genesis.Accounts {
		if !common.IsHexAddress(a.Address) {
			add("genesis.accounts[%d]: address %q is not an address", i, a.Address)
		}
		if _, err := ParseUnits(a.Balance); err != nil {
			add("genesis.accounts[%d]: balance: %v", i, err)
		}
	}
	for i, a := range c.Genesis.Whitelist {
		if !common.IsHexAddress(a) {
			add("genesis.whitelist[%d]: %q is not an address", i, a)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Params converts the market section into governance parameters.
func (m MarketConfig) Params() (domain.MarketParams, error) {
	var p domain.MarketParams
	var err error
	if p.MinOrderDeposit, err = ParseUnits(m.MinOrderDeposit); err != nil {
		return p, fmt.Errorf("market: min_order_deposit: %w", err)
	}
	if p.MinCommissionAgentDeposit, err = ParseUnits(m.MinCommissionAgentDeposit); err != nil {
		return p, fmt.Errorf("market: min_commission_agent_deposit: %w", err)
	}
	if p.PlatformFeeRate, err = ParsePercent(m.PlatformFeePercent); err != nil {
		return p, fmt.Errorf("market: platform_fee_percent: %w", err)
	}
	if p.MaxCommissionRewardRate, err = ParsePercent(m.MaxCommissionPercent); err != nil {
		return p, fmt.Errorf("market: max_commission_percent: %w", err)
	}
	if p.RoyaltiesRate, err = ParsePercent(m.RoyaltiesCapPercent); err != nil {
		return p, fmt.Errorf("market: royalties_cap_percent: %w", err)
	}
	p.AuctionCloseDelay = domain.BlockNumber(m.AuctionCloseDelayBlocks)
	return p, nil
}

// TreasuryAccount returns the configured treasury, or the zero account when
// unset.
func (m MarketConfig) TreasuryAccount() domain.AccountID {
	if m.Treasury == "" {
		return domain.AccountID{}
	}
	return common.HexToAddress(m.Treasury)
}

var accuracy = decimal.New(1, 12)

// ParseUnits converts a decimal amount of whole units ("1.5") into smallest
// units. Precision beyond 12 places is rejected.
func ParseUnits(s string) (domain.Balance, error) {
	if strings.TrimSpace(s) == "" {
		return domain.Balance{}, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return domain.Balance{}, err
	}
	if d.IsNegative() {
		return domain.Balance{}, fmt.Errorf("negative amount %s", s)
	}
	scaled := d.Mul(accuracy)
	if !scaled.Equal(scaled.Truncate(0)) {
		return domain.Balance{}, fmt.Errorf("amount %s has more than 12 decimals", s)
	}
	return domain.ParseBalance(scaled.BigInt().String())
}

// ParsePercent converts a percent ("2.5") into a Rate, rounding down.
func ParsePercent(s string) (domain.Rate, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return 0, fmt.Errorf("percent %s outside [0, 100]", s)
	}
	r := d.Mul(decimal.NewFromInt(int64(domain.RateOne))).Div(decimal.NewFromInt(100)).Floor()
	return domain.Rate(r.IntPart()), nil
}
