package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "PAPERTRADE"

	BackendMemory   = "memory"
	BackendWAL      = "wal"
	BackendFile     = "file"
	BackendPostgres = "postgres"

	QuoteNone   = "none"
	QuoteStatic = "static"
	QuoteAlpaca = "alpaca"
)

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Ledger   LedgerConfig   `mapstructure:"ledger" yaml:"ledger"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	Quote    QuoteConfig    `mapstructure:"quote" yaml:"quote"`
	Kafka    KafkaConfig    `mapstructure:"kafka" yaml:"kafka"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

type HTTPConfig struct {
	Addr         string   `mapstructure:"addr" yaml:"addr"`
	CORSOrigin   string   `mapstructure:"cors_origin" yaml:"cors_origin"`
	TLSDomains   []string `mapstructure:"tls_domains" yaml:"tls_domains,omitempty"`
	CertCacheDir string   `mapstructure:"cert_cache_dir" yaml:"cert_cache_dir,omitempty"`
	// ServerURL is where CLI commands send requests.
	ServerURL string `mapstructure:"server_url" yaml:"server_url"`
}

type LedgerConfig struct {
	Backend      string        `mapstructure:"backend" yaml:"backend"`
	DataDir      string        `mapstructure:"data_dir" yaml:"data_dir"`
	SeedBalance  string        `mapstructure:"seed_balance" yaml:"seed_balance"`
	StoreTimeout time.Duration `mapstructure:"store_timeout" yaml:"store_timeout"`
}

type QuoteConfig struct {
	Provider     string            `mapstructure:"provider" yaml:"provider"`
	ToleranceBps int64             `mapstructure:"tolerance_bps" yaml:"tolerance_bps"`
	Strict       bool              `mapstructure:"strict" yaml:"strict"`
	APIKey       string            `mapstructure:"api_key" yaml:"api_key,omitempty"`
	APISecret    string            `mapstructure:"api_secret" yaml:"api_secret,omitempty"`
	BaseURL      string            `mapstructure:"base_url" yaml:"base_url,omitempty"`
	MaxRetries   int               `mapstructure:"max_retries" yaml:"max_retries"`
	Timeout      time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	StaticPrices map[string]string `mapstructure:"static_prices" yaml:"static_prices,omitempty"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers" yaml:"brokers,omitempty"`
	Topic   string   `mapstructure:"topic" yaml:"topic"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`             // "debug", "info", "warn", "error"
	Format      string `mapstructure:"format" yaml:"format"`           // "json" or "console"
	OutputFile  string `mapstructure:"output_file" yaml:"output_file"` // rotated log file (optional)
	Environment string `mapstructure:"environment" yaml:"environment"` // "dev" or "prod"
}

// Default returns the configuration used when no file or env overrides are present.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:         ":8080",
			CORSOrigin:   "*",
			CertCacheDir: "./data/certs",
			ServerURL:    "http://localhost:8080",
		},
		Ledger: LedgerConfig{
			Backend:      BackendWAL,
			DataDir:      "./data",
			SeedBalance:  "25000",
			StoreTimeout: 5 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			DBName:          "papertrade",
			SSLMode:         "disable",
			TimeZone:        "UTC",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			Environment:     "dev",
		},
		Quote: QuoteConfig{
			Provider:   QuoteNone,
			MaxRetries: 3,
			Timeout:    3 * time.Second,
		},
		Kafka: KafkaConfig{Topic: "papertrade.ledger"},
		Cache: CacheConfig{Enabled: true, TTL: time.Minute},
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Environment: "dev",
		},
	}
}

// Load reads configuration from .env, the YAML file at path (optional) and PAPERTRADE_* env vars,
// in increasing priority. Without a path it looks for papertrade.yaml in . and ./config.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	} else {
		v.SetConfigName("papertrade")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read config")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.cors_origin", d.HTTP.CORSOrigin)
	v.SetDefault("http.tls_domains", d.HTTP.TLSDomains)
	v.SetDefault("http.cert_cache_dir", d.HTTP.CertCacheDir)
	v.SetDefault("http.server_url", d.HTTP.ServerURL)

	v.SetDefault("ledger.backend", d.Ledger.Backend)
	v.SetDefault("ledger.data_dir", d.Ledger.DataDir)
	v.SetDefault("ledger.seed_balance", d.Ledger.SeedBalance)
	v.SetDefault("ledger.store_timeout", d.Ledger.StoreTimeout)

	v.SetDefault("postgres.host", d.Postgres.Host)
	v.SetDefault("postgres.port", d.Postgres.Port)
	v.SetDefault("postgres.user", d.Postgres.User)
	v.SetDefault("postgres.password", d.Postgres.Password)
	v.SetDefault("postgres.dbname", d.Postgres.DBName)
	v.SetDefault("postgres.sslmode", d.Postgres.SSLMode)
	v.SetDefault("postgres.timezone", d.Postgres.TimeZone)
	v.SetDefault("postgres.max_open_conns", d.Postgres.MaxOpenConns)
	v.SetDefault("postgres.max_idle_conns", d.Postgres.MaxIdleConns)
	v.SetDefault("postgres.conn_max_lifetime", d.Postgres.ConnMaxLifetime)
	v.SetDefault("postgres.create_database", d.Postgres.CreateDatabase)
	v.SetDefault("postgres.ssm_password_param", d.Postgres.SSMPasswordParam)
	v.SetDefault("postgres.environment", d.Postgres.Environment)

	v.SetDefault("quote.provider", d.Quote.Provider)
	v.SetDefault("quote.tolerance_bps", d.Quote.ToleranceBps)
	v.SetDefault("quote.strict", d.Quote.Strict)
	v.SetDefault("quote.api_key", d.Quote.APIKey)
	v.SetDefault("quote.api_secret", d.Quote.APISecret)
	v.SetDefault("quote.base_url", d.Quote.BaseURL)
	v.SetDefault("quote.max_retries", d.Quote.MaxRetries)
	v.SetDefault("quote.timeout", d.Quote.Timeout)

	v.SetDefault("kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("kafka.topic", d.Kafka.Topic)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.ttl", d.Cache.TTL)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output_file", d.Log.OutputFile)
	v.SetDefault("log.environment", d.Log.Environment)
}

// Validate rejects values the service cannot start with.
func (c *Config) Validate() error {
	switch c.Ledger.Backend {
	case BackendMemory, BackendWAL, BackendFile, BackendPostgres:
	default:
		return errors.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}
	if _, err := c.SeedBalance(); err != nil {
		return err
	}
	if c.Ledger.StoreTimeout <= 0 {
		return errors.Errorf("ledger store timeout must be positive, got %s", c.Ledger.StoreTimeout)
	}

	switch c.Quote.Provider {
	case QuoteNone, QuoteStatic, QuoteAlpaca:
	default:
		return errors.Errorf("unknown quote provider %q", c.Quote.Provider)
	}
	if c.Quote.ToleranceBps < 0 {
		return errors.Errorf("quote tolerance must not be negative, got %d", c.Quote.ToleranceBps)
	}
	if _, err := c.StaticPrices(); err != nil {
		return err
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("kafka topic is required when brokers are set")
	}
	return nil
}

// SeedBalance parses the wallet seed balance.
func (c *Config) SeedBalance() (decimal.Decimal, error) {
	seed, err := decimal.NewFromString(c.Ledger.SeedBalance)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "incorrect 'ledger.seed_balance' %q", c.Ledger.SeedBalance)
	}
	if seed.IsNegative() {
		return decimal.Decimal{}, errors.Errorf("ledger seed balance must not be negative, got %s", seed)
	}
	return seed, nil
}

// StaticPrices parses quote.static_prices into decimals keyed by upper-case symbol.
func (c *Config) StaticPrices() (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(c.Quote.StaticPrices))
	for sym, raw := range c.Quote.StaticPrices {
		p, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "incorrect static price for %s", sym)
		}
		if !p.IsPositive() {
			return nil, errors.Errorf("static price for %s must be positive, got %s", sym, p)
		}
		out[strings.ToUpper(strings.TrimSpace(sym))] = p
	}
	return out, nil
}
