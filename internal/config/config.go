package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Server     ServerConfig     `mapstructure:"server"`
	Chain      ChainConfig      `mapstructure:"chain"`
	Payments   PaymentsConfig   `mapstructure:"payments"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type ChainConfig struct {
	ID              string `mapstructure:"id"`
	Name            string `mapstructure:"name"`
	RPCURL          string `mapstructure:"rpc_url"`
	ChainID         uint64 `mapstructure:"chain_id"`
	RegistryAddress string `mapstructure:"registry_address"`
	OracleAddress   string `mapstructure:"oracle_address"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
}

type PaymentsConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TokenAddress   string `mapstructure:"token_address"`
	RequestTimeout int    `mapstructure:"request_timeout"`
}

type SettlementConfig struct {
	// MinShare is the guaranteed fraction of the hourly rate paid to
	// every booked device; the remainder is split by view share.
	MinShare        float64 `mapstructure:"min_share"`
	AmountScale     int32   `mapstructure:"amount_scale"`
	TokenDecimals   int32   `mapstructure:"token_decimals"`
	MaxChunkSeconds int64   `mapstructure:"max_chunk_seconds"`
	CampaignWorkers int     `mapstructure:"campaign_workers"`
	DeviceWorkers   int     `mapstructure:"device_workers"`
	Cron            string  `mapstructure:"cron"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Settlement.MinShare <= 0 {
		c.Settlement.MinShare = 0.10
	}
	if c.Settlement.AmountScale <= 0 {
		c.Settlement.AmountScale = 6
	}
	if c.Settlement.TokenDecimals <= 0 {
		c.Settlement.TokenDecimals = 6
	}
	if c.Settlement.MaxChunkSeconds <= 0 {
		c.Settlement.MaxChunkSeconds = 3600
	}
	if c.Settlement.CampaignWorkers <= 0 {
		c.Settlement.CampaignWorkers = 4
	}
	if c.Settlement.DeviceWorkers <= 0 {
		c.Settlement.DeviceWorkers = 8
	}
	if c.Settlement.Cron == "" {
		c.Settlement.Cron = "0 0 * * * *"
	}
	if c.Chain.RequestTimeout <= 0 {
		c.Chain.RequestTimeout = 15
	}
	if c.Payments.RequestTimeout <= 0 {
		c.Payments.RequestTimeout = 30
	}
}
