package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ServerConfig is the YAML-file shape for the marketplace server. Every
// field has a flag/env counterpart; the file is optional and flags win.
type ServerConfig struct {
	Listen   string `yaml:"listen"`
	DBPath   string `yaml:"db_path"`
	BlobsDir string `yaml:"blobs_dir"`

	Fees FeeConfig `yaml:"fees"`
	Log  LogConfig `yaml:"log"`
}

// FeeConfig sets the listing fee policy seeded on first open.
type FeeConfig struct {
	Collector  string `yaml:"collector"`
	ListingFee string `yaml:"listing_fee"`
	// When true, the fee collected at listing time is held back and
	// forwarded to the collector only when the item sells.
	ReForwardFeeOnSale bool `yaml:"re_forward_fee_on_sale"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	OutputFile string `yaml:"output_file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

func Default() ServerConfig {
	return ServerConfig{
		Listen:   ":8080",
		DBPath:   "data/market.db",
		BlobsDir: "data/blobs",
		Fees: FeeConfig{
			ListingFee:         "0.025",
			ReForwardFeeOnSale: true,
		},
		Log: LogConfig{
			Level:      "info",
			OutputFile: "logs/server.log",
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     14,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error so
// the server can run from flags alone.
func Load(path string) (ServerConfig, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// ListingFeeDecimal parses the configured fee amount.
func (f FeeConfig) ListingFeeDecimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(f.ListingFee))
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "invalid listing_fee %q", f.ListingFee)
	}
	return d, nil
}
