// Package config loads process-wide configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	log "github.com/sirupsen/logrus"
)

// Config holds every setting the campaign core reads at startup.
type Config struct {
	// Network selects devnet, testnet or mainnet. Anything unrecognized means mainnet.
	Network string `env:"STACKS_NETWORK" envDefault:"mainnet"`
	// APIURL overrides the default Stacks API endpoint for the selected network.
	APIURL string `env:"STACKS_API_URL"`
	// WSURL enables the block subscription when set.
	WSURL string `env:"STACKS_WS_URL"`

	FundraisingAddress string `env:"FUNDRAISING_CONTRACT_ADDRESS"`
	FundraisingName    string `env:"FUNDRAISING_CONTRACT_NAME" envDefault:"fundraising"`
	SBTCAddress        string `env:"SBTC_CONTRACT_ADDRESS"`
	SBTCName           string `env:"SBTC_CONTRACT_NAME" envDefault:"sbtc-token"`
	SBTCAsset          string `env:"SBTC_ASSET_NAME" envDefault:"sBTC"`

	PollInterval     time.Duration `env:"POLL_INTERVAL" envDefault:"10s"`
	PriceInterval    time.Duration `env:"PRICE_POLL_INTERVAL" envDefault:"60s"`
	PriceFeedURL     string        `env:"PRICE_FEED_URL" envDefault:"https://api.coingecko.com/api/v3"`
	PriceFeedAPIKey  string        `env:"PRICE_FEED_API_KEY"`
	StaticSTXPrice   float64       `env:"STATIC_STX_USD"`
	StaticBTCPrice   float64       `env:"STATIC_BTC_USD"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	SignTimeout      time.Duration `env:"SIGN_TIMEOUT" envDefault:"10m"`
	DevnetWallets    []string      `env:"DEVNET_WALLETS" envSeparator:","`
	DevnetFee        uint64        `env:"DEVNET_TX_FEE" envDefault:"10000"`
	HTTPAddr         string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	MetricsNamespace string        `env:"METRICS_NAMESPACE" envDefault:"fundraising"`
	AllowedWSOrigins []string      `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
	// DownloadURL is handed out to addresses with a purchase record.
	DownloadURL string `env:"DOWNLOAD_URL"`
}

// Load reads an optional .env file and then parses the environment into a Config.
func Load() (*Config, error) {
	LoadEnvFile(".env")

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// StaticPrices reports whether both static prices are configured.
func (c *Config) StaticPrices() bool {
	return c.StaticSTXPrice > 0 && c.StaticBTCPrice > 0
}

// SetupLogging applies the configured log level to the standard logrus logger.
func (c *Config) SetupLogging() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.Warnf("invalid log level %q, using info", c.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// LoadEnvFile loads environment variables from path if it exists.
// Variables already present in the environment are not overridden.
func LoadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"`)

		if _, ok := os.LookupEnv(key); !ok {
			os.Setenv(key, value)
		}
	}
}
