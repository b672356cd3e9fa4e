package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	_ "embed"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"gitlab.com/walletsweep/sweepnode/common"
)

//go:embed default.yaml
var defaultConfig []byte

// config is the global configuration, it should never be returned by reference.
var config Config

type Config struct {
	Scanner  Scanner                  `mapstructure:"scanner"`
	Cache    Cache                    `mapstructure:"cache"`
	Security Security                 `mapstructure:"security"`
	Batch    Batch                    `mapstructure:"batch"`
	Chains   []common.ChainDescriptor `mapstructure:"chains"`
}

type Scanner struct {
	ChainBatchSize   int           `mapstructure:"chain_batch_size"`
	EnrichBatchSize  int           `mapstructure:"enrich_batch_size"`
	EnrichBatchDelay time.Duration `mapstructure:"enrich_batch_delay"`
	FetchRetries     int           `mapstructure:"fetch_retries"`
	HTTPTimeout      time.Duration `mapstructure:"http_timeout"`
}

type Cache struct {
	TTL      time.Duration `mapstructure:"ttl"`
	PriceTTL time.Duration `mapstructure:"price_ttl"`
	RiskTTL  time.Duration `mapstructure:"risk_ttl"`
}

type Security struct {
	BaseURL string `mapstructure:"base_url"`
	// Retries counts additional attempts after the first, the default of 2
	// gives three attempts in total.
	Retries int           `mapstructure:"retries"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Batch struct {
	BundlerEndpoint string `mapstructure:"bundler_endpoint"`
	HiddenSetPath   string `mapstructure:"hidden_set_path"`
	HistoryLimit    int    `mapstructure:"history_limit"`
	// Routers maps a chain to the swap router that batch calls target.
	Routers map[string]string `mapstructure:"routers"`
}

// GetScanner returns the scanner configuration.
func GetScanner() Scanner {
	return config.Scanner
}

// GetCache returns the cache configuration.
func GetCache() Cache {
	return config.Cache
}

// GetSecurity returns the security service configuration.
func GetSecurity() Security {
	return config.Security
}

// GetBatch returns the batch engine configuration.
func GetBatch() Batch {
	return config.Batch
}

// GetChains returns the configured chain descriptor table.
func GetChains() []common.ChainDescriptor {
	out := make([]common.ChainDescriptor, len(config.Chains))
	copy(out, config.Chains)
	return out
}

// Init should be called at the beginning of execution to load base
// configuration. The defaults are loaded from default.yaml embedded in this
// package, then overridden by the corresponding environment variables.
func Init() {
	assert := func(err error) {
		if err != nil {
			log.Fatal().Err(err).Msg("failed to bind env")
		}
	}

	assert(viper.BindEnv("scanner.chain_batch_size", "SWEEP_CHAIN_BATCH_SIZE"))
	assert(viper.BindEnv("scanner.enrich_batch_size", "SWEEP_ENRICH_BATCH_SIZE"))
	assert(viper.BindEnv("scanner.enrich_batch_delay", "SWEEP_ENRICH_BATCH_DELAY"))
	assert(viper.BindEnv("scanner.fetch_retries", "SWEEP_FETCH_RETRIES"))
	assert(viper.BindEnv("scanner.http_timeout", "SWEEP_HTTP_TIMEOUT"))
	assert(viper.BindEnv("cache.ttl", "SWEEP_CACHE_TTL"))
	assert(viper.BindEnv("security.base_url", "SWEEP_SECURITY_HOST"))
	assert(viper.BindEnv("batch.bundler_endpoint", "SWEEP_BUNDLER_ENDPOINT"))
	assert(viper.BindEnv("batch.hidden_set_path", "SWEEP_HIDDEN_SET_PATH"))

	viper.SetConfigType("yaml")
	if err := viper.ReadConfig(bytes.NewBuffer(defaultConfig)); err != nil {
		log.Fatal().Err(err).Msg("failed to read default config")
	}
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatal().Err(err).Msg("failed to unmarshal config")
	}

	// viper lowercases map keys on unmarshal, re-key routers to the
	// canonical upper-case chain form
	routers := make(map[string]string, len(config.Batch.Routers))
	for chain, router := range config.Batch.Routers {
		routers[strings.ToUpper(chain)] = router
	}
	config.Batch.Routers = routers

	// per-chain RPC overrides, e.g. SWEEP_ETH_RPC_HOST
	for i, chain := range config.Chains {
		key := fmt.Sprintf("SWEEP_%s_RPC_HOST", strings.ToUpper(string(chain.Chain)))
		if host := os.Getenv(key); host != "" {
			config.Chains[i].RPCHost = host
		}
	}
}
