package cmd

import (
	"errors"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "umbral"
)

type Config struct {
	Storage    *StorageConfig    `mapstructure:"storage"`
	Matching   *MatchingConfig   `mapstructure:"matching"`
	Enrichment *EnrichmentConfig `mapstructure:"enrichment"`
	Serve      *ServeConfig      `mapstructure:"serve"`
	Exchange   *ExchangeConfig   `mapstructure:"exchange"`
}

type StorageConfig struct {
	// Backend selects the primary store: sqlite (default) or postgres.
	Backend     string `mapstructure:"backend"`
	SQLitePath  string `mapstructure:"sqlite-path"`
	PostgresURL string `mapstructure:"postgres-url"`
	// RedisURL, when set, layers a shared claim set over the notification
	// ledger so overlapping passes on different hosts stay at-most-once.
	RedisURL string `mapstructure:"redis-url"`
}

type MatchingConfig struct {
	FullThreshold float64 `mapstructure:"full-threshold"`
	VibeThreshold float64 `mapstructure:"vibe-threshold"`
	PerUserLimit  int     `mapstructure:"per-user-limit"`
	Workers       int     `mapstructure:"workers"`
}

type EnrichmentConfig struct {
	BatchLimit int           `mapstructure:"batch-limit"`
	Gemini     *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type ServeConfig struct {
	Addr string `mapstructure:"addr"`
}

type ExchangeConfig struct {
	// ARSPerUSD converts peso prices to the canonical USD amounts at ingest.
	ARSPerUSD float64 `mapstructure:"ars-per-usd"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "umbral is a proactive property matcher: it ingests listings and notifies users about matching ones at most once",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("enrichment.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is umbral.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// Every command works with built-in defaults, so a missing config file
	// is fine. A malformed one is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}

	if config.Storage == nil {
		config.Storage = &StorageConfig{}
	}
	if config.Storage.Backend == "" {
		config.Storage.Backend = "sqlite"
	}
	if config.Storage.SQLitePath == "" {
		config.Storage.SQLitePath = app + ".db"
	}
	if config.Matching == nil {
		config.Matching = &MatchingConfig{}
	}
	if config.Enrichment == nil {
		config.Enrichment = &EnrichmentConfig{}
	}
	if config.Serve == nil {
		config.Serve = &ServeConfig{}
	}
	if config.Serve.Addr == "" {
		config.Serve.Addr = ":8080"
	}
	if config.Exchange == nil {
		config.Exchange = &ExchangeConfig{}
	}

	return config, nil
}
