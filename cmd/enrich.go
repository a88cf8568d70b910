package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tdalverme/umbral/internal/enrichment"
	"github.com/tdalverme/umbral/internal/logger"
	"github.com/tdalverme/umbral/internal/secrets"
)

const defaultEnrichBatchLimit = 100

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Compute embeddings for listings that do not have them yet",
	Run: func(cmd *cobra.Command, _ []string) {
		enrich(cmd)
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)

	enrichCmd.Flags().IntP("limit", "l", 0, "max listings to enrich in this run")
}

func enrich(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	embedder, err := newEmbedder(ctx, config)
	if err != nil {
		logger.Fatal(
			"building the gemini embedder",
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY_FILE environment variable or the 'enrichment.gemini' section in the configuration file"),
		)
	}

	s, err := openStores(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening stores", zap.Error(err))
	}
	defer s.Close(logger)

	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		limit = config.Enrichment.BatchLimit
	}
	if limit <= 0 {
		limit = defaultEnrichBatchLimit
	}

	enricher := enrichment.NewEnricher(s.Listings, embedder, logger)
	done, err := enricher.Run(ctx, limit)
	if err != nil {
		logger.Fatal("enrichment run failed", zap.Int("enriched", done), zap.Error(err))
	}
}

// newEmbedder resolves the gemini credentials and builds the embedder.
func newEmbedder(ctx context.Context, config *Config) (*enrichment.GeminiEmbedder, error) {
	gemini := config.Enrichment.Gemini
	if gemini == nil {
		gemini = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: gemini.APIKey,
		File:  gemini.APIKeyFile,
	})
	if err != nil {
		return nil, err
	}

	return enrichment.NewGeminiEmbedder(ctx, apiKey, gemini.Model)
}
