package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tdalverme/umbral/internal/listing"
	"github.com/tdalverme/umbral/internal/logger"
	"github.com/tdalverme/umbral/internal/storage"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest scraped listings from a JSON file into the catalog",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ingest(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func ingest(_ *cobra.Command, path string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	listings, err := listing.LoadFile(path, config.Exchange.ARSPerUSD)
	if err != nil {
		logger.Fatal("loading listings", zap.String("file", path), zap.Error(err))
	}

	logger.Info("loaded listings", zap.String("file", path), zap.Int("count", len(listings)))

	s, err := openStores(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening stores", zap.Error(err))
	}
	defer s.Close(logger)

	var created, updated, skipped, failed int
	for _, l := range listings {
		result, err := s.Listings.Upsert(ctx, l)
		if err != nil {
			logger.Warn("upsert failed", zap.String("listing_id", l.ID), zap.Error(err))
			failed++
			continue
		}
		switch result {
		case storage.UpsertCreated:
			created++
		case storage.UpsertUpdated:
			updated++
		case storage.UpsertSkipped:
			skipped++
		}
	}

	logger.Info("ingestion completed",
		zap.Int("created", created),
		zap.Int("updated", updated),
		zap.Int("unchanged", skipped),
		zap.Int("failed", failed),
	)
}
