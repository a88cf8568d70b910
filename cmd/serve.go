package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tdalverme/umbral/internal/enrichment"
	"github.com/tdalverme/umbral/internal/httpapi"
	"github.com/tdalverme/umbral/internal/logger"
	"github.com/tdalverme/umbral/internal/similarity"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP query api",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("addr", "a", "", "listen address, overrides the config")
}

func serve(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	s, err := openStores(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening stores", zap.Error(err))
	}
	defer s.Close(logger)

	// Text search needs an embedder. The rest of the api works without one,
	// so missing credentials only degrade the surface.
	var embedder enrichment.Embedder
	if g, err := newEmbedder(ctx, config); err != nil {
		logger.Warn("text search disabled", zap.Error(err))
	} else {
		embedder = g
	}

	server, err := httpapi.NewServer(httpapi.Config{
		Listings: s.Listings,
		Users:    s.Users,
		Feedback: s.Feedback,
		Embedder: embedder,
		Thresholds: similarity.Thresholds{
			Full: config.Matching.FullThreshold,
			Vibe: config.Matching.VibeThreshold,
		},
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("building the http server", zap.Error(err))
	}

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = config.Serve.Addr
	}

	if err := server.Run(ctx, addr); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}

	logger.Info("server stopped")
}
