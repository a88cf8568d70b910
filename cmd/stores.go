package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tdalverme/umbral/internal/storage"
	"github.com/tdalverme/umbral/internal/storage/postgres"
	"github.com/tdalverme/umbral/internal/storage/redisledger"
	"github.com/tdalverme/umbral/internal/storage/sqlite"
)

// stores bundles the opened persistence backends for one command invocation.
type stores struct {
	Listings storage.ListingStore
	Users    storage.UserStore
	Ledger   storage.NotificationLedger
	Feedback storage.FeedbackLedger

	closers []func() error
}

func (s *stores) Close(logger *zap.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}
}

// openStores builds the configured backend and, when a redis url is set,
// wraps the notification ledger with the shared claim set.
func openStores(ctx context.Context, config *Config, logger *zap.Logger) (*stores, error) {
	s := &stores{}

	switch config.Storage.Backend {
	case "sqlite":
		store, err := sqlite.Open(ctx, config.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		logger.Debug("opened sqlite store", zap.String("path", config.Storage.SQLitePath))
		s.Listings, s.Users, s.Ledger, s.Feedback = store, store, store, store
		s.closers = append(s.closers, store.Close)
	case "postgres":
		if config.Storage.PostgresURL == "" {
			return nil, fmt.Errorf("storage.postgres-url is required for the postgres backend")
		}
		store, err := postgres.Open(ctx, config.Storage.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		logger.Debug("opened postgres store")
		s.Listings, s.Users, s.Ledger, s.Feedback = store, store, store, store
		s.closers = append(s.closers, func() error { store.Close(); return nil })
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", config.Storage.Backend)
	}

	if config.Storage.RedisURL != "" {
		ledger, err := redisledger.Open(ctx, config.Storage.RedisURL, s.Ledger)
		if err != nil {
			s.Close(logger)
			return nil, fmt.Errorf("open redis ledger: %w", err)
		}
		logger.Debug("notification ledger claims go through redis")
		s.Ledger = ledger
		s.closers = append(s.closers, ledger.Close)
	}

	return s, nil
}
