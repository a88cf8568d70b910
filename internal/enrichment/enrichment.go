// Package enrichment computes the semantic layer of the catalog: embedding
// vectors for listings and user preference texts. It runs out of band of the
// matching pass, which only ever consumes what is already attached.
package enrichment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tdalverme/umbral/internal/listing"
	"github.com/tdalverme/umbral/internal/logger"
	"github.com/tdalverme/umbral/internal/storage"
)

// Embedder turns a text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (listing.Embedding, error)
}

// Enricher drains the unenriched backlog, attaching full and vibe embeddings.
type Enricher struct {
	store    storage.ListingStore
	embedder Embedder
	logger   *zap.Logger
}

func NewEnricher(store storage.ListingStore, embedder Embedder, lg *zap.Logger) *Enricher {
	if named, ok := embedder.(interface{ Provider() (string, string) }); ok {
		provider, model := named.Provider()
		lg = logger.WithEmbeddingFields(lg, provider, model)
	} else if lg == nil {
		lg = zap.NewNop()
	}
	return &Enricher{store: store, embedder: embedder, logger: lg}
}

// Run enriches up to limit listings and reports how many succeeded. A listing
// whose embedding call fails is left unenriched for the next run; only store
// failures abort.
func (e *Enricher) Run(ctx context.Context, limit int) (int, error) {
	pending, err := e.store.Unenriched(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("collect unenriched listings: %w", err)
	}
	if len(pending) == 0 {
		e.logger.Info("enrichment backlog is empty")
		return 0, nil
	}

	e.logger.Info("enriching listings", zap.Int("pending", len(pending)))

	done := 0
	for _, l := range pending {
		if err := ctx.Err(); err != nil {
			return done, err
		}

		full, err := e.embedder.Embed(ctx, ListingText(l))
		if err != nil {
			e.logger.Warn("full embedding failed", zap.String("listing_id", l.ID), zap.Error(err))
			continue
		}

		// The vibe text exists only for analyzed listings. Without it the
		// vibe slot stays empty, so scoring and search fall back to the
		// full embedding and its stricter threshold.
		var vibe listing.Embedding
		if vibeText := VibeText(l); vibeText != "" {
			vibe, err = e.embedder.Embed(ctx, vibeText)
			if err != nil {
				e.logger.Warn("vibe embedding failed", zap.String("listing_id", l.ID), zap.Error(err))
				continue
			}
		}

		if err := e.store.AttachEmbeddings(ctx, l.ID, full, vibe); err != nil {
			return done, fmt.Errorf("attach embeddings for %s: %w", l.ID, err)
		}
		done++
	}

	e.logger.Info("enrichment run completed", zap.Int("enriched", done), zap.Int("failed", len(pending)-done))
	return done, nil
}
