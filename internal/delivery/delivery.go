// Package delivery is the boundary to the external message transport. The
// matching engine hands over ranked decisions only after winning the
// notification ledger write, so implementations must never retry in a way
// that re-sends without re-checking the ledger.
package delivery

import (
	"context"

	"go.uber.org/zap"

	"github.com/tdalverme/umbral/internal/listing"
	"github.com/tdalverme/umbral/internal/similarity"
	"github.com/tdalverme/umbral/internal/user"
	"github.com/tdalverme/umbral/internal/utils"
)

// Decision is one ranked notification decision for a (user, listing) pair.
type Decision struct {
	User    *user.User
	Listing *listing.Listing

	// Score is the similarity score that crossed the candidate threshold.
	Score float64
	Kind  similarity.Kind

	// WeightedScore and FinalScore come from the personalization layer and
	// are carried for analytics and transport display only.
	WeightedScore float64
	FinalScore    float64
}

// Delivery consumes decisions the engine has already recorded in the ledger.
type Delivery interface {
	Deliver(ctx context.Context, d *Decision) error
}

// LogDelivery writes decisions to the log instead of a chat transport.
type LogDelivery struct {
	logger *zap.Logger
}

func NewLogDelivery(logger *zap.Logger) *LogDelivery {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDelivery{logger: logger}
}

func (d *LogDelivery) Deliver(_ context.Context, decision *Decision) error {
	d.logger.Info("match decision",
		zap.String("user_id", decision.User.ID),
		zap.String("listing_id", decision.Listing.ID),
		zap.String("title", utils.TruncateForLog(decision.Listing.Title, 80)),
		zap.String("neighborhood", decision.Listing.Neighborhood),
		zap.Float64("price_usd", decision.Listing.PriceUSD),
		zap.Float64("score", decision.Score),
		zap.String("embedding_kind", string(decision.Kind)),
		zap.Float64("final_score", decision.FinalScore),
		zap.String("url", decision.Listing.URL),
	)
	return nil
}
