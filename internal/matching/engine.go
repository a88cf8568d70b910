// Package matching orchestrates a pass: collect matchable users, gate
// listings through the hard filters, score survivors, deduplicate against the
// notification ledger and emit ranked decisions. A pass keeps no state of its
// own; everything durable lives in the ledger, so passes may run on any
// schedule, including concurrently.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/tdalverme/umbral/internal/delivery"
	"github.com/tdalverme/umbral/internal/filtering"
	"github.com/tdalverme/umbral/internal/listing"
	"github.com/tdalverme/umbral/internal/similarity"
	"github.com/tdalverme/umbral/internal/storage"
	"github.com/tdalverme/umbral/internal/user"
)

const (
	defaultPerUserLimit = 5
	defaultWorkers      = 4
)

// Deps aggregates the engine's collaborators. The engine reads listings and
// users, and is the only writer of the notification ledger.
type Deps struct {
	Listings storage.ListingStore
	Users    storage.UserStore
	Ledger   storage.NotificationLedger
	Delivery delivery.Delivery
	Logger   *zap.Logger
}

// Options tune one engine instance. Zero values fall back to defaults.
type Options struct {
	Thresholds similarity.Thresholds
	// PerUserLimit caps decisions per user per pass.
	PerUserLimit int
	// Workers is the fan-out across users. Filtering and scoring are pure,
	// so any degree of parallelism is safe; the ledger serializes pairs.
	Workers int
}

// Stats summarizes one pass.
type Stats struct {
	UsersProcessed int
	UsersSkipped   int
	PairsSkipped   int
	MatchesFound   int
	Notified       int
	Errors         int
}

type Engine struct {
	deps         Deps
	thresholds   similarity.Thresholds
	perUserLimit int
	workers      int
	logger       *zap.Logger
}

func New(deps Deps, opts Options) (*Engine, error) {
	if deps.Listings == nil || deps.Users == nil || deps.Ledger == nil {
		return nil, errors.New("listing store, user store and notification ledger are required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	thresholds := opts.Thresholds
	if thresholds.Full == 0 && thresholds.Vibe == 0 {
		thresholds = similarity.DefaultThresholds()
	}

	perUserLimit := opts.PerUserLimit
	if perUserLimit <= 0 {
		perUserLimit = defaultPerUserLimit
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	return &Engine{
		deps:         deps,
		thresholds:   thresholds,
		perUserLimit: perUserLimit,
		workers:      workers,
		logger:       deps.Logger,
	}, nil
}

// RunPass executes one full matching pass: every decision that wins its
// ledger write is handed to Delivery. Per-user failures are isolated; only
// store-level failures abort the pass, which is then safely re-runnable.
func (e *Engine) RunPass(ctx context.Context) (*Stats, error) {
	return e.run(ctx, false, nil)
}

// Plan evaluates the same pass without writing the ledger or delivering,
// collecting the decisions it would emit. Pairs already in the ledger are
// still excluded. Used for dry runs and operator confirmation.
func (e *Engine) Plan(ctx context.Context) (*Stats, []*delivery.Decision, error) {
	var (
		mu        sync.Mutex
		decisions []*delivery.Decision
	)
	stats, err := e.run(ctx, true, func(d *delivery.Decision) {
		mu.Lock()
		decisions = append(decisions, d)
		mu.Unlock()
	})
	if err != nil {
		return nil, nil, err
	}

	sort.SliceStable(decisions, func(i, j int) bool {
		if decisions[i].Score != decisions[j].Score {
			return decisions[i].Score > decisions[j].Score
		}
		return decisions[i].Listing.IngestedAt.After(decisions[j].Listing.IngestedAt)
	})
	return stats, decisions, nil
}

func (e *Engine) run(ctx context.Context, dry bool, collect func(*delivery.Decision)) (*Stats, error) {
	users, err := e.deps.Users.Matchable(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect matchable users: %w", err)
	}
	if len(users) == 0 {
		e.logger.Info("no matchable users, nothing to do")
		return &Stats{}, nil
	}

	listings, err := e.deps.Listings.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect listings: %w", err)
	}
	if len(listings) == 0 {
		e.logger.Info("empty catalog, nothing to do")
		return &Stats{}, nil
	}

	e.logger.Info("starting matching pass",
		zap.Int("users", len(users)),
		zap.Int("listings", len(listings)),
		zap.Bool("dry_run", dry),
	)

	passCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		stats   Stats
		passErr error
		mu      sync.Mutex
		wg      sync.WaitGroup
	)

	work := make(chan *user.User)
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range work {
				userStats, err := e.matchUser(passCtx, u, listings, dry, collect)
				mu.Lock()
				stats.UsersProcessed += userStats.UsersProcessed
				stats.UsersSkipped += userStats.UsersSkipped
				stats.PairsSkipped += userStats.PairsSkipped
				stats.MatchesFound += userStats.MatchesFound
				stats.Notified += userStats.Notified
				stats.Errors += userStats.Errors
				if err != nil && passErr == nil {
					passErr = err
					cancel()
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, u := range users {
		select {
		case <-passCtx.Done():
			break feed
		case work <- u:
		}
	}
	close(work)
	wg.Wait()

	if passErr != nil {
		// Completed ledger writes stay durable; a re-run skips them.
		e.logger.Error("matching pass aborted", zap.Error(passErr))
		return &stats, passErr
	}
	if err := ctx.Err(); err != nil {
		// Completed ledger writes stay durable; the next pass skips them.
		e.logger.Warn("matching pass cancelled", zap.Error(err))
		return &stats, err
	}

	e.logger.Info("matching pass completed",
		zap.Int("users_processed", stats.UsersProcessed),
		zap.Int("users_skipped", stats.UsersSkipped),
		zap.Int("pairs_skipped", stats.PairsSkipped),
		zap.Int("matches_found", stats.MatchesFound),
		zap.Int("notified", stats.Notified),
		zap.Int("errors", stats.Errors),
	)
	return &stats, nil
}

// matchUser runs filter, score, dedup and emit for one user. Failures are
// contained here so one user can never abort the pass for the others; the
// single exception is a ledger backend reporting ErrUnavailable, which the
// caller must treat as fatal for the whole pass.
func (e *Engine) matchUser(ctx context.Context, u *user.User, all []*listing.Listing, dry bool, collect func(*delivery.Decision)) (Stats, error) {
	var stats Stats
	logger := e.logger.With(zap.String("user_id", u.ID))

	if err := u.HardFilters.Validate(); err != nil {
		logger.Warn("skipping user with malformed hard filters", zap.Error(err))
		stats.UsersSkipped++
		return stats, nil
	}

	// No ideal description was ever supplied: semantic matching is undefined
	// for this user, so proactive passes skip them entirely. Hard-filter-only
	// browsing stays available on the query surface.
	if !u.HasPreferenceVector() {
		logger.Debug("skipping user without preference vector")
		stats.UsersSkipped++
		return stats, nil
	}

	eligible, _ := filtering.Apply(listing.NewCollection(all), &u.HardFilters, logger)

	candidates := make([]*delivery.Decision, 0)
	for _, l := range eligible.Items {
		if ctx.Err() != nil {
			return stats, nil
		}

		notified, err := e.deps.Ledger.AlreadyNotified(ctx, u.ID, l.ID)
		if err != nil {
			// An unreachable ledger fails the whole pass; the pass is
			// re-runnable once the backend is back.
			if errors.Is(err, storage.ErrUnavailable) {
				return stats, fmt.Errorf("ledger read for user %s: %w", u.ID, err)
			}
			logger.Warn("ledger read failed", zap.String("listing_id", l.ID), zap.Error(err))
			stats.Errors++
			continue
		}
		if notified {
			continue
		}

		result, err := similarity.Score(l, u)
		if err != nil {
			if errors.Is(err, similarity.ErrMissingEmbedding) {
				// Enrichment still pending; the pair stays eligible for
				// later passes.
				stats.PairsSkipped++
				continue
			}
			logger.Warn("scoring failed", zap.String("listing_id", l.ID), zap.Error(err))
			stats.Errors++
			continue
		}

		if !result.Candidate(e.thresholds) {
			continue
		}

		weighted := WeightedScore(l.Scores, u.SoftPreferences)
		candidates = append(candidates, &delivery.Decision{
			User:          u,
			Listing:       l,
			Score:         result.Score,
			Kind:          result.Kind,
			WeightedScore: weighted,
			FinalScore:    FinalScore(result.Score, weighted),
		})
	}

	stats.UsersProcessed++
	stats.MatchesFound += len(candidates)
	if len(candidates) == 0 {
		return stats, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Listing.IngestedAt.After(candidates[j].Listing.IngestedAt)
	})
	if len(candidates) > e.perUserLimit {
		candidates = candidates[:e.perUserLimit]
	}

	for _, d := range candidates {
		if ctx.Err() != nil {
			return stats, nil
		}

		if dry {
			if collect != nil {
				collect(d)
			}
			continue
		}

		// Record first: only the attempt that wins the ledger write may
		// deliver, even across overlapping passes.
		err := e.deps.Ledger.Record(ctx, d.User.ID, d.Listing.ID, d.Score)
		if errors.Is(err, storage.ErrAlreadyRecorded) {
			logger.Debug("pair already recorded", zap.String("listing_id", d.Listing.ID))
			continue
		}
		if err != nil {
			if errors.Is(err, storage.ErrUnavailable) {
				return stats, fmt.Errorf("ledger write for user %s: %w", u.ID, err)
			}
			logger.Warn("ledger write failed", zap.String("listing_id", d.Listing.ID), zap.Error(err))
			stats.Errors++
			continue
		}

		stats.Notified++
		if collect != nil {
			collect(d)
		}
		if e.deps.Delivery == nil {
			continue
		}
		if err := e.deps.Delivery.Deliver(ctx, d); err != nil {
			// The record stands: at-most-once beats at-least-once here.
			logger.Warn("delivery failed after ledger write",
				zap.String("listing_id", d.Listing.ID),
				zap.Error(err),
			)
			stats.Errors++
		}
	}

	return stats, nil
}
