// Package redisledger layers a shared claim set on top of a durable
// notification ledger. When several engine instances run overlapping passes
// against per-instance databases, SETNX on a shared key serializes the
// read-then-write per (user, listing) pair; the inner ledger stays the
// durable source of truth.
package redisledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/tdalverme/umbral/internal/storage"
)

type Ledger struct {
	rdb   *redis.Client
	inner storage.NotificationLedger
}

// Open parses redisURL, verifies connectivity and wraps inner.
func Open(ctx context.Context, redisURL string, inner storage.NotificationLedger) (*Ledger, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: redis ping: %v", storage.ErrUnavailable, err)
	}

	return &Ledger{rdb: rdb, inner: inner}, nil
}

func (l *Ledger) Close() error { return l.rdb.Close() }

func key(userID, listingID string) string {
	return "umbral:notified:" + userID + ":" + listingID
}

// AlreadyNotified consults the shared claim set first and falls back to the
// durable ledger, backfilling the claim on a hit.
func (l *Ledger) AlreadyNotified(ctx context.Context, userID, listingID string) (bool, error) {
	n, err := l.rdb.Exists(ctx, key(userID, listingID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: redis exists: %v", storage.ErrUnavailable, err)
	}
	if n > 0 {
		return true, nil
	}

	notified, err := l.inner.AlreadyNotified(ctx, userID, listingID)
	if err != nil {
		return false, err
	}
	if notified {
		// Keys carry no TTL: at-most-once has no expiry.
		if err := l.rdb.SetNX(ctx, key(userID, listingID), 1, 0).Err(); err != nil {
			return true, fmt.Errorf("%w: redis setnx backfill: %v", storage.ErrUnavailable, err)
		}
	}
	return notified, nil
}

// Record claims the pair via SETNX, then writes through to the durable
// ledger. If the durable write fails the claim is released so a later pass
// can retry.
func (l *Ledger) Record(ctx context.Context, userID, listingID string, score float64) error {
	claimed, err := l.rdb.SetNX(ctx, key(userID, listingID), 1, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: redis setnx: %v", storage.ErrUnavailable, err)
	}
	if !claimed {
		return storage.ErrAlreadyRecorded
	}

	if err := l.inner.Record(ctx, userID, listingID, score); err != nil {
		if errors.Is(err, storage.ErrAlreadyRecorded) {
			return err
		}
		if delErr := l.rdb.Del(ctx, key(userID, listingID)).Err(); delErr != nil {
			return fmt.Errorf("durable record failed (%v) and claim release failed: %w", err, delErr)
		}
		return err
	}
	return nil
}
