package repository

import (
	"context"
	"errors"
	"time"

	"pairspread/internal/domain/models"
	domrepo "pairspread/internal/domain/repository"
	"pairspread/pkg/cache"
)

const snapshotKeyPrefix = "snapshot"

// SnapshotCache stores the latest estimator snapshot per pair in a cache.Service.
type SnapshotCache struct {
	c   cache.Service
	ttl time.Duration
}

func NewSnapshotCache(c cache.Service, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{c: c, ttl: ttl}
}

func snapshotKey(pair string) string { return cache.GenerateKey(snapshotKeyPrefix, pair) }

func (s *SnapshotCache) Put(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil {
		return nil
	}
	return s.c.Set(ctx, snapshotKey(snap.Pair), snap, s.ttl)
}

// Get returns nil without error on a cache miss.
func (s *SnapshotCache) Get(ctx context.Context, pair string) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := s.c.Get(ctx, snapshotKey(pair), &snap); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &snap, nil
}

// GetMany returns the cached snapshots keyed by pair. Missing pairs are absent from the map.
func (s *SnapshotCache) GetMany(ctx context.Context, pairs []string) (map[string]*models.Snapshot, error) {
	keys := make([]string, len(pairs))
	byKey := make(map[string]string, len(pairs))
	for i, p := range pairs {
		keys[i] = snapshotKey(p)
		byKey[keys[i]] = p
	}
	raw, err := cache.MGetTyped[models.Snapshot](ctx, s.c, keys...)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*models.Snapshot, len(raw))
	for k, snap := range raw {
		snap := snap
		out[byKey[k]] = &snap
	}
	return out, nil
}

var _ domrepo.SnapshotCache = (*SnapshotCache)(nil)
