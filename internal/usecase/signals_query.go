package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pairspread/internal/domain/models"
	domrepo "pairspread/internal/domain/repository"
	"pairspread/pkg/cache"
	applogger "pairspread/pkg/logger"
)

var (
	ErrHistoryDisabled = errors.New("signal history is disabled")
	ErrInvalidQuery    = errors.New("invalid signal query")
)

const maxSignalsLimit = 10000

// SignalsQuery reads signal history with a short-lived cache in front of the store.
type SignalsQuery struct {
	store domrepo.SignalStore
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

// NewSignalsQuery creates the use case. store and c may be nil.
func NewSignalsQuery(store domrepo.SignalStore, c cache.Service, ttl time.Duration, l *applogger.Logger) *SignalsQuery {
	if l == nil {
		l = applogger.Nop()
	}
	return &SignalsQuery{store: store, cache: c, ttl: ttl, l: l}
}

type GetSignalsParams struct {
	Pair   string
	From   time.Time
	To     time.Time
	Signal *models.Signal
	Limit  int
}

type GetSignalsResult struct {
	Pair    string                `json:"pair"`
	From    time.Time             `json:"from"`
	To      time.Time             `json:"to"`
	Count   int                   `json:"count"`
	Signals []*models.SignalEvent `json:"signals"`
}

func (uc *SignalsQuery) GetSignals(ctx context.Context, p GetSignalsParams) (*GetSignalsResult, error) {
	if uc.store == nil {
		return nil, ErrHistoryDisabled
	}
	if p.Pair == "" {
		return nil, fmt.Errorf("%w: pair required", ErrInvalidQuery)
	}
	if !p.From.IsZero() && !p.To.IsZero() && p.From.After(p.To) {
		return nil, fmt.Errorf("%w: from must be <= to", ErrInvalidQuery)
	}
	if p.Limit <= 0 {
		p.Limit = 500
	}
	if p.Limit > maxSignalsLimit {
		p.Limit = maxSignalsLimit
	}

	sig := "any"
	if p.Signal != nil {
		sig = p.Signal.String()
	}
	key := cache.GenerateKeyWithParams("signals", p.Pair, p.From.Unix(), p.To.Unix(), sig, p.Limit)

	if uc.cache != nil {
		var cached GetSignalsResult
		if err := uc.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			uc.l.Warn("signals cache get failed", applogger.String("key", key), applogger.Error(err))
		}
	}

	events, err := uc.store.Query(ctx, models.SignalQuery{
		Pair:   p.Pair,
		From:   p.From,
		To:     p.To,
		Signal: p.Signal,
		Limit:  p.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("get signals: %w", err)
	}

	res := &GetSignalsResult{
		Pair:    p.Pair,
		From:    p.From,
		To:      p.To,
		Count:   len(events),
		Signals: events,
	}
	if uc.cache != nil && uc.ttl > 0 {
		if err := uc.cache.Set(ctx, key, res, uc.ttl); err != nil {
			uc.l.Warn("signals cache set failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return res, nil
}
