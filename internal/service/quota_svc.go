package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/socio-dl/socio-go/internal/metrics"
	"github.com/socio-dl/socio-go/internal/model"
)

// BucketTTL is the lifetime of a daily counter key, refreshed on every increment.
const BucketTTL = 24 * time.Hour

// QuotaService enforces the per-identity daily download cap.
//
// It increments first and compares after. Two concurrent requests can never
// both observe a value below the cap, because Redis serializes INCR. The
// stored counter may drift above max by the number of rejected requests; no
// decision handed to a caller ever does.
type QuotaService struct {
	store  QuotaStore
	max    int64
	loc    *time.Location
	logger zerolog.Logger
	now    func() time.Time
}

func NewQuotaService(store QuotaStore, max int64, loc *time.Location, logger zerolog.Logger) *QuotaService {
	if loc == nil {
		loc = time.UTC
	}
	return &QuotaService{
		store:  store,
		max:    max,
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}
}

// Max is the configured daily cap.
func (s *QuotaService) Max() int64 {
	return s.max
}

// DailyKey builds the bucket key for identity on the calendar day of t.
func DailyKey(identity string, t time.Time) string {
	return fmt.Sprintf("daily:%s:%s", identity, t.Format("20060102"))
}

// NextReset returns the next calendar-day boundary after now in loc and the
// whole number of hours until it, rounded up.
func NextReset(now time.Time, loc *time.Location) (time.Time, int) {
	local := now.In(loc)
	y, m, d := local.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	hours := int(math.Ceil(next.Sub(local).Hours()))
	return next, hours
}

// CheckAndConsume spends one download for identity. A rejected request
// returns the decision together with a *QuotaExceededError. Backend failures
// never reach the caller: the request is allowed.
func (s *QuotaService) CheckAndConsume(ctx context.Context, identity string) (model.QuotaDecision, error) {
	now := s.now().In(s.loc)
	key := DailyKey(identity, now)
	resetAt, resetIn := NextReset(now, s.loc)

	used, err := s.store.Increment(ctx, key)
	if err != nil {
		return s.failOpen(err, "check_and_consume", resetAt, resetIn), nil
	}

	if err := s.store.SetTTL(ctx, key, BucketTTL); err != nil {
		// The slot is already counted; enforce on it and let the next call retry the TTL.
		s.logger.Warn().Err(err).Str("key", key).Msg("quota: failed to refresh bucket ttl")
	}

	if used > s.max {
		metrics.QuotaDecisions.WithLabelValues("rejected").Inc()
		d := model.QuotaDecision{
			Allowed:      false,
			Used:         s.max,
			Remaining:    0,
			ResetAt:      resetAt,
			ResetInHours: resetIn,
		}
		return d, &QuotaExceededError{Decision: d, Max: s.max}
	}

	metrics.QuotaDecisions.WithLabelValues("allowed").Inc()
	return model.QuotaDecision{
		Allowed:      true,
		Used:         used,
		Remaining:    s.max - used,
		ResetAt:      resetAt,
		ResetInHours: resetIn,
	}, nil
}

// Usage reports the current bucket without consuming from it.
func (s *QuotaService) Usage(ctx context.Context, identity string) model.QuotaDecision {
	now := s.now().In(s.loc)
	resetAt, resetIn := NextReset(now, s.loc)

	used, err := s.store.Get(ctx, DailyKey(identity, now))
	if err != nil {
		return s.failOpen(err, "usage", resetAt, resetIn)
	}

	used = min(used, s.max)
	return model.QuotaDecision{
		Allowed:      used < s.max,
		Used:         used,
		Remaining:    s.max - used,
		ResetAt:      resetAt,
		ResetInHours: resetIn,
	}
}

func (s *QuotaService) failOpen(err error, op string, resetAt time.Time, resetIn int) model.QuotaDecision {
	evt := s.logger.Warn()
	if !errors.Is(err, ErrQuotaStoreUnavailable) {
		evt = s.logger.Error()
	}
	evt.Err(err).Str("op", op).Msg("quota: backend failure, failing open")
	metrics.QuotaDecisions.WithLabelValues("fail_open").Inc()

	return model.QuotaDecision{
		Allowed:      true,
		Used:         0,
		Remaining:    s.max,
		ResetAt:      resetAt,
		ResetInHours: resetIn,
	}
}
