package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

type pollConfig struct {
	Interval            time.Duration
	MaxInterval         time.Duration
	MaxWait             time.Duration
	TransportErrorLimit int
}

type pollOutcome int

const (
	pollCompleted pollOutcome = iota
	pollFailed
	pollUnavailable
	pollTimedOut
)

type pollResult struct {
	outcome     pollOutcome
	artifactRef string
	reason      string
}

// pollScheduler drives repeated FetchStatus calls for one provider job until a
// terminal business status arrives or the wall-clock deadline elapses. It
// absorbs isolated transport errors; only a run of consecutive ones (the
// provider is genuinely unreachable) escalates to pollUnavailable.
type pollScheduler struct {
	client  domain.ProviderClient
	cfg     pollConfig
	logger  zerolog.Logger
	observe func(attempt int, at time.Time)
}

func (s *pollScheduler) run(ctx context.Context, providerJobID string) pollResult {
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	maxInterval := s.cfg.MaxInterval
	if maxInterval < interval {
		maxInterval = interval
	}
	limit := s.cfg.TransportErrorLimit
	if limit <= 0 {
		limit = defaultTransportErrorLimit
	}
	maxWait := s.cfg.MaxWait
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}

	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	transportErrs := 0
	attempt := 0
	for {
		attempt++
		status, err := s.client.FetchStatus(ctx, providerJobID)
		if s.observe != nil {
			s.observe(attempt, time.Now())
		}
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return pollResult{outcome: pollTimedOut}
			}
			transportErrs++
			s.logger.Warn().Err(err).
				Str("provider_job_id", providerJobID).
				Int("consecutive_errors", transportErrs).
				Msg("poll: transport error")
			if transportErrs >= limit {
				return pollResult{outcome: pollUnavailable, reason: err.Error()}
			}
		case status.State == domain.ProviderStateCompleted:
			return pollResult{outcome: pollCompleted, artifactRef: status.ArtifactRef}
		case status.State == domain.ProviderStateFailed:
			// Business rejection, never retried.
			return pollResult{outcome: pollFailed, reason: status.Reason}
		default:
			transportErrs = 0
		}

		select {
		case <-ctx.Done():
			return pollResult{outcome: pollTimedOut}
		case <-time.After(interval):
		}
		interval *= 2
		if interval > maxInterval {
			interval = maxInterval
		}
	}
}
