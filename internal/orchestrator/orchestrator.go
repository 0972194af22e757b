package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/domain"
)

const (
	defaultPollInterval        = 2 * time.Second
	defaultMaxPollInterval     = 30 * time.Second
	defaultMaxWait             = 5 * time.Minute
	defaultTransportErrorLimit = 3
	defaultHandleTTL           = time.Hour
	sweepEvery                 = time.Minute
)

// Config carries orchestration defaults; zero values fall back to the package
// defaults. Per-request PollInterval/MaxWait override the configured defaults.
type Config struct {
	DefaultPollInterval time.Duration
	MaxPollInterval     time.Duration
	DefaultMaxWait      time.Duration
	TransportErrorLimit int
	HandleTTL           time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultPollInterval <= 0 {
		c.DefaultPollInterval = defaultPollInterval
	}
	if c.MaxPollInterval <= 0 {
		c.MaxPollInterval = defaultMaxPollInterval
	}
	if c.DefaultMaxWait <= 0 {
		c.DefaultMaxWait = defaultMaxWait
	}
	if c.TransportErrorLimit <= 0 {
		c.TransportErrorLimit = defaultTransportErrorLimit
	}
	if c.HandleTTL <= 0 {
		c.HandleTTL = defaultHandleTTL
	}
	return c
}

// Orchestrator owns the lifecycle of generation jobs: it reserves credits,
// submits to a provider, polls until terminal, and settles the reservation.
// It is the only component allowed to mutate ledger state for a generation;
// per job there is exactly one Reserve followed by exactly one of Commit or
// Refund.
type Orchestrator struct {
	ledger    domain.Ledger
	results   domain.ResultStore
	providers map[string]domain.ProviderClient
	fallback  string
	cfg       Config
	logger    zerolog.Logger
	handles   *handleRegistry
}

// New wires an orchestrator from its collaborators. fallback names the
// provider used when a request does not pick one.
func New(ledger domain.Ledger, results domain.ResultStore, providers map[string]domain.ProviderClient, fallback string, cfg Config, logger zerolog.Logger) *Orchestrator {
	cfg = cfg.withDefaults()
	return &Orchestrator{
		ledger:    ledger,
		results:   results,
		providers: providers,
		fallback:  fallback,
		cfg:       cfg,
		logger:    logger,
		handles:   newHandleRegistry(cfg.HandleTTL),
	}
}

// Run keeps the handle registry swept until ctx is done. Callers that only use
// the synchronous Start do not need it.
func (o *Orchestrator) Run(ctx context.Context) {
	o.handles.sweep(ctx, sweepEvery)
}

// Start executes one generation request to its terminal outcome, blocking the
// calling goroutine. Every error is folded into the returned outcome.
func (o *Orchestrator) Start(ctx context.Context, req domain.GenerationRequest) domain.Outcome {
	return o.run(ctx, newHandle(uuid.NewString()), req)
}

// StartAsync runs the request on its own goroutine and returns a handle
// registered for later lookup. The job keeps running after the caller's
// request context is canceled; ctx values (request id and the like) carry
// over for logging.
func (o *Orchestrator) StartAsync(ctx context.Context, req domain.GenerationRequest) *Handle {
	h := newHandle(uuid.NewString())
	o.handles.insert(h)
	go o.run(context.WithoutCancel(ctx), h, req)
	return h
}

// Lookup returns the handle for a previously started async job.
func (o *Orchestrator) Lookup(jobID string) (*Handle, bool) {
	return o.handles.lookup(jobID)
}

func (o *Orchestrator) selectProvider(requested string) (domain.ProviderClient, string, bool) {
	if requested == "" {
		requested = o.fallback
	}
	if client, ok := o.providers[requested]; ok {
		return client, requested, true
	}
	if client, ok := o.providers[o.fallback]; ok && requested != o.fallback {
		return client, o.fallback, true
	}
	return nil, requested, false
}

func (o *Orchestrator) run(ctx context.Context, h *Handle, req domain.GenerationRequest) domain.Outcome {
	logger := o.logger.With().
		Str("job_id", h.JobID).
		Str("user_id", req.RequestorID).
		Logger()

	client, providerName, ok := o.selectProvider(req.Provider)
	if !ok {
		out := domain.Outcome{
			Status: domain.OutcomeRejected,
			Reason: fmt.Sprintf("provider %q not configured", req.Provider),
			Err:    domain.ErrUnknownProvider,
		}
		h.resolve(out)
		return out
	}

	reservationID, err := o.ledger.Reserve(ctx, req.RequestorID, req.CreditCost)
	if err != nil {
		reason := "credit reservation failed"
		if errors.Is(err, domain.ErrInsufficientCredits) {
			reason = "insufficient credits"
		}
		logger.Info().Err(err).Int64("cost", req.CreditCost).Msg("orchestrator: request rejected")
		out := domain.Outcome{Status: domain.OutcomeRejected, Reason: reason, Err: err}
		h.resolve(out)
		return out
	}

	job := &domain.Job{
		ID:              h.JobID,
		RequestorID:     req.RequestorID,
		Provider:        providerName,
		State:           domain.JobStateReserved,
		ReservationID:   reservationID,
		ReservedCredits: req.CreditCost,
		StartedAt:       time.Now(),
	}
	h.setState(job.State)

	// Cancellation between Reserve and Submit must still refund exactly once.
	if ctx.Err() != nil {
		o.refund(ctx, job, logger)
		o.advance(job, h, domain.JobStateTimedOut, logger)
		out := domain.Outcome{Status: domain.OutcomeTimedOut}
		h.resolve(out)
		return out
	}

	providerJobID, err := client.Submit(ctx, req.Payload)
	if err != nil {
		logger.Error().Err(err).Str("provider", providerName).Msg("orchestrator: submission failed")
		o.refund(ctx, job, logger)
		job.ErrorDetail = err.Error()
		o.advance(job, h, domain.JobStateFailed, logger)
		out := domain.Outcome{
			Status: domain.OutcomeFailed,
			Reason: fmt.Sprintf("submission failed: %v", err),
			Err:    err,
		}
		h.resolve(out)
		return out
	}
	job.ProviderJobID = providerJobID
	h.setProviderJobID(providerJobID)
	o.advance(job, h, domain.JobStateSubmitted, logger)
	o.advance(job, h, domain.JobStatePolling, logger)

	sched := &pollScheduler{
		client: client,
		cfg: pollConfig{
			Interval:            orDuration(req.PollInterval, o.cfg.DefaultPollInterval),
			MaxInterval:         o.cfg.MaxPollInterval,
			MaxWait:             capDuration(req.MaxWait, o.cfg.DefaultMaxWait),
			TransportErrorLimit: o.cfg.TransportErrorLimit,
		},
		logger: logger,
		observe: func(attempt int, at time.Time) {
			job.AttemptCount = attempt
			job.LastPolledAt = at
			h.notePoll(attempt, at)
		},
	}
	res := sched.run(ctx, providerJobID)

	var out domain.Outcome
	switch res.outcome {
	case pollCompleted:
		savedID, saveErr := o.results.Save(ctx, req.RequestorID, res.artifactRef, map[string]any{
			"provider":        providerName,
			"job_id":          job.ID,
			"provider_job_id": providerJobID,
		})
		warn := false
		if saveErr != nil {
			// The generation itself succeeded; credits stay committed and the
			// storage failure is surfaced as a warning, not a refund.
			warn = true
			logger.Error().Err(saveErr).Msg("orchestrator: result save failed after successful generation")
		}
		o.commit(ctx, job, logger)
		job.ArtifactRef = res.artifactRef
		o.advance(job, h, domain.JobStateCompleted, logger)
		out = domain.Outcome{
			Status:             domain.OutcomeCompleted,
			ArtifactRef:        res.artifactRef,
			SavedID:            savedID,
			PersistenceWarning: warn,
		}
		logger.Info().Int("attempts", job.AttemptCount).Str("artifact", res.artifactRef).Msg("orchestrator: job completed")
	case pollFailed:
		o.refund(ctx, job, logger)
		job.ErrorDetail = res.reason
		o.advance(job, h, domain.JobStateFailed, logger)
		out = domain.Outcome{Status: domain.OutcomeFailed, Reason: res.reason}
		logger.Info().Str("reason", res.reason).Msg("orchestrator: provider rejected job")
	case pollUnavailable:
		o.refund(ctx, job, logger)
		job.ErrorDetail = res.reason
		o.advance(job, h, domain.JobStateFailed, logger)
		out = domain.Outcome{
			Status: domain.OutcomeFailed,
			Reason: "provider unavailable",
			Err:    domain.ErrProviderUnavailable,
		}
		logger.Warn().Str("detail", res.reason).Msg("orchestrator: provider unreachable, job abandoned")
	case pollTimedOut:
		o.refund(ctx, job, logger)
		job.ErrorDetail = "deadline exceeded"
		o.advance(job, h, domain.JobStateTimedOut, logger)
		out = domain.Outcome{Status: domain.OutcomeTimedOut, ProviderJobID: providerJobID}
		logger.Warn().Int("attempts", job.AttemptCount).Msg("orchestrator: job timed out")
	}
	h.resolve(out)
	return out
}

func (o *Orchestrator) advance(job *domain.Job, h *Handle, next domain.JobState, logger zerolog.Logger) {
	if err := job.Advance(next); err != nil {
		logger.Error().Err(err).Msg("orchestrator: invariant violation")
		return
	}
	h.setState(next)
}

// commit and refund use a context that survives caller cancellation: once a
// reservation exists it must be settled regardless of what the caller does.

func (o *Orchestrator) commit(ctx context.Context, job *domain.Job, logger zerolog.Logger) {
	if err := o.ledger.Commit(context.WithoutCancel(ctx), job.ReservationID); err != nil {
		o.settleError(err, "commit", job, logger)
	}
}

func (o *Orchestrator) refund(ctx context.Context, job *domain.Job, logger zerolog.Logger) {
	if err := o.ledger.Refund(context.WithoutCancel(ctx), job.ReservationID); err != nil {
		o.settleError(err, "refund", job, logger)
	}
}

func (o *Orchestrator) settleError(err error, op string, job *domain.Job, logger zerolog.Logger) {
	ev := logger.Error().Err(err).
		Str("reservation_id", job.ReservationID).
		Int64("amount", job.ReservedCredits)
	if errors.Is(err, domain.ErrAlreadySettled) {
		ev.Msg("orchestrator: double settlement attempted, invariant violation: " + op)
		return
	}
	ev.Msg("orchestrator: ledger " + op + " failed")
}

func orDuration(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}

// capDuration bounds a caller-supplied duration to (0, max]. Requests may
// shorten the wait, never extend it past the configured ceiling.
func capDuration(v, max time.Duration) time.Duration {
	if v <= 0 || v > max {
		return max
	}
	return v
}
