// Package orchestrator drives push-payment attempts from initiation to a
// terminal state: it pushes the prompt to the gateway, polls for confirmation
// on a fixed cadence, classifies the outcome and emits phase-change events.
package orchestrator

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/DTBbuilds/smartduka-payments/internal/classify"
	"github.com/DTBbuilds/smartduka-payments/internal/domain/attempt"
	"github.com/DTBbuilds/smartduka-payments/internal/domain/errors"
	"github.com/DTBbuilds/smartduka-payments/internal/events"
	"github.com/DTBbuilds/smartduka-payments/internal/gateway"
	"github.com/DTBbuilds/smartduka-payments/internal/infrastructure/observability"
	"github.com/DTBbuilds/smartduka-payments/pkg/retry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config tunes the confirmation loop.
type Config struct {
	// PollInterval is the fixed cadence between status polls.
	PollInterval time.Duration
	// PollMaxAttempts bounds transport retries within one poll cycle.
	PollMaxAttempts uint
	// PollRetryDelay is the initial backoff between transport retries.
	PollRetryDelay time.Duration
	// GlobalTimeout is the confirmation window per attempt.
	GlobalTimeout time.Duration
	// GatewayCallTimeout caps each individual gateway call.
	GatewayCallTimeout time.Duration
	// SweepInterval is the cadence of the expiry sweeper.
	SweepInterval time.Duration
	// SweepBatchSize bounds attempts expired per sweep.
	SweepBatchSize int
	// StageMap overrides the provider stage -> phase mapping.
	StageMap map[string]string
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 4 * time.Second
	}
	if c.PollMaxAttempts == 0 {
		c.PollMaxAttempts = 3
	}
	if c.PollRetryDelay <= 0 {
		c.PollRetryDelay = 500 * time.Millisecond
	}
	if c.GlobalTimeout <= 0 {
		c.GlobalTimeout = 120 * time.Second
	}
	if c.GatewayCallTimeout <= 0 {
		c.GatewayCallTimeout = 2 * time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Second
	}
	if c.SweepBatchSize <= 0 {
		c.SweepBatchSize = 100
	}
}

// InitiateRequest starts a new attempt for an order.
type InitiateRequest struct {
	OrderID     string
	AmountCents int64
	Currency    string
	PayerPhone  string
	Description string
}

// Orchestrator owns the lifecycle of payment attempts. All writes to an
// attempt funnel through its per-attempt mutex plus the store's version
// check, so concurrent polls, cancels and sweeps cannot race each other.
type Orchestrator struct {
	store      attempt.Store
	gw         gateway.Client
	classifier *classify.Classifier
	bus        *events.Bus
	sched      Scheduler
	clock      Clock
	cfg        Config
	metrics    *observability.Metrics
	log        zerolog.Logger

	locks sync.Map // uuid.UUID -> *sync.Mutex
}

func New(
	store attempt.Store,
	gw gateway.Client,
	classifier *classify.Classifier,
	bus *events.Bus,
	sched Scheduler,
	clock Clock,
	cfg Config,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		store:      store,
		gw:         gw,
		classifier: classifier,
		bus:        bus,
		sched:      sched,
		clock:      clock,
		cfg:        cfg,
		metrics:    metrics,
		log:        log.With().Str("component", "orchestrator").Logger(),
	}
}

// Initiate creates attempt #N+1 for the order, pushes the prompt to the
// gateway and schedules the first status poll. When the push itself fails the
// attempt still comes back, already terminal in the failed phase, so callers
// always get a record of what happened.
func (o *Orchestrator) Initiate(ctx context.Context, req InitiateRequest) (*attempt.Attempt, error) {
	if _, err := o.store.GetActiveForOrder(ctx, req.OrderID); err == nil {
		return nil, errors.ErrActiveAttemptExists
	} else if !stderrors.Is(err, errors.ErrAttemptNotFound) {
		return nil, err
	}

	previous, err := o.store.ListByOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	return o.begin(ctx, req, len(previous)+1)
}

// Retry starts attempt #N+1 after a terminal failure. The latest attempt must
// be terminal and carry a retryable result category; succeeded orders and
// unknown gateway results are refused.
func (o *Orchestrator) Retry(ctx context.Context, orderID, payerPhone string) (*attempt.Attempt, error) {
	history, err := o.store.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, errors.ErrAttemptNotFound
	}
	latest := history[len(history)-1]
	if !latest.IsTerminal() {
		return nil, errors.ErrActiveAttemptExists
	}
	category := ""
	if latest.ResultCategory != nil {
		category = *latest.ResultCategory
	}
	if !classify.Profile(category).Retryable {
		return nil, errors.NewDomainError(
			"not_retryable",
			"latest attempt ended with a non-retryable result: "+category,
			errors.ErrNotRetryable,
		)
	}

	if o.metrics != nil {
		o.metrics.AttemptRetries.Inc()
	}
	req := InitiateRequest{
		OrderID:     orderID,
		AmountCents: latest.Amount.ValueCents,
		Currency:    latest.Amount.Currency,
		PayerPhone:  payerPhone,
		Description: "retry of attempt " + latest.ID.String(),
	}
	return o.begin(ctx, req, latest.AttemptNumber+1)
}

func (o *Orchestrator) begin(ctx context.Context, req InitiateRequest, attemptNumber int) (*attempt.Attempt, error) {
	now := o.clock.Now()
	a, err := attempt.New(
		req.OrderID,
		attemptNumber,
		attempt.Amount{ValueCents: req.AmountCents, Currency: req.Currency},
		req.PayerPhone,
		now,
		o.cfg.GlobalTimeout,
	)
	if err != nil {
		return nil, err
	}

	if err := o.store.Create(ctx, a); err != nil {
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.ActiveAttempts.Inc()
	}
	o.publish(a)

	o.log.Info().
		Str("attempt_id", a.ID.String()).
		Str("order_id", a.OrderID).
		Int("attempt_number", a.AttemptNumber).
		Str("amount", a.Amount.String()).
		Msg("push initiated")

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.GatewayCallTimeout)
	res, pushErr := o.gw.Push(callCtx, gateway.PushRequest{
		OrderID:     req.OrderID,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		PayerPhone:  req.PayerPhone,
		Description: req.Description,
	})
	cancel()
	o.observeGatewayCall("push", pushErr)

	if pushErr != nil {
		o.log.Warn().Err(pushErr).
			Str("attempt_id", a.ID.String()).
			Msg("gateway rejected push")
		failed := o.finalize(ctx, a, attempt.Update{
			Phase:          attempt.PhaseFailed,
			ResultCategory: strPtr(string(classify.CategoryNetworkError)),
			ResultMessage:  strPtr("gateway push failed: " + pushErr.Error()),
		})
		if failed != nil {
			return failed, nil
		}
		return a, nil
	}

	updated, err := o.store.UpdatePhase(ctx, a.ID, a.Version, attempt.Update{
		Phase:            attempt.PhaseAwaitingAuthorization,
		GatewayReference: strPtr(res.GatewayReference),
	})
	if err != nil {
		return nil, err
	}
	o.publish(updated)
	o.schedulePoll(updated.ID)
	return updated, nil
}

// Get returns one attempt by id.
func (o *Orchestrator) Get(ctx context.Context, id uuid.UUID) (*attempt.Attempt, error) {
	return o.store.GetByID(ctx, id)
}

// ListForOrder returns the order's attempt history, oldest first.
func (o *Orchestrator) ListForOrder(ctx context.Context, orderID string) ([]*attempt.Attempt, error) {
	return o.store.ListByOrder(ctx, orderID)
}

// Poll runs one confirmation cycle for the attempt: query the gateway,
// advance or finalize, reschedule if still pending. Polling a terminal
// attempt is a no-op.
func (o *Orchestrator) Poll(ctx context.Context, id uuid.UUID) error {
	unlock := o.lock(id)
	defer unlock()

	a, err := o.store.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, errors.ErrAttemptNotFound) {
			return nil
		}
		return err
	}
	if a.IsTerminal() {
		return nil
	}

	now := o.clock.Now()
	if a.Expired(now) {
		o.expire(ctx, a)
		return nil
	}
	if a.GatewayReference == nil {
		// Push never completed; nothing to query. The sweeper will expire it.
		return nil
	}

	res, queryErr := retry.DoWithResult(ctx, retry.Config{
		MaxAttempts:  o.cfg.PollMaxAttempts,
		InitialDelay: o.cfg.PollRetryDelay,
		MaxDelay:     o.cfg.PollInterval,
		OnRetry: func(n uint, err error) {
			o.log.Debug().Err(err).
				Str("attempt_id", id.String()).
				Uint("transport_retry", n).
				Msg("status query failed, retrying")
		},
	}, func() (*gateway.StatusResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.GatewayCallTimeout)
		defer cancel()
		r, err := o.gw.QueryStatus(callCtx, *a.GatewayReference)
		o.observeGatewayCall("query_status", err)
		return r, err
	})

	if queryErr != nil {
		if o.metrics != nil {
			o.metrics.PollTransportErrs.Inc()
			o.metrics.PollsTotal.WithLabelValues("transport_error").Inc()
		}
		o.log.Error().Err(queryErr).
			Str("attempt_id", id.String()).
			Msg("status polling exhausted transport retries")
		o.finalize(ctx, a, attempt.Update{
			Phase:          attempt.PhaseFailed,
			ResultCategory: strPtr(string(classify.CategoryNetworkError)),
			ResultMessage:  strPtr("status polling failed: " + queryErr.Error()),
		})
		return queryErr
	}

	if res.Terminal {
		o.finalizeFromGateway(ctx, a, res)
		return nil
	}

	if o.metrics != nil {
		o.metrics.PollsTotal.WithLabelValues("pending").Inc()
	}
	polledAt := o.clock.Now()
	upd := attempt.Update{Phase: a.Phase, PolledAt: &polledAt}
	if next := o.stageToPhase(res.Stage); next != a.Phase && a.CanTransitionTo(next) {
		upd.Phase = next
	}
	updated, err := o.store.UpdatePhase(ctx, a.ID, a.Version, upd)
	if err != nil {
		// Another writer finalized or advanced the attempt; their result stands.
		if stderrors.Is(err, errors.ErrTerminalAttempt) || stderrors.Is(err, errors.ErrVersionConflict) {
			return nil
		}
		return err
	}
	if updated.Phase != a.Phase {
		o.publish(updated)
	}
	o.schedulePoll(updated.ID)
	return nil
}

// Cancel stops an in-flight attempt. The gateway gets a best-effort cancel
// request, then one final status query; if the payment already completed on
// the provider side, that result wins over the cancellation.
func (o *Orchestrator) Cancel(ctx context.Context, id uuid.UUID) (*attempt.Attempt, error) {
	unlock := o.lock(id)
	defer unlock()

	a, err := o.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.IsTerminal() {
		return a, errors.ErrTerminalAttempt
	}

	o.sched.Cancel(id)

	if a.GatewayReference != nil {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.GatewayCallTimeout)
		accepted, cancelErr := o.gw.Cancel(callCtx, *a.GatewayReference)
		cancel()
		if cancelErr != nil {
			o.log.Warn().Err(cancelErr).
				Str("attempt_id", id.String()).
				Msg("gateway cancel request failed")
		} else if !accepted {
			o.log.Debug().
				Str("attempt_id", id.String()).
				Msg("gateway does not support cancellation")
		}

		callCtx, cancel = context.WithTimeout(ctx, o.cfg.GatewayCallTimeout)
		res, queryErr := o.gw.QueryStatus(callCtx, *a.GatewayReference)
		cancel()
		o.observeGatewayCall("query_status", queryErr)
		if queryErr == nil && res.Terminal {
			cls := o.classifier.Classify(res.RawCode, res.RawMessage)
			if !o.classifier.IsSuccess(res.RawCode) && cls.Category == classify.CategoryUserCancelled {
				// The cancel landed at the provider; commit it as a cancellation,
				// keeping the gateway's code for reconciliation.
				done := o.finalize(ctx, a, attempt.Update{
					Phase:          attempt.PhaseCancelled,
					ResultCode:     strPtr(res.RawCode),
					ResultCategory: strPtr(string(classify.CategoryUserCancelled)),
					ResultMessage:  strPtr(res.RawMessage),
				})
				if done != nil {
					return done, nil
				}
				return o.store.GetByID(ctx, id)
			}
			return o.finalizeFromGateway(ctx, a, res), nil
		}
	}

	cancelled := o.finalize(ctx, a, attempt.Update{
		Phase:          attempt.PhaseCancelled,
		ResultCategory: strPtr(string(classify.CategoryUserCancelled)),
		ResultMessage:  strPtr("cancelled by merchant before completion"),
	})
	if cancelled == nil {
		return o.store.GetByID(ctx, id)
	}
	return cancelled, nil
}

// Sweep expires every non-terminal attempt whose confirmation window has
// elapsed. It returns how many attempts were expired.
func (o *Orchestrator) Sweep(ctx context.Context) (int, error) {
	expired, err := o.store.ListExpired(ctx, o.clock.Now(), o.cfg.SweepBatchSize)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range expired {
		unlock := o.lock(a.ID)
		current, err := o.store.GetByID(ctx, a.ID)
		if err == nil && !current.IsTerminal() && current.Expired(o.clock.Now()) {
			o.expire(ctx, current)
			n++
		}
		unlock()
	}
	return n, nil
}

// RunSweeper runs Sweep on a fixed cadence until ctx is cancelled.
func (o *Orchestrator) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := o.Sweep(ctx)
			if err != nil {
				o.log.Error().Err(err).Msg("expiry sweep failed")
				continue
			}
			if n > 0 {
				o.log.Info().Int("expired", n).Msg("expiry sweep finished")
			}
		}
	}
}

// Shutdown stops the scheduler; pending attempts are picked up again by the
// sweeper and fresh polls after restart.
func (o *Orchestrator) Shutdown() {
	o.sched.Stop()
}

func (o *Orchestrator) schedulePoll(id uuid.UUID) {
	o.sched.Schedule(id, o.cfg.PollInterval, func() {
		if err := o.Poll(context.Background(), id); err != nil {
			o.log.Error().Err(err).Str("attempt_id", id.String()).Msg("poll cycle failed")
		}
	})
}

// finalizeFromGateway commits the terminal outcome the gateway reported.
func (o *Orchestrator) finalizeFromGateway(ctx context.Context, a *attempt.Attempt, res *gateway.StatusResult) *attempt.Attempt {
	if o.classifier.IsSuccess(res.RawCode) {
		if o.metrics != nil {
			o.metrics.PollsTotal.WithLabelValues("succeeded").Inc()
		}
		return o.finalize(ctx, a, attempt.Update{
			Phase:          attempt.PhaseSucceeded,
			ResultCode:     strPtr(res.RawCode),
			ResultCategory: strPtr(string(classify.CategorySuccess)),
			ResultMessage:  strPtr(res.RawMessage),
		})
	}

	cls := o.classifier.Classify(res.RawCode, res.RawMessage)
	if cls.Category == classify.CategoryUnknown {
		o.log.Warn().
			Str("attempt_id", a.ID.String()).
			Str("raw_code", res.RawCode).
			Str("raw_message", res.RawMessage).
			Msg("unrecognized gateway result code, flagging for reconciliation")
	}
	if o.metrics != nil {
		o.metrics.PollsTotal.WithLabelValues("failed").Inc()
	}
	return o.finalize(ctx, a, attempt.Update{
		Phase:          attempt.PhaseFailed,
		ResultCode:     strPtr(res.RawCode),
		ResultCategory: strPtr(string(cls.Category)),
		ResultMessage:  strPtr(res.RawMessage),
	})
}

func (o *Orchestrator) expire(ctx context.Context, a *attempt.Attempt) {
	o.log.Info().
		Str("attempt_id", a.ID.String()).
		Str("order_id", a.OrderID).
		Msg("confirmation window elapsed, expiring attempt")
	o.finalize(ctx, a, attempt.Update{
		Phase:          attempt.PhaseExpired,
		ResultCategory: strPtr(string(classify.CategoryTimeout)),
		ResultMessage:  strPtr("confirmation window elapsed"),
	})
}

// finalize commits a terminal transition, emits the terminal event exactly
// once and releases scheduling state. Losing the version race to another
// writer is fine: whoever won has already finalized.
func (o *Orchestrator) finalize(ctx context.Context, a *attempt.Attempt, upd attempt.Update) *attempt.Attempt {
	updated, err := o.store.UpdatePhase(ctx, a.ID, a.Version, upd)
	if err != nil {
		if stderrors.Is(err, errors.ErrTerminalAttempt) || stderrors.Is(err, errors.ErrVersionConflict) {
			o.log.Debug().
				Str("attempt_id", a.ID.String()).
				Msg("attempt already finalized by another writer")
			return nil
		}
		o.log.Error().Err(err).
			Str("attempt_id", a.ID.String()).
			Msg("failed to commit terminal transition")
		return nil
	}

	o.sched.Cancel(updated.ID)
	o.locks.Delete(updated.ID)
	o.publish(updated)

	category := ""
	if updated.ResultCategory != nil {
		category = *updated.ResultCategory
	}
	if o.metrics != nil {
		o.metrics.ActiveAttempts.Dec()
		o.metrics.AttemptsTotal.WithLabelValues(string(updated.Status), category).Inc()
		if updated.TerminalAt != nil {
			o.metrics.AttemptDuration.
				WithLabelValues(string(updated.Status)).
				Observe(updated.TerminalAt.Sub(updated.CreatedAt).Seconds())
		}
	}
	o.log.Info().
		Str("attempt_id", updated.ID.String()).
		Str("order_id", updated.OrderID).
		Str("status", string(updated.Status)).
		Str("category", category).
		Msg("attempt reached terminal state")
	return updated
}

func (o *Orchestrator) publish(a *attempt.Attempt) {
	eta := 0
	if !a.IsTerminal() {
		if remaining := a.ExpiresAt.Sub(o.clock.Now()); remaining > 0 {
			eta = int(remaining.Seconds())
		}
	}
	category := ""
	if a.ResultCategory != nil {
		category = *a.ResultCategory
	}
	o.bus.Publish(events.PhaseChange{
		AttemptID:       a.ID,
		OrderID:         a.OrderID,
		Phase:           a.Phase,
		Status:          a.Status,
		ProgressPercent: a.Phase.Progress(),
		EtaSeconds:      eta,
		Terminal:        a.IsTerminal(),
		ResultCategory:  category,
		OccurredAt:      a.UpdatedAt,
	})
}

func (o *Orchestrator) stageToPhase(stage string) attempt.Phase {
	if mapped, ok := o.cfg.StageMap[stage]; ok {
		stage = mapped
	}
	switch stage {
	case string(attempt.PhaseAwaitingAuthorization):
		return attempt.PhaseAwaitingAuthorization
	case string(attempt.PhaseProcessing):
		return attempt.PhaseProcessing
	case string(attempt.PhaseVerifying):
		return attempt.PhaseVerifying
	default:
		return ""
	}
}

func (o *Orchestrator) lock(id uuid.UUID) func() {
	v, _ := o.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (o *Orchestrator) observeGatewayCall(operation string, err error) {
	if o.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	o.metrics.GatewayCalls.WithLabelValues(operation, result).Inc()
}

func strPtr(s string) *string { return &s }
