package reservation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/terraskye/cinema"
	"github.com/terraskye/cinema/otel"
)

// RefundNamespace derives refund command ids from reservation ids. The
// reservation id itself is already the command id of the charge.
var RefundNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:cinema:refund"))

func RefundCommandID(reservationID string) string {
	return uuid.NewSHA1(RefundNamespace, []byte(reservationID)).String()
}

type config struct {
	logger        *logrus.Entry
	stepTimeout   time.Duration
	attempts      uint64
	retryInterval time.Duration
	clock         func() time.Time
}

type Option func(*config)

func WithLogger(logger *logrus.Entry) Option {
	return func(c *config) { c.logger = logger }
}

// WithStepTimeout bounds every single attempt of a step.
func WithStepTimeout(d time.Duration) Option {
	return func(c *config) { c.stepTimeout = d }
}

// WithAttempts sets how often a step is tried on transient errors.
func WithAttempts(n uint64) Option {
	return func(c *config) {
		if n > 0 {
			c.attempts = n
		}
	}
}

func WithRetryInterval(d time.Duration) Option {
	return func(c *config) { c.retryInterval = d }
}

func WithClock(clock func() time.Time) Option {
	return func(c *config) { c.clock = clock }
}

// Orchestrator drives seat reservation sagas. Every saga runs on its own
// goroutine and persists its record after each step, before the next one
// is issued.
type Orchestrator struct {
	store   Store
	seats   Seats
	wallets Wallets
	cfg     config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	running map[string]chan struct{}
}

func NewOrchestrator(store Store, seats Seats, wallets Wallets, opts ...Option) *Orchestrator {
	cfg := config{
		logger:        logrus.NewEntry(logrus.StandardLogger()),
		stepTimeout:   3 * time.Second,
		attempts:      3,
		retryInterval: 100 * time.Millisecond,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.logger = cfg.logger.WithField("component", "seat-reservation")

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		store:   store,
		seats:   seats,
		wallets: wallets,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		running: make(map[string]chan struct{}),
	}
}

// Start records a new saga and runs it in the background. It returns once
// the record is stored; callers poll Status for the outcome.
func (o *Orchestrator) Start(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return ErrClosed
	}

	rec := SeatReservation{
		ReservationID: req.ReservationID,
		ShowID:        req.ShowID,
		SeatNumber:    req.SeatNumber,
		WalletID:      req.WalletID,
		Price:         req.Price,
		Status:        StatusStarted,
		Step:          StepReserveSeat,
		UpdatedAt:     o.cfg.clock(),
	}
	if err := o.store.Create(ctx, rec); err != nil {
		return fmt.Errorf("start seat reservation %s: %w", req.ReservationID, err)
	}

	o.launch(rec)
	return nil
}

func (o *Orchestrator) Get(ctx context.Context, reservationID string) (SeatReservation, error) {
	return o.store.Get(ctx, reservationID)
}

func (o *Orchestrator) Status(ctx context.Context, reservationID string) (Status, error) {
	rec, err := o.store.Get(ctx, reservationID)
	if err != nil {
		return "", err
	}
	return rec.Status, nil
}

// Resume restarts every unfinished saga that is not running yet and
// returns how many were started.
func (o *Orchestrator) Resume(ctx context.Context) (int, error) {
	records, err := o.store.Unfinished(ctx)
	if err != nil {
		return 0, fmt.Errorf("resume seat reservations: %w", err)
	}

	resumed := 0
	for _, rec := range records {
		if o.launch(rec) {
			resumed++
		}
	}
	if resumed > 0 {
		o.cfg.logger.WithField("count", resumed).Info("resumed seat reservations")
	}
	return resumed, nil
}

// Wait blocks until the saga stops running, finished or halted, and
// returns its persisted record.
func (o *Orchestrator) Wait(ctx context.Context, reservationID string) (SeatReservation, error) {
	o.mu.Lock()
	done, ok := o.running[reservationID]
	o.mu.Unlock()

	if ok {
		select {
		case <-done:
		case <-ctx.Done():
			return SeatReservation{}, ctx.Err()
		}
	}
	return o.store.Get(ctx, reservationID)
}

// Close stops accepting sagas and waits for the running ones. When ctx ends
// first the remaining sagas are interrupted; they keep their last persisted
// state and continue on the next Resume.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.cancel()
		return nil
	case <-ctx.Done():
		o.cancel()
		<-done
		return ctx.Err()
	}
}

func (o *Orchestrator) launch(rec SeatReservation) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}
	if _, ok := o.running[rec.ReservationID]; ok {
		return false
	}

	done := make(chan struct{})
	o.running[rec.ReservationID] = done
	o.wg.Add(1)

	go func() {
		defer o.wg.Done()
		defer func() {
			o.mu.Lock()
			delete(o.running, rec.ReservationID)
			o.mu.Unlock()
			close(done)
		}()
		o.run(o.ctx, rec)
	}()
	return true
}

func (o *Orchestrator) run(ctx context.Context, rec SeatReservation) {
	logger := o.cfg.logger.WithFields(logrus.Fields{
		"reservation_id": rec.ReservationID,
		"show_id":        rec.ShowID,
		"wallet_id":      rec.WalletID,
	})

	for !rec.Finished() {
		next, err := o.transition(ctx, rec)
		if err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"step":   rec.Step,
				"status": rec.Status,
			}).Error("seat reservation halted")
			return
		}

		next.UpdatedAt = o.cfg.clock()
		// the outcome is definitive, so it is stored even during shutdown
		if err := o.store.Save(context.WithoutCancel(ctx), next); err != nil {
			logger.WithError(err).WithField("step", rec.Step).Error("seat reservation halted: saving state failed")
			return
		}

		logger.WithFields(logrus.Fields{
			"step":      rec.Step,
			"status":    next.Status,
			"next_step": next.Step,
		}).Info("seat reservation step completed")
		rec = next
	}
}

// transition runs the current step and returns the record to persist. An
// error halts the saga in its current state.
func (o *Orchestrator) transition(ctx context.Context, rec SeatReservation) (SeatReservation, error) {
	next := rec

	switch rec.Step {
	case StepReserveSeat:
		resp, err := o.call(ctx, rec, func(ctx context.Context) (cinema.Response, error) {
			return o.seats.Reserve(ctx, rec.ShowID, rec.WalletID, rec.ReservationID, rec.SeatNumber)
		})
		switch {
		case ctx.Err() != nil:
			return rec, interrupted(ctx)
		case err != nil:
			// the seat may be reserved after all
			next.Step = StepCancelReservation
		case !resp.Success:
			o.cfg.logger.WithField("reservation_id", rec.ReservationID).WithField("code", resp.Code).Warn("seat reservation failed")
			next.Status, next.Step = StatusSeatReservationFailed, ""
		default:
			next.Status, next.Step = StatusSeatReserved, StepChargeWallet
		}

	case StepChargeWallet:
		resp, err := o.call(ctx, rec, func(ctx context.Context) (cinema.Response, error) {
			return o.wallets.Charge(ctx, rec.WalletID, rec.ReservationID, rec.Price, rec.ReservationID)
		})
		switch {
		case ctx.Err() != nil:
			return rec, interrupted(ctx)
		case err != nil:
			// the wallet may be charged after all
			next.Step = StepRefund
		case !resp.Success:
			o.cfg.logger.WithField("reservation_id", rec.ReservationID).WithField("code", resp.Code).Warn("wallet charge rejected")
			next.Status, next.Step = StatusWalletChargeRejected, StepCancelReservation
		default:
			next.Status, next.Step = StatusWalletCharged, StepConfirmReservation
		}

	case StepConfirmReservation:
		resp, err := o.call(ctx, rec, func(ctx context.Context) (cinema.Response, error) {
			return o.seats.ConfirmPayment(ctx, rec.ShowID, rec.ReservationID)
		})
		switch {
		case err != nil:
			return rec, err
		case !resp.Success:
			return rec, unexpected(resp)
		case resp.Code == cinema.CodeCancelledReservationConfirmed:
			next.Step = StepRefund
		default:
			next.Status, next.Step = StatusCompleted, ""
		}

	case StepCancelReservation:
		resp, err := o.call(ctx, rec, func(ctx context.Context) (cinema.Response, error) {
			return o.seats.CancelReservation(ctx, rec.ShowID, rec.ReservationID)
		})
		switch {
		case err != nil:
			return rec, err
		case !resp.Success && resp.Code != cinema.CodeReservationNotFound && resp.Code != cinema.CodeShowNotFound:
			return rec, unexpected(resp)
		case rec.Status == StatusWalletRefunded:
			next.Status = StatusSeatReservationRefunded
		default:
			next.Status = StatusSeatReservationFailed
		}
		next.Step = ""

	case StepRefund:
		resp, err := o.call(ctx, rec, func(ctx context.Context) (cinema.Response, error) {
			return o.wallets.Refund(ctx, rec.WalletID, rec.ReservationID, RefundCommandID(rec.ReservationID))
		})
		switch {
		case err != nil:
			return rec, err
		case resp.Success:
			next.Status = StatusWalletRefunded
		case resp.Code != cinema.CodeExpenseNotFound:
			return rec, unexpected(resp)
		}
		next.Step = StepCancelReservation

	default:
		panic(fmt.Sprintf("reservation: unknown step %q", rec.Step))
	}

	return next, nil
}

// call runs one step with a timeout per attempt, retrying transient errors
// up to the configured number of attempts. Business failures come back as
// an unsuccessful Response and are never retried.
func (o *Orchestrator) call(ctx context.Context, rec SeatReservation, fn func(ctx context.Context) (cinema.Response, error)) (cinema.Response, error) {
	ctx, end := otel.StartStep(ctx, rec.ReservationID, string(rec.Step))

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(o.cfg.retryInterval), o.cfg.attempts-1),
		ctx,
	)

	attempt := 0
	resp, err := backoff.RetryWithData(func() (cinema.Response, error) {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.stepTimeout)
		defer cancel()

		resp, err := fn(attemptCtx)
		if err != nil {
			o.cfg.logger.WithError(err).WithFields(logrus.Fields{
				"reservation_id": rec.ReservationID,
				"step":           rec.Step,
				"attempt":        attempt,
			}).Warn("seat reservation step attempt failed")
		}
		return resp, err
	}, policy)

	switch {
	case err != nil:
		err = fmt.Errorf("%s failed after %d attempts: %w", rec.Step, attempt, err)
		end(otel.StepFailed, err)
	case !resp.Success:
		end(otel.StepRejected, nil)
	default:
		end(otel.StepSucceeded, nil)
	}
	return resp, err
}

func interrupted(ctx context.Context) error {
	return fmt.Errorf("interrupted: %w", context.Cause(ctx))
}

func unexpected(resp cinema.Response) error {
	return cinema.NewError(resp.Code, "unexpected response: %s", resp.Message)
}
