package show

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/terraskye/cinema"
	cqrs "github.com/terraskye/cinema/eventsourcing"
	"github.com/terraskye/cinema/logging"
	"github.com/terraskye/cinema/otel"
)

// Service is the command surface of shows. Commands go through the
// command bus, so all commands of one show run one after another.
type Service struct {
	bus       *cqrs.CommandBus
	store     cqrs.EventStore
	snapshots cqrs.SnapshotStore[*Show]
}

type options struct {
	snapshots     cqrs.SnapshotStore[*Show]
	snapshotEvery uint64
	handlerOpts   []cqrs.CommandHandlerOption
}

type Option func(*options)

// WithSnapshots stores the show state every n events.
func WithSnapshots(store cqrs.SnapshotStore[*Show], every uint64) Option {
	return func(o *options) {
		o.snapshots = store
		o.snapshotEvery = every
	}
}

// WithHandlerOptions appends options to every show command handler.
func WithHandlerOptions(opts ...cqrs.CommandHandlerOption) Option {
	return func(o *options) {
		o.handlerOpts = append(o.handlerOpts, opts...)
	}
}

// StreamID is the stream of the show with the given id.
func StreamID(showID string) string {
	return StreamPrefix + "-" + showID
}

// Register binds the show command handlers to bus and returns the service
// that dispatches to them.
func Register(bus *cqrs.CommandBus, store cqrs.EventStore, logger *logrus.Entry, opts ...Option) *Service {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	handlerOpts := []cqrs.CommandHandlerOption{
		cqrs.WithStreamNamer(cqrs.PrefixStreamNamer(StreamPrefix)),
		cqrs.WithRevision(cqrs.Revision(0)),
		cqrs.WithRetryStrategy(cinema.ConflictRetry),
		cqrs.WithMetadataExtractor(cqrs.CausationMetadata),
	}
	if o.snapshots != nil {
		handlerOpts = append(handlerOpts, cqrs.WithSnapshots(o.snapshots, o.snapshotEvery))
	}
	handlerOpts = append(handlerOpts, o.handlerOpts...)

	logger = logger.WithField("aggregate", "show")
	cqrs.Register(bus, handler[CreateShow](store, logger, handlerOpts))
	cqrs.Register(bus, handler[ReserveSeat](store, logger, handlerOpts))
	cqrs.Register(bus, handler[ConfirmReservationPayment](store, logger, handlerOpts))
	cqrs.Register(bus, handler[CancelSeatReservation](store, logger, handlerOpts))

	return &Service{bus: bus, store: store, snapshots: o.snapshots}
}

func handler[C Command](store cqrs.EventStore, logger *logrus.Entry, opts []cqrs.CommandHandlerOption) cqrs.CommandHandler[C] {
	h := cqrs.NewCommandHandler[*Show, C](store, nil, Evolve, decider[C](), opts...)
	return logging.WithCommandLogging(logger, otel.WithCommandTelemetry(h))
}

func (s *Service) Create(ctx context.Context, showID, title string, maxSeats int) (cinema.Response, error) {
	_, err := s.bus.Dispatch(ctx, CreateShow{ShowID: showID, Title: title, MaxSeats: maxSeats})
	return cinema.ResponseFor(err, "show created")
}

func (s *Service) Reserve(ctx context.Context, showID, walletID, reservationID string, seatNumber int) (cinema.Response, error) {
	_, err := s.bus.Dispatch(ctx, ReserveSeat{
		ShowID:        showID,
		WalletID:      walletID,
		ReservationID: reservationID,
		SeatNumber:    seatNumber,
	})
	return cinema.ResponseFor(err, "seat reserved")
}

func (s *Service) CancelReservation(ctx context.Context, showID, reservationID string) (cinema.Response, error) {
	_, err := s.bus.Dispatch(ctx, CancelSeatReservation{ShowID: showID, ReservationID: reservationID})
	return cinema.ResponseFor(err, "reservation cancelled")
}

// ConfirmPayment answers a confirmation of an already cancelled reservation
// with a successful response coded CANCELLED_RESERVATION_CONFIRMED.
func (s *Service) ConfirmPayment(ctx context.Context, showID, reservationID string) (cinema.Response, error) {
	result, err := s.bus.Dispatch(ctx, ConfirmReservationPayment{ShowID: showID, ReservationID: reservationID})
	resp, err := cinema.ResponseFor(err, "payment confirmed")
	if err != nil || !resp.Success {
		return resp, err
	}

	for _, ev := range result.Events {
		if _, ok := ev.(*CancelledReservationConfirmed); ok {
			resp.Code = cinema.CodeCancelledReservationConfirmed
			resp.Message = "reservation was already cancelled"
		}
	}
	return resp, nil
}

// Get replays the show. A show that was never created is a
// SHOW_NOT_FOUND *cinema.Error.
func (s *Service) Get(ctx context.Context, showID string) (*Show, error) {
	state, _, err := cqrs.Hydrate[*Show](ctx, s.store, StreamID(showID), nil, Evolve, s.snapshots)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, cinema.NewError(cinema.CodeShowNotFound, "show %s not found", showID)
	}
	return state, nil
}

func (s *Service) SeatStatus(ctx context.Context, showID string, seatNumber int) (SeatStatus, error) {
	state, err := s.Get(ctx, showID)
	if err != nil {
		return "", err
	}
	seat, ok := state.Seats[seatNumber]
	if !ok {
		return "", cinema.NewError(cinema.CodeSeatNotFound, "seat %d not found", seatNumber)
	}
	return seat.Status, nil
}
