package wallet

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/terraskye/cinema"
	cqrs "github.com/terraskye/cinema/eventsourcing"
	"github.com/terraskye/cinema/logging"
	"github.com/terraskye/cinema/otel"
)

type Service struct {
	bus       *cqrs.CommandBus
	store     cqrs.EventStore
	snapshots cqrs.SnapshotStore[Wallet]
}

type options struct {
	snapshots     cqrs.SnapshotStore[Wallet]
	snapshotEvery uint64
	handlerOpts   []cqrs.CommandHandlerOption
}

type Option func(*options)

func WithSnapshots(store cqrs.SnapshotStore[Wallet], every uint64) Option {
	return func(o *options) {
		o.snapshots = store
		o.snapshotEvery = every
	}
}

func WithHandlerOptions(opts ...cqrs.CommandHandlerOption) Option {
	return func(o *options) {
		o.handlerOpts = append(o.handlerOpts, opts...)
	}
}

func StreamID(walletID string) string {
	return StreamPrefix + "-" + walletID
}

// Register binds the wallet command handlers to bus.
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

	logger = logger.WithField("aggregate", "wallet")
	cqrs.Register(bus, handler[CreateWallet](store, logger, handlerOpts))
	cqrs.Register(bus, handler[ChargeWallet](store, logger, handlerOpts))
	cqrs.Register(bus, handler[Refund](store, logger, handlerOpts))
	cqrs.Register(bus, handler[DepositFunds](store, logger, handlerOpts))

	return &Service{bus: bus, store: store, snapshots: o.snapshots}
}

func handler[C Command](store cqrs.EventStore, logger *logrus.Entry, opts []cqrs.CommandHandlerOption) cqrs.CommandHandler[C] {
	h := cqrs.NewCommandHandler[Wallet, C](store, Wallet{}, Evolve, decider[C](), opts...)
	return logging.WithCommandLogging(logger, otel.WithCommandTelemetry(h))
}

func (s *Service) Create(ctx context.Context, walletID string, amount decimal.Decimal) (cinema.Response, error) {
	_, err := s.bus.Dispatch(ctx, CreateWallet{WalletID: walletID, InitialAmount: amount})
	return cinema.ResponseFor(err, "wallet created")
}

// Charge reports a charge the balance cannot cover as a NOT_SUFFICIENT_FUNDS
// failure, although the rejection itself is recorded on the stream.
func (s *Service) Charge(ctx context.Context, walletID, expenseID string, amount decimal.Decimal, commandID string) (cinema.Response, error) {
	result, err := s.bus.Dispatch(ctx, ChargeWallet{
		WalletID:  walletID,
		ExpenseID: expenseID,
		Amount:    amount,
		CommandID: commandID,
	})
	resp, err := cinema.ResponseFor(err, "wallet charged")
	if err != nil || !resp.Success {
		return resp, err
	}

	for _, ev := range result.Events {
		if _, ok := ev.(*WalletChargeRejected); ok {
			return cinema.Failed(cinema.CodeNotSufficientFunds, "balance too low to charge "+amount.String()), nil
		}
	}
	return resp, nil
}

func (s *Service) Refund(ctx context.Context, walletID, expenseID, commandID string) (cinema.Response, error) {
	_, err := s.bus.Dispatch(ctx, Refund{WalletID: walletID, ExpenseID: expenseID, CommandID: commandID})
	return cinema.ResponseFor(err, "expense refunded")
}

func (s *Service) Deposit(ctx context.Context, walletID string, amount decimal.Decimal, commandID string) (cinema.Response, error) {
	_, err := s.bus.Dispatch(ctx, DepositFunds{WalletID: walletID, Amount: amount, CommandID: commandID})
	return cinema.ResponseFor(err, "funds deposited")
}

// Get replays the wallet. A wallet that was never created is a
// WALLET_NOT_FOUND *cinema.Error.
func (s *Service) Get(ctx context.Context, walletID string) (Wallet, error) {
	state, _, err := cqrs.Hydrate(ctx, s.store, StreamID(walletID), Wallet{}, Evolve, s.snapshots)
	if err != nil {
		return Wallet{}, err
	}
	if !state.Exists() {
		return Wallet{}, cinema.NewError(cinema.CodeWalletNotFound, "wallet %s not found", walletID)
	}
	return state, nil
}

func (s *Service) Balance(ctx context.Context, walletID string) (Balance, error) {
	w, err := s.Get(ctx, walletID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{ID: w.ID, Balance: w.Balance}, nil
}
