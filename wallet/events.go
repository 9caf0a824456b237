package wallet

import (
	"github.com/shopspring/decimal"
	cqrs "github.com/terraskye/cinema/eventsourcing"
)

// Event is the closed set of events recorded on a wallet stream.
type Event interface {
	cqrs.Event
	isWalletEvent()
}

type WalletCreated struct {
	WalletID      string          `json:"walletId"`
	InitialAmount decimal.Decimal `json:"initialAmount"`
}

type WalletCharged struct {
	WalletID  string          `json:"walletId"`
	Amount    decimal.Decimal `json:"amount"`
	ExpenseID string          `json:"expenseId"`
	CommandID string          `json:"commandId"`
}

// WalletChargeRejected records a charge the balance could not cover.
type WalletChargeRejected struct {
	WalletID  string `json:"walletId"`
	ExpenseID string `json:"expenseId"`
	CommandID string `json:"commandId"`
}

type WalletRefunded struct {
	WalletID  string          `json:"walletId"`
	Amount    decimal.Decimal `json:"amount"`
	ExpenseID string          `json:"expenseId"`
	CommandID string          `json:"commandId"`
}

type FundsDeposited struct {
	WalletID  string          `json:"walletId"`
	Amount    decimal.Decimal `json:"amount"`
	CommandID string          `json:"commandId"`
}

func (e *WalletCreated) AggregateID() string        { return e.WalletID }
func (e *WalletCharged) AggregateID() string        { return e.WalletID }
func (e *WalletChargeRejected) AggregateID() string { return e.WalletID }
func (e *WalletRefunded) AggregateID() string       { return e.WalletID }
func (e *FundsDeposited) AggregateID() string       { return e.WalletID }

func (e *WalletCreated) EventType() string        { return "WalletCreated" }
func (e *WalletCharged) EventType() string        { return "WalletCharged" }
func (e *WalletChargeRejected) EventType() string { return "WalletChargeRejected" }
func (e *WalletRefunded) EventType() string       { return "WalletRefunded" }
func (e *FundsDeposited) EventType() string       { return "FundsDeposited" }

func (*WalletCreated) isWalletEvent()        {}
func (*WalletCharged) isWalletEvent()        {}
func (*WalletChargeRejected) isWalletEvent() {}
func (*WalletRefunded) isWalletEvent()       {}
func (*FundsDeposited) isWalletEvent()       {}

func init() {
	cqrs.RegisterEvents(
		func() cqrs.Event { return &WalletCreated{} },
		func() cqrs.Event { return &WalletCharged{} },
		func() cqrs.Event { return &WalletChargeRejected{} },
		func() cqrs.Event { return &WalletRefunded{} },
		func() cqrs.Event { return &FundsDeposited{} },
	)
}
