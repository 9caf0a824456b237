package wallet

import (
	"fmt"

	"github.com/terraskye/cinema"
	cqrs "github.com/terraskye/cinema/eventsourcing"
)

// Decide validates cmd against the wallet and returns the resulting events.
// Command ids already applied to the wallet are rejected before anything
// else is checked.
func Decide(state Wallet, cmd Command) ([]cqrs.Event, error) {
	switch c := cmd.(type) {
	case CreateWallet:
		if state.Exists() {
			return nil, cinema.NewError(cinema.CodeWalletAlreadyExists, "wallet %s already exists", c.WalletID)
		}
		return []cqrs.Event{&WalletCreated{WalletID: c.WalletID, InitialAmount: c.InitialAmount}}, nil

	case ChargeWallet:
		if err := validate(state, c.WalletID, c.CommandID); err != nil {
			return nil, err
		}
		if state.Balance.LessThan(c.Amount) {
			return []cqrs.Event{&WalletChargeRejected{
				WalletID:  state.ID,
				ExpenseID: c.ExpenseID,
				CommandID: c.CommandID,
			}}, nil
		}
		return []cqrs.Event{&WalletCharged{
			WalletID:  state.ID,
			Amount:    c.Amount,
			ExpenseID: c.ExpenseID,
			CommandID: c.CommandID,
		}}, nil

	case Refund:
		if err := validate(state, c.WalletID, c.CommandID); err != nil {
			return nil, err
		}
		expense, ok := state.Expenses[c.ExpenseID]
		if !ok {
			return nil, cinema.NewError(cinema.CodeExpenseNotFound, "expense %s not found", c.ExpenseID)
		}
		return []cqrs.Event{&WalletRefunded{
			WalletID:  state.ID,
			Amount:    expense.Amount,
			ExpenseID: expense.ExpenseID,
			CommandID: c.CommandID,
		}}, nil

	case DepositFunds:
		if err := validate(state, c.WalletID, c.CommandID); err != nil {
			return nil, err
		}
		if !c.Amount.IsPositive() {
			return nil, cinema.NewError(cinema.CodeDepositNotPositive, "deposit must be positive, got %s", c.Amount)
		}
		return []cqrs.Event{&FundsDeposited{WalletID: state.ID, Amount: c.Amount, CommandID: c.CommandID}}, nil

	default:
		panic(fmt.Sprintf("wallet: unhandled command %T", cmd))
	}
}

func validate(state Wallet, walletID, commandID string) error {
	if state.isDuplicate(commandID) {
		return cinema.ErrDuplicatedCommand
	}
	if !state.Exists() {
		return cinema.NewError(cinema.CodeWalletNotFound, "wallet %s not found", walletID)
	}
	return nil
}

func decider[C Command]() cqrs.Decider[Wallet, C] {
	return func(state Wallet, cmd C) ([]cqrs.Event, error) {
		return Decide(state, cmd)
	}
}
