package wallet

import (
	"fmt"

	"github.com/terraskye/cinema"
	cqrs "github.com/terraskye/cinema/eventsourcing"
)

// Evolve applies one wallet event and returns the next wallet. Maps of the
// previous wallet are never written to.
func Evolve(state Wallet, env *cqrs.Envelope) Wallet {
	violation := func(format string, args ...any) {
		panic(cinema.ConsistencyViolation{StreamID: env.StreamID, Reason: fmt.Sprintf(format, args...)})
	}

	if created, ok := env.Event.(*WalletCreated); ok {
		if state.Exists() {
			violation("wallet %s is already created", state.ID)
		}
		return Wallet{
			ID:         created.WalletID,
			Balance:    created.InitialAmount,
			Expenses:   map[string]Expense{},
			CommandIDs: map[string]struct{}{},
		}
	}

	if !state.Exists() {
		violation("%s applied to a wallet that does not exist", env.Event.EventType())
	}

	switch ev := env.Event.(type) {
	case *WalletCharged:
		next := state.clone()
		next.Balance = state.Balance.Sub(ev.Amount)
		next.Expenses[ev.ExpenseID] = Expense{ExpenseID: ev.ExpenseID, Amount: ev.Amount}
		next.CommandIDs[ev.CommandID] = struct{}{}
		return next

	case *WalletChargeRejected:
		return state

	case *WalletRefunded:
		if _, ok := state.Expenses[ev.ExpenseID]; !ok {
			violation("expense %s not found", ev.ExpenseID)
		}
		next := state.clone()
		next.Balance = state.Balance.Add(ev.Amount)
		delete(next.Expenses, ev.ExpenseID)
		next.CommandIDs[ev.CommandID] = struct{}{}
		return next

	case *FundsDeposited:
		next := state.clone()
		next.Balance = state.Balance.Add(ev.Amount)
		next.CommandIDs[ev.CommandID] = struct{}{}
		return next

	default:
		violation("unknown wallet event %T", env.Event)
		return Wallet{}
	}
}
