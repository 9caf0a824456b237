// Package wallet is the event-sourced balance of a customer.
package wallet

import (
	"maps"

	"github.com/shopspring/decimal"
)

const StreamPrefix = "wallet"

type Expense struct {
	ExpenseID string          `json:"expenseId"`
	Amount    decimal.Decimal `json:"amount"`
}

// Wallet is the state of one wallet. The zero value, with an empty ID, is a
// wallet that was never created.
type Wallet struct {
	ID         string              `json:"id"`
	Balance    decimal.Decimal     `json:"balance"`
	Expenses   map[string]Expense  `json:"expenses"`
	CommandIDs map[string]struct{} `json:"commandIds"`
}

func (w Wallet) Exists() bool { return w.ID != "" }

func (w Wallet) isDuplicate(commandID string) bool {
	_, ok := w.CommandIDs[commandID]
	return ok
}

// clone copies the maps of w, allocating them when w has none yet.
func (w Wallet) clone() Wallet {
	next := w
	next.Expenses = maps.Clone(w.Expenses)
	if next.Expenses == nil {
		next.Expenses = map[string]Expense{}
	}
	next.CommandIDs = maps.Clone(w.CommandIDs)
	if next.CommandIDs == nil {
		next.CommandIDs = map[string]struct{}{}
	}
	return next
}

// Balance is the public view of a wallet.
type Balance struct {
	ID      string          `json:"id"`
	Balance decimal.Decimal `json:"balance"`
}
