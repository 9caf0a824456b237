package wallet

import "github.com/shopspring/decimal"

// Command is the closed set of commands a wallet accepts.
type Command interface {
	AggregateID() string
	isWalletCommand()
}

type CreateWallet struct {
	WalletID      string
	InitialAmount decimal.Decimal
}

// ChargeWallet takes Amount from the wallet and records it as ExpenseID.
type ChargeWallet struct {
	WalletID  string
	ExpenseID string
	Amount    decimal.Decimal
	CommandID string
}

// Refund gives the amount of ExpenseID back.
type Refund struct {
	WalletID  string
	ExpenseID string
	CommandID string
}

type DepositFunds struct {
	WalletID  string
	Amount    decimal.Decimal
	CommandID string
}

func (c CreateWallet) AggregateID() string { return c.WalletID }
func (c ChargeWallet) AggregateID() string { return c.WalletID }
func (c Refund) AggregateID() string       { return c.WalletID }
func (c DepositFunds) AggregateID() string { return c.WalletID }

func (CreateWallet) isWalletCommand() {}
func (ChargeWallet) isWalletCommand() {}
func (Refund) isWalletCommand()       {}
func (DepositFunds) isWalletCommand() {}
