package httpapi

import (
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	cqrs "github.com/terraskye/cinema/eventsourcing"
	"github.com/terraskye/cinema/wallet"
)

type createWalletRequest struct {
	InitialAmount decimal.Decimal `json:"initialAmount"`
}

func (s *server) createWallet(c echo.Context) error {
	var body createWalletRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	resp, err := s.Wallets.Create(c.Request().Context(), c.Param("id"), body.InitialAmount)
	return s.respond(c, resp, err)
}

type chargeRequest struct {
	ExpenseID string          `json:"expenseId"`
	Amount    decimal.Decimal `json:"amount"`
	CommandID string          `json:"commandId"`
}

func (s *server) chargeWallet(c echo.Context) error {
	var body chargeRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.ExpenseID == "" || body.CommandID == "" {
		return badRequest(c, "expenseId and commandId are required")
	}
	resp, err := s.Wallets.Charge(c.Request().Context(), c.Param("id"), body.ExpenseID, body.Amount, body.CommandID)
	return s.respond(c, resp, err)
}

type refundRequest struct {
	CommandID string `json:"commandId"`
}

func (s *server) refund(c echo.Context) error {
	var body refundRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.CommandID == "" {
		return badRequest(c, "commandId is required")
	}
	resp, err := s.Wallets.Refund(c.Request().Context(), c.Param("id"), c.Param("expenseId"), body.CommandID)
	return s.respond(c, resp, err)
}

type depositRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	CommandID string          `json:"commandId"`
}

func (s *server) deposit(c echo.Context) error {
	var body depositRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.CommandID == "" {
		return badRequest(c, "commandId is required")
	}
	resp, err := s.Wallets.Deposit(c.Request().Context(), c.Param("id"), body.Amount, body.CommandID)
	return s.respond(c, resp, err)
}

func (s *server) getBalance(c echo.Context) error {
	balance, err := cqrs.NewQueryGateway[wallet.GetBalance, wallet.Balance](s.Queries).
		HandleQuery(c.Request().Context(), wallet.GetBalance{WalletID: c.Param("id")})
	return s.respondQuery(c, balance, err)
}
