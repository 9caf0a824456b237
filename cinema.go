// Package cinema holds the vocabulary shared by the show, wallet and
// reservation packages: business error codes and the command Response.
package cinema

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Code is the machine readable outcome of a command.
type Code string

const (
	CodeShowAlreadyExists              Code = "SHOW_ALREADY_EXISTS"
	CodeTooManySeats                   Code = "TOO_MANY_SEATS"
	CodeInvalidSeatCount               Code = "INVALID_SEAT_COUNT"
	CodeShowNotFound                   Code = "SHOW_NOT_FOUND"
	CodeSeatNotFound                   Code = "SEAT_NOT_FOUND"
	CodeSeatNotAvailable               Code = "SEAT_NOT_AVAILABLE"
	CodeReservationNotFound            Code = "RESERVATION_NOT_FOUND"
	CodeCancellingConfirmedReservation Code = "CANCELLING_CONFIRMED_RESERVATION"
	CodeCancelledReservationConfirmed  Code = "CANCELLED_RESERVATION_CONFIRMED"

	CodeWalletAlreadyExists Code = "WALLET_ALREADY_EXISTS"
	CodeWalletNotFound      Code = "WALLET_NOT_FOUND"
	CodeNotSufficientFunds  Code = "NOT_SUFFICIENT_FUNDS"
	CodeExpenseNotFound     Code = "EXPENSE_NOT_FOUND"
	CodeDepositNotPositive  Code = "DEPOSIT_NOT_POSITIVE"

	CodeDuplicatedCommand Code = "DUPLICATED_COMMAND"
)

// Error is a business rule violation. It never changes state and is never
// retried.
type Error struct {
	Code    Code
	Message string
}

func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// ErrDuplicatedCommand is what deciders return for a command that was
// already applied.
var ErrDuplicatedCommand = &Error{Code: CodeDuplicatedCommand, Message: "command already applied"}

// Response is the outcome of a command as seen by its caller. Code is set
// on failures and on the successful short-circuits DUPLICATED_COMMAND and
// CANCELLED_RESERVATION_CONFIRMED.
type Response struct {
	Success bool   `json:"success"`
	Code    Code   `json:"code,omitempty"`
	Message string `json:"message"`
}

func Succeeded(message string) Response {
	return Response{Success: true, Message: message}
}

func Failed(code Code, message string) Response {
	return Response{Code: code, Message: message}
}

// IsDuplicate reports whether the command had already been applied.
func (r Response) IsDuplicate() bool {
	return r.Success && r.Code == CodeDuplicatedCommand
}

// ResponseFor turns a command handler error into a Response. Business
// errors become failed responses, duplicates a successful one; anything
// else is returned as a transient error.
func ResponseFor(err error, success string) (Response, error) {
	if err == nil {
		return Succeeded(success), nil
	}

	var e *Error
	if !errors.As(err, &e) {
		return Response{}, err
	}
	if e.Code == CodeDuplicatedCommand {
		return Response{Success: true, Code: CodeDuplicatedCommand, Message: e.Message}, nil
	}
	return Failed(e.Code, e.Message), nil
}

// ConsistencyViolation is the panic value of an evolve function that is
// handed an event its state cannot have produced. It signals a bug or a
// corrupted stream, never a user error.
type ConsistencyViolation struct {
	StreamID string
	Reason   string
}

func (v ConsistencyViolation) Error() string {
	return fmt.Sprintf("consistency violation on %q: %s", v.StreamID, v.Reason)
}

// ConflictRetry is the backoff command handlers use when two writers race
// on one stream.
func ConflictRetry() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(5*time.Millisecond),
		backoff.WithMaxInterval(100*time.Millisecond),
	), 5)
}
