package cinema_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/terraskye/cinema"
	cqrs "github.com/terraskye/cinema/eventsourcing"
)

func TestCodeOfThroughWrapping(t *testing.T) {
	err := fmt.Errorf("handle command: %w: %w", cqrs.ErrBusinessRuleViolation, cinema.NewError(cinema.CodeSeatNotAvailable, "seat %d", 3))

	code, ok := cinema.CodeOf(err)
	if !ok || code != cinema.CodeSeatNotAvailable {
		t.Fatalf("CodeOf = %q, %v", code, ok)
	}
	if !errors.Is(err, &cinema.Error{Code: cinema.CodeSeatNotAvailable}) {
		t.Fatal("errors.Is should match on code")
	}
	if _, ok := cinema.CodeOf(errors.New("timeout")); ok {
		t.Fatal("plain errors have no code")
	}
}

func TestResponseFor(t *testing.T) {
	wrap := func(e error) error { return fmt.Errorf("%w: %w", cqrs.ErrBusinessRuleViolation, e) }
	transient := errors.New("store unreachable")

	tests := []struct {
		name    string
		err     error
		want    cinema.Response
		wantErr error
	}{
		{name: "success", want: cinema.Succeeded("ok")},
		{name: "duplicate", err: wrap(cinema.ErrDuplicatedCommand), want: cinema.Response{Success: true, Code: cinema.CodeDuplicatedCommand, Message: "command already applied"}},
		{name: "business", err: wrap(cinema.NewError(cinema.CodeWalletNotFound, "wallet w")), want: cinema.Failed(cinema.CodeWalletNotFound, "wallet w")},
		{name: "transient", err: transient, wantErr: transient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cinema.ResponseFor(tt.err, "ok")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("response = %+v, want %+v", got, tt.want)
			}
		})
	}
}
