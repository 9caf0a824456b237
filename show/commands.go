package show

// Command is the closed set of commands a show accepts.
type Command interface {
	AggregateID() string
	isShowCommand()
}

type CreateShow struct {
	ShowID   string
	Title    string
	MaxSeats int
}

type ReserveSeat struct {
	ShowID        string
	WalletID      string
	ReservationID string
	SeatNumber    int
}

type ConfirmReservationPayment struct {
	ShowID        string
	ReservationID string
}

type CancelSeatReservation struct {
	ShowID        string
	ReservationID string
}

func (c CreateShow) AggregateID() string                { return c.ShowID }
func (c ReserveSeat) AggregateID() string               { return c.ShowID }
func (c ConfirmReservationPayment) AggregateID() string { return c.ShowID }
func (c CancelSeatReservation) AggregateID() string     { return c.ShowID }

func (CreateShow) isShowCommand()                {}
func (ReserveSeat) isShowCommand()               {}
func (ConfirmReservationPayment) isShowCommand() {}
func (CancelSeatReservation) isShowCommand()     {}
