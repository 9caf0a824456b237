package choreography

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/terraskye/cinema/show"
)

// Reservation is what the wallet side needs to know about a seat
// reservation that only carries the reservation id.
type Reservation struct {
	ShowID   string
	WalletID string
	Price    decimal.Decimal
}

// Lookup is a read model from reservation id to Reservation. Entries are
// added on SeatReserved and dropped once the seat is paid.
type Lookup struct {
	mu           sync.RWMutex
	reservations map[string]Reservation
}

func NewLookup() *Lookup {
	return &Lookup{reservations: make(map[string]Reservation)}
}

func (l *Lookup) Get(reservationID string) (Reservation, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.reservations[reservationID]
	return r, ok
}

func (l *Lookup) OnSeatReserved(ctx context.Context, ev *show.SeatReserved) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reservations[ev.ReservationID] = Reservation{ShowID: ev.ShowID, WalletID: ev.WalletID, Price: ev.Price}
	return nil
}

func (l *Lookup) OnSeatReservationPaid(ctx context.Context, ev *show.SeatReservationPaid) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.reservations, ev.ReservationID)
	return nil
}
