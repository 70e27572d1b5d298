package health

import (
	"context"
	"strings"
)

// SeatCheckPrefix prefixes the check name of every seat.
const SeatCheckPrefix = "seat:"

// Prober probes one seat's backend. dispatch.Dispatcher implements it.
type Prober interface {
	Probe(ctx context.Context, seatID string) error
}

// RegisterSeats registers one readiness check per seat. A seat is ready
// when its backend answers the health probe and its circuit is closed.
func (c *Checker) RegisterSeats(p Prober, seatIDs []string) {
	for _, id := range seatIDs {
		seatID := id
		c.RegisterCheck(SeatCheckPrefix+seatID, func(ctx context.Context) error {
			return p.Probe(ctx, seatID)
		})
	}
}

// SeatID returns the seat id of a seat check name.
func SeatID(checkName string) (string, bool) {
	return strings.CutPrefix(checkName, SeatCheckPrefix)
}
