// Package status is the order lifecycle engine. It owns the per-channel
// transition tables and nothing else: it never touches storage, timestamps,
// or logs. Callers apply the actual mutation under a compare-and-swap on the
// order's current status.
package status

import (
	"errors"
	"fmt"
)

// Channel is the order's origin context. It selects the transition table.
type Channel string

const (
	ChannelOnline Channel = "ONLINE"
	ChannelPOS    Channel = "POS"
)

// Status is an order lifecycle state.
type Status string

const (
	Pending        Status = "PENDING"
	Confirmed      Status = "CONFIRMED"
	Preparing      Status = "PREPARING"
	OutForDelivery Status = "OUT_FOR_DELIVERY"
	Delivered      Status = "DELIVERED"
	Failed         Status = "FAILED"
	Cancelled      Status = "CANCELLED"
)

// ErrMissingReason is returned when an online order is failed without a
// failure reason.
var ErrMissingReason = errors.New("failure reason is required")

// InvalidTransitionError reports a target status outside the allowed-next-set
// for the order's current status under its channel.
type InvalidTransitionError struct {
	Channel Channel
	From    Status
	To      Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s on %s channel", e.From, e.To, e.Channel)
}

// onlineTransitions is the delivery-channel table. Couriers can fail an
// order once it has left the kitchen; customers and staff can cancel only
// before preparation starts.
var onlineTransitions = map[Status][]Status{
	Pending:        {Confirmed, Cancelled},
	Confirmed:      {Preparing, Cancelled},
	Preparing:      {OutForDelivery, Failed},
	OutForDelivery: {Delivered, Failed},
	Delivered:      {},
	Failed:         {},
	Cancelled:      {},
}

// posTransitions is the in-store table. There is no courier leg, so
// OUT_FOR_DELIVERY and FAILED do not exist; DELIVERED means picked up.
var posTransitions = map[Status][]Status{
	Pending:   {Confirmed, Cancelled},
	Confirmed: {Preparing, Cancelled},
	Preparing: {Delivered, Cancelled},
	Delivered: {},
	Cancelled: {},
}

func table(c Channel) map[Status][]Status {
	if c == ChannelPOS {
		return posTransitions
	}
	return onlineTransitions
}

// ValidChannel reports whether c is a known channel.
func ValidChannel(c Channel) bool {
	switch c {
	case ChannelOnline, ChannelPOS:
		return true
	}
	return false
}

// Valid reports whether s exists at all under channel c. A status absent
// from the channel's table (e.g. OUT_FOR_DELIVERY on POS) is invalid, not
// merely terminal.
func Valid(c Channel, s Status) bool {
	_, ok := table(c)[s]
	return ok
}

// ValidTransitions returns the allowed-next-set for s under channel c.
// Drives available actions without duplicating the table at call sites.
func ValidTransitions(c Channel, s Status) []Status {
	next := table(c)[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether s accepts no further transitions under c.
func IsTerminal(c Channel, s Status) bool {
	return len(table(c)[s]) == 0
}

// Check validates a requested transition. Failing an online order requires a
// reason; everything else is table lookup. A nil return means the caller may
// apply the mutation (still guarded on the current status).
func Check(c Channel, from, to Status, reason string) error {
	for _, allowed := range table(c)[from] {
		if allowed == to {
			if to == Failed && reason == "" {
				return ErrMissingReason
			}
			return nil
		}
	}
	return &InvalidTransitionError{Channel: c, From: from, To: to}
}
