package enums

import "fmt"

// ReservationState tracks the lifecycle of a stock hold.
type ReservationState string

const (
	ReservationStateHeld      ReservationState = "held"
	ReservationStateConfirmed ReservationState = "confirmed"
	ReservationStateReleased  ReservationState = "released"
	ReservationStateExpired   ReservationState = "expired"
)

var validReservationStates = []ReservationState{
	ReservationStateHeld,
	ReservationStateConfirmed,
	ReservationStateReleased,
	ReservationStateExpired,
}

// String implements fmt.Stringer.
func (s ReservationState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReservationState.
func (s ReservationState) IsValid() bool {
	for _, candidate := range validReservationStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s ReservationState) IsTerminal() bool {
	return s == ReservationStateReleased || s == ReservationStateExpired
}

// HoldsStock reports whether the reservation still counts against reserved_qty.
func (s ReservationState) HoldsStock() bool {
	return s == ReservationStateHeld || s == ReservationStateConfirmed
}

// ParseReservationState converts raw input into a ReservationState.
func ParseReservationState(value string) (ReservationState, error) {
	for _, candidate := range validReservationStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reservation state %q", value)
}
