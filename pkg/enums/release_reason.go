package enums

import "fmt"

// ReleaseReason records why reserved stock moved back to available.
type ReleaseReason string

const (
	ReleaseReasonCancelled ReleaseReason = "cancelled"
	ReleaseReasonExpired   ReleaseReason = "expired"
	ReleaseReasonManual    ReleaseReason = "manual"
)

var validReleaseReasons = []ReleaseReason{
	ReleaseReasonCancelled,
	ReleaseReasonExpired,
	ReleaseReasonManual,
}

// String implements fmt.Stringer.
func (r ReleaseReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReleaseReason.
func (r ReleaseReason) IsValid() bool {
	for _, candidate := range validReleaseReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// TerminalState returns the reservation state a release with this reason lands in.
func (r ReleaseReason) TerminalState() ReservationState {
	if r == ReleaseReasonExpired {
		return ReservationStateExpired
	}
	return ReservationStateReleased
}

// ParseReleaseReason converts raw input into a ReleaseReason.
func ParseReleaseReason(value string) (ReleaseReason, error) {
	for _, candidate := range validReleaseReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid release reason %q", value)
}
