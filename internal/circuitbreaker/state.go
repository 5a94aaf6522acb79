package circuitbreaker

type State int

const (
	// requests pass through
	StateClosed State = iota

	// requests fail immediately
	StateOpen

	// one probe request decides whether to close again
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
