package session

// State is the controller's position in the join/leave lifecycle.
type State int

const (
	StateIdle State = iota
	StateAcquiringToken
	StateJoining
	StateJoined
	StateRenewing
	StateLeaving
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiringToken:
		return "acquiring_token"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateRenewing:
		return "renewing"
	case StateLeaving:
		return "leaving"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
