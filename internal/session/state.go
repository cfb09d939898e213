package session

// State is the lifecycle state of the controller
type State int

const (
	StateIdle       State = iota // Never configured
	StateConfigured              // Language pair stored, nothing running
	StateRunning                 // Continuous recognition in progress
	StateStopped                 // Last session was stopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
