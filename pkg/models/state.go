package models

// RunState is the lifecycle state of the send/check cycle
type RunState int

const (
	StateIdle RunState = iota
	StateRunning
	StateStopped
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
