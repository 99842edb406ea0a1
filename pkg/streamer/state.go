package streamer

// State is a step of a single Execute call:
//
//	Connecting → Streaming → Finalizing → Done
//	     └───────────┴────────────┴─────→ Failed
type State int

const (
	StateConnecting State = iota
	StateStreaming
	StateFinalizing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
