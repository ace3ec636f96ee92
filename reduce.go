package relay

// Action is the reducer's decision for a single payload.
type Action int

const (
	ActionCommit   Action = iota // Append as a standalone message.
	ActionUpsert                 // Append into the open message stream.
	ActionSimulate               // Reveal the complete payload client-side.
	ActionError                  // Surface the payload's error and end the exchange.
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionCommit:
		return "commit"
	case ActionUpsert:
		return "upsert"
	case ActionSimulate:
		return "simulate"
	case ActionError:
		return "error"
	default:
		return "unknown"
	}
}

// ReduceContext describes the exchange a payload arrived on.
type ReduceContext struct {
	// Simulate is set when whole payloads should be revealed with a typing effect.
	Simulate bool
	// StreamOpen is set when a message stream is open for the payload's role.
	StreamOpen bool
}

// Reduce decides what to do with a validated payload. The first matching
// rule wins: errors, then simulation when no stream is open, then upsert
// into an open stream, then commit.
func Reduce(p Payload, rc ReduceContext) Action {
	switch {
	case p.Error != nil:
		return ActionError
	case rc.Simulate && !rc.StreamOpen:
		return ActionSimulate
	case rc.StreamOpen:
		return ActionUpsert
	default:
		return ActionCommit
	}
}
