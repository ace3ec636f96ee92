package relay

import "time"

// DefaultSimulationInterval is the delay between revealed words of a
// simulated stream.
const DefaultSimulationInterval = 70 * time.Millisecond

// PartialPolicy decides what happens to partially streamed content when the
// server declares an error mid-stream.
type PartialPolicy int

const (
	PartialDiscard PartialPolicy = iota // Drop the partial message.
	PartialKeep                         // Commit the partial message before the error.
)

// Config holds the service settings the core honors.
type Config struct {
	// Simulate reveals whole payloads word by word instead of committing them at once.
	Simulate bool
	// SimulationInterval is the delay between revealed words; zero reveals without waiting.
	SimulationInterval time.Duration
	// StreamEndMarker, when set, switches duplex simulation to server-driven
	// streaming: payloads are upserted into the role's stream until one whose
	// text or html equals the marker finalizes it.
	StreamEndMarker string
	// DisplayServiceErrors shows server-declared error text verbatim.
	DisplayServiceErrors bool
	// PartialOnError applies to server-declared errors on a server stream.
	PartialOnError PartialPolicy

	// MaxMessages limits the history sent with a request; zero means unlimited.
	MaxMessages int
	// MaxHistoryChars limits the total history text sent; zero means unlimited.
	MaxHistoryChars int
	// Extra holds static fields merged into every request body.
	Extra map[string]any

	RequestInterceptor  RequestInterceptor
	ResponseInterceptor ResponseInterceptor
}

// DefaultConfig returns the default service settings.
func DefaultConfig() Config {
	return Config{
		SimulationInterval: DefaultSimulationInterval,
	}
}
