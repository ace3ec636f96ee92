package relay

// WordChunks exposes wordChunks to external tests.
var WordChunks = wordChunks

// ExchangeState exposes exchangeState to external tests.
type ExchangeState = exchangeState

const (
	ExchangeOpening = exchangeOpening
	ExchangeOpen    = exchangeOpen
	ExchangeClosed  = exchangeClosed
	ExchangeAborted = exchangeAborted
)

// Terminal exposes exchangeState.terminal to external tests.
func (s exchangeState) Terminal() bool { return s.terminal() }
