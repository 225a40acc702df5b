package retriever

// State is the lifecycle state of a Retriever.
type State int32

const (
	// StateUnopened is the state of a new Retriever before Load.
	StateUnopened State = iota
	// StateReady means both artifacts are loaded and validated.
	StateReady
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
