package boot

// State is a step of the control transfer.
type State int

const (
	Idle State = iota
	ReadingVector
	Validating
	Transferring
	// ApplicationRunning is terminal: control has passed to
	// the application.
	ApplicationRunning
	// Failed is terminal: the failure indicator runs forever.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ReadingVector:
		return "reading-vector"
	case Validating:
		return "validating"
	case Transferring:
		return "transferring"
	case ApplicationRunning:
		return "application-running"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == ApplicationRunning || s == Failed
}
