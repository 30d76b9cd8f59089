package stream

// State is the lifecycle state of the single streaming connection. All
// transitions are driven by the Manager.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	// StateClosedExpected marks a teardown the Manager initiated itself,
	// typically after a complete event. It never produces a notification.
	StateClosedExpected
	// StateClosedError marks any closure the Manager did not initiate.
	StateClosedError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosedExpected:
		return "closed"
	case StateClosedError:
		return "disconnected"
	default:
		return "unknown"
	}
}

// NoticeKind classifies user-visible notifications from the Manager.
type NoticeKind int

const (
	// NoticeConnectionLost is a transport failure; reconnection is already
	// scheduled when it is emitted.
	NoticeConnectionLost NoticeKind = iota
	// NoticeStreamError carries the content of an explicit error event,
	// surfaced verbatim.
	NoticeStreamError
)

// Notification is a transient, non-blocking message for the user. Attempt
// carries the reconnect counter so a host can impose its own retry ceiling.
type Notification struct {
	Kind    NoticeKind
	Message string
	Attempt int
}
