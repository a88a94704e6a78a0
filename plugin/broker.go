package plugin

type (
	// Notification tells the UI about a change of the host transport. Only
	// the fields relevant to Kind are set.
	Notification struct {
		Kind     NotificationKind
		Playing  bool
		Position float32 // seconds
	}

	NotificationKind int
)

const (
	PlayingChanged NotificationKind = iota + 1
	PositionChanged
)

func (k NotificationKind) String() string {
	switch k {
	case PlayingChanged:
		return "playing changed"
	case PositionChanged:
		return "position changed"
	}
	return "unknown"
}

// TrySend sends v to c if c is not full. It never blocks. Returns true if the
// value was sent.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}
