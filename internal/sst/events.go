package sst

// Step identifies the phase a snapshot operation is in.
type Step int

const (
	StepIdle Step = iota
	StepIndexing
	StepCopyingGame
	StepCopyingSaves
)

func (s Step) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepIndexing:
		return "indexing"
	case StepCopyingGame:
		return "copying-game"
	case StepCopyingSaves:
		return "copying-saves"
	default:
		return "unknown"
	}
}

// Observer receives progress notifications during a snapshot operation.
// Notifications are purely informational and are delivered synchronously on
// the goroutine doing the work; implementations must not block for long.
type Observer interface {
	StepChanged(step Step, items int)
	FileStarted(name string, ordinal int)
	FileProgress(p Progress)
}

// NopObserver ignores all notifications.
type NopObserver struct{}

func (NopObserver) StepChanged(Step, int)   {}
func (NopObserver) FileStarted(string, int) {}
func (NopObserver) FileProgress(Progress)   {}

var _ Observer = NopObserver{}
