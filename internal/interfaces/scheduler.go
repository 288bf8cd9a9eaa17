package interfaces

import "time"

// Handle is a scheduled task. Cancel is idempotent.
type Handle interface {
	Cancel()
}

// Scheduler runs fn once immediately and then once per interval until the
// returned handle is cancelled. Calls of fn for one task never overlap.
type Scheduler interface {
	Every(interval time.Duration, fn func()) Handle
}
