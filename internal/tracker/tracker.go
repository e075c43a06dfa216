// Package tracker holds the types shared by rating service integrations
package tracker

// ViewerProgress reports how many episodes the viewer already watched.
// ok is false when there is no rating for the current anime.
type ViewerProgress interface {
	WatchedEpisodes() (episodes int, ok bool)
}

// ProgressFunc adapts a function to ViewerProgress
type ProgressFunc func() (int, bool)

// WatchedEpisodes implements ViewerProgress
func (f ProgressFunc) WatchedEpisodes() (int, bool) {
	return f()
}

// NoProgress is a ViewerProgress without any rating
var NoProgress ViewerProgress = ProgressFunc(func() (int, bool) { return 0, false })

// WatchStatus represents the watching status of a user rate
type WatchStatus string

const (
	StatusPlanned    WatchStatus = "planned"
	StatusWatching   WatchStatus = "watching"
	StatusRewatching WatchStatus = "rewatching"
	StatusCompleted  WatchStatus = "completed"
	StatusOnHold     WatchStatus = "on_hold"
	StatusDropped    WatchStatus = "dropped"
)

// String returns the string representation of WatchStatus
func (s WatchStatus) String() string {
	return string(s)
}

// ParseWatchStatus parses a string into a WatchStatus
func ParseWatchStatus(s string) (WatchStatus, error) {
	switch s {
	case "planned", "plan_to_watch":
		return StatusPlanned, nil
	case "watching", "current":
		return StatusWatching, nil
	case "rewatching", "repeating":
		return StatusRewatching, nil
	case "completed":
		return StatusCompleted, nil
	case "on_hold", "paused":
		return StatusOnHold, nil
	case "dropped":
		return StatusDropped, nil
	default:
		return "", &ErrInvalidStatus{Status: s}
	}
}

// ErrInvalidStatus is returned when an invalid status string is provided
type ErrInvalidStatus struct {
	Status string
}

func (e *ErrInvalidStatus) Error() string {
	return "invalid watch status: " + e.Status
}

// NextStatus is the status a rate moves to when the viewer continues
// watching. Finished or rewatched titles become rewatching; anything else
// becomes watching, and watching turns into completed once the episode count
// reaches total (when total is known).
func NextStatus(current WatchStatus, episodes, total int) WatchStatus {
	next := StatusWatching
	if current == StatusCompleted || current == StatusRewatching {
		next = StatusRewatching
	}
	if next == StatusWatching && episodes > 0 && total > 0 && episodes >= total {
		next = StatusCompleted
	}
	return next
}
