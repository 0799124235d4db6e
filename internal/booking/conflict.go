package booking

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the interval has positive length.
func (iv Interval) Valid() bool {
	return iv.Start.Before(iv.End)
}

// Overlaps reports whether two half-open intervals intersect. Back-to-back
// intervals, where one ends exactly when the other starts, do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && iv.End.After(other.Start)
}

// Entry is a confirmed reservation considered during conflict detection.
type Entry struct {
	EventID  string
	Interval Interval
}

// Conflict identifies an existing reservation that collides with a candidate
// interval.
type Conflict struct {
	EventID  string
	Interval Interval
}

// FindConflict returns the first entry whose interval overlaps the candidate.
// An entry matching excludeEventID is skipped, which lets update-in-place
// checks ignore the event being moved.
func FindConflict(existing []Entry, candidate Interval, excludeEventID string) (Conflict, bool) {
	for _, entry := range existing {
		if excludeEventID != "" && entry.EventID == excludeEventID {
			continue
		}
		if candidate.Overlaps(entry.Interval) {
			return Conflict{EventID: entry.EventID, Interval: entry.Interval}, true
		}
	}
	return Conflict{}, false
}

// FindConflicts returns every entry whose interval overlaps the candidate,
// preserving the input order.
func FindConflicts(existing []Entry, candidate Interval, excludeEventID string) []Conflict {
	var conflicts []Conflict
	for _, entry := range existing {
		if excludeEventID != "" && entry.EventID == excludeEventID {
			continue
		}
		if candidate.Overlaps(entry.Interval) {
			conflicts = append(conflicts, Conflict{EventID: entry.EventID, Interval: entry.Interval})
		}
	}
	return conflicts
}
