package sim

import "fmt"

// LunchGroup assigns a teller to one of the lunch windows.
type LunchGroup int

const (
	NoLunch LunchGroup = iota
	LunchGroup1
	LunchGroup2
)

func (g LunchGroup) String() string {
	switch g {
	case LunchGroup1:
		return "group1"
	case LunchGroup2:
		return "group2"
	default:
		return "none"
	}
}

// Window is a half-open interval [Start, End) of simulated minute-of-day.
type Window struct {
	Start float64
	End   float64
}

// Contains reports whether minute falls inside the window.
func (w Window) Contains(minute float64) bool {
	return w.Start <= minute && minute < w.End
}

func (w Window) String() string {
	return fmt.Sprintf("%s-%s", FormatMinuteOfDay(w.Start), FormatMinuteOfDay(w.End))
}

// Schedule holds the lunch windows of the two teller groups. The second
// window starts exactly when the first ends, so at most one group is away at
// any instant.
type Schedule struct {
	group1 Window
	group2 Window
}

// NewSchedule places group 1's lunch at [start, start+length) and group 2's
// immediately after it.
func NewSchedule(start, length float64) Schedule {
	first := Window{Start: start, End: start + length}
	return Schedule{
		group1: first,
		group2: Window{Start: first.End, End: first.End + length},
	}
}

// DefaultSchedule is lunch at 11:30-12:00 for group 1 and 12:00-12:30 for group 2.
func DefaultSchedule() Schedule {
	return NewSchedule(11*60+30, 30)
}

// WindowFor returns the lunch window of group, if it has one.
func (s Schedule) WindowFor(group LunchGroup) (Window, bool) {
	switch group {
	case LunchGroup1:
		return s.group1, true
	case LunchGroup2:
		return s.group2, true
	default:
		return Window{}, false
	}
}

// IsAvailable reports whether a teller in group is at the counter at the
// given minute-of-day. It does not touch teller state.
func (s Schedule) IsAvailable(group LunchGroup, minute float64) bool {
	w, ok := s.WindowFor(group)
	return !ok || !w.Contains(minute)
}

// AssignLunchGroups splits n tellers into two equal halves: the first n/2 go
// to group 1, the next n/2 to group 2. With an odd count the last teller never
// takes lunch, so at least half the tellers are at the counter at any minute.
func AssignLunchGroups(n int) []LunchGroup {
	groups := make([]LunchGroup, n)
	half := n / 2
	for i := 0; i < 2*half; i++ {
		if i < half {
			groups[i] = LunchGroup1
		} else {
			groups[i] = LunchGroup2
		}
	}
	return groups
}
