package quota

import "time"

// =============================================================================
// PERIOD - The inclusive window a target is measured over
// =============================================================================

// Period is an inclusive [Start, End] range of calendar days.
type Period struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// ContainsRaw parses a stored record date and checks it against the window.
// Unparseable dates are outside every window.
func (p Period) ContainsRaw(raw string) bool {
	d, ok := ParseDate(raw)
	return ok && p.Contains(d)
}

// Days returns the number of calendar days in the window.
func (p Period) Days() int {
	return int(p.End.Time.Sub(p.Start.Time).Hours()/24) + 1
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// DURATION - How a target's window is derived when no dates are stored
// =============================================================================

type Duration string

const (
	DurationDaily   Duration = "daily"
	DurationWeekly  Duration = "weekly"
	DurationMonthly Duration = "monthly"
	DurationYearly  Duration = "yearly"
)

// Valid reports whether d is one of the four known durations.
func (d Duration) Valid() bool {
	switch d {
	case DurationDaily, DurationWeekly, DurationMonthly, DurationYearly:
		return true
	}
	return false
}

// PeriodFor returns the window of this duration that contains today.
// Unknown durations behave like daily.
func (d Duration) PeriodFor(today Date) Period {
	switch d {
	case DurationWeekly:
		monday := StartOfWeek(today)
		return Period{Start: monday, End: monday.AddDays(6)}

	case DurationMonthly:
		return Period{
			Start: StartOfMonth(today.Year(), today.Month()),
			End:   EndOfMonth(today.Year(), today.Month()),
		}

	case DurationYearly:
		return Period{Start: StartOfYear(today.Year()), End: EndOfYear(today.Year())}

	default:
		return Period{Start: today, End: today}
	}
}

// =============================================================================
// WINDOW RESOLUTION
// =============================================================================

// ResolveWindow fixes the measurement window of a target relative to now.
//
// Explicit start and end dates win when both parse. Otherwise the window
// comes from the duration type, anchored on now's calendar day in now's
// location. Malformed explicit dates never fail; they fall back.
func ResolveWindow(t Target, now time.Time) Period {
	if start, ok := ParseDate(t.StartDate); ok {
		if end, ok := ParseDate(t.EndDate); ok {
			return Period{Start: start, End: end}
		}
	}
	return t.Duration.PeriodFor(DateOf(now))
}
