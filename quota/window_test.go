package quota_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/target-engine/quota"
)

// =============================================================================
// DURATION WINDOW TESTS
// =============================================================================

func TestResolveWindow_Daily(t *testing.T) {
	w := quota.ResolveWindow(quota.Target{Duration: quota.DurationDaily}, october15())

	assert.Equal(t, day(2025, time.October, 15), w.Start)
	assert.Equal(t, day(2025, time.October, 15), w.End)
	assert.Equal(t, 1, w.Days())
}

func TestResolveWindow_Weekly_MondayStart(t *testing.T) {
	// GIVEN: Wednesday 15 October 2025
	// WHEN: Resolving a weekly target
	// THEN: Monday 13 to Sunday 19

	w := quota.ResolveWindow(quota.Target{Duration: quota.DurationWeekly}, october15())
	assert.Equal(t, day(2025, time.October, 13), w.Start)
	assert.Equal(t, day(2025, time.October, 19), w.End)
	assert.Equal(t, time.Monday, w.Start.Weekday())
}

func TestResolveWindow_Weekly_OnSunday(t *testing.T) {
	sunday := time.Date(2025, time.October, 19, 23, 0, 0, 0, time.UTC)

	w := quota.ResolveWindow(quota.Target{Duration: quota.DurationWeekly}, sunday)
	assert.Equal(t, day(2025, time.October, 13), w.Start)
	assert.Equal(t, day(2025, time.October, 19), w.End)
}

func TestResolveWindow_Monthly_EndIsLastCalendarDay(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		end  quota.Date
	}{
		{"december", time.Date(2025, time.December, 10, 0, 0, 0, 0, time.UTC), day(2025, time.December, 31)},
		{"february leap year", time.Date(2024, time.February, 3, 0, 0, 0, 0, time.UTC), day(2024, time.February, 29)},
		{"february non-leap year", time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC), day(2025, time.February, 28)},
		{"february century non-leap", time.Date(2100, time.February, 1, 0, 0, 0, 0, time.UTC), day(2100, time.February, 28)},
		{"february 400-year leap", time.Date(2000, time.February, 15, 0, 0, 0, 0, time.UTC), day(2000, time.February, 29)},
		{"thirty day month", time.Date(2025, time.April, 30, 0, 0, 0, 0, time.UTC), day(2025, time.April, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := quota.ResolveWindow(quota.Target{Duration: quota.DurationMonthly}, tt.now)
			assert.Equal(t, 1, w.Start.Day())
			assert.Equal(t, tt.now.Month(), w.Start.Month())
			assert.Equal(t, tt.end, w.End)
			assert.Equal(t, time.Month(tt.now.Month()%12+1), w.End.AddDays(1).Month(), "day after end is in the next month")
		})
	}
}

func TestResolveWindow_Yearly(t *testing.T) {
	w := quota.ResolveWindow(quota.Target{Duration: quota.DurationYearly}, october15())

	assert.Equal(t, day(2025, time.January, 1), w.Start)
	assert.Equal(t, day(2025, time.December, 31), w.End)
	assert.Equal(t, 365, w.Days())
}

func TestResolveWindow_UnknownDuration_FallsBackToDaily(t *testing.T) {
	for _, d := range []quota.Duration{"", "quarterly", "MONTHLY"} {
		w := quota.ResolveWindow(quota.Target{Duration: d}, october15())
		assert.Equal(t, quota.Period{Start: day(2025, time.October, 15), End: day(2025, time.October, 15)}, w, "duration %q", d)
	}
}

func TestResolveWindow_UsesCalendarDayOfNowsLocation(t *testing.T) {
	// GIVEN: 23:30 UTC on 31 October is already 1 November in Nairobi
	accra := time.Date(2025, time.October, 31, 23, 30, 0, 0, time.UTC)
	nairobi := accra.In(time.FixedZone("EAT", 3*60*60))

	assert.Equal(t, time.October, quota.ResolveWindow(quota.Target{Duration: quota.DurationMonthly}, accra).Start.Month())
	assert.Equal(t, time.November, quota.ResolveWindow(quota.Target{Duration: quota.DurationMonthly}, nairobi).Start.Month())
}

// =============================================================================
// EXPLICIT DATE TESTS
// =============================================================================

func TestResolveWindow_ExplicitDatesWin(t *testing.T) {
	// GIVEN: A monthly target with an explicit quarter window
	// THEN: The explicit window is used verbatim

	target := quota.Target{
		Duration:  quota.DurationMonthly,
		StartDate: "2025-07-01",
		EndDate:   "2025-09-30",
	}
	w := quota.ResolveWindow(target, october15())
	assert.Equal(t, day(2025, time.July, 1), w.Start)
	assert.Equal(t, day(2025, time.September, 30), w.End)
}

func TestResolveWindow_ExplicitDatetimeForms(t *testing.T) {
	forms := []struct{ start, end string }{
		{"2025-07-01T00:00:00Z", "2025-09-30T23:59:59Z"},
		{"2025-07-01T00:00:00.000Z", "2025-09-30T23:59:59.999Z"},
		{"2025-07-01 08:00:00", "2025-09-30 17:00:00"},
		{"2025-07-01T08:00:00", "2025-09-30T17:00:00"},
		{" 2025-07-01 ", "2025-09-30"},
	}
	for _, f := range forms {
		w := quota.ResolveWindow(quota.Target{Duration: quota.DurationDaily, StartDate: f.start, EndDate: f.end}, october15())
		assert.Equal(t, day(2025, time.July, 1), w.Start, "start %q", f.start)
		assert.Equal(t, day(2025, time.September, 30), w.End, "end %q", f.end)
	}
}

func TestResolveWindow_MalformedExplicitDates_FallBack(t *testing.T) {
	// GIVEN: Explicit dates that cannot both be parsed
	// THEN: No error; the duration window is used

	cases := []quota.Target{
		{Duration: quota.DurationMonthly, StartDate: "not-a-date", EndDate: "2025-09-30"},
		{Duration: quota.DurationMonthly, StartDate: "2025-07-01", EndDate: "31/09/2025"},
		{Duration: quota.DurationMonthly, StartDate: "2025-07-01"},
		{Duration: quota.DurationMonthly, EndDate: "2025-09-30"},
	}
	for _, target := range cases {
		w := quota.ResolveWindow(target, october15())
		assert.Equal(t, day(2025, time.October, 1), w.Start, "start=%q end=%q", target.StartDate, target.EndDate)
		assert.Equal(t, day(2025, time.October, 31), w.End)
	}
}

func TestPeriod_ContainsRaw(t *testing.T) {
	w := quota.Period{Start: day(2025, time.October, 1), End: day(2025, time.October, 31)}

	assert.True(t, w.ContainsRaw("2025-10-01"), "start is inclusive")
	assert.True(t, w.ContainsRaw("2025-10-31"), "end is inclusive")
	assert.True(t, w.ContainsRaw("2025-10-31T22:15:00Z"))
	assert.False(t, w.ContainsRaw("2025-11-01"))
	assert.False(t, w.ContainsRaw("2025-09-30"))
	assert.False(t, w.ContainsRaw(""))
	assert.False(t, w.ContainsRaw("garbage"))
}
