package availability

import "time"

// Location is the business's fixed UTC+9 offset. The offset never shifts
// (no DST), so a fixed zone is enough and no tzdata lookup happens.
var Location = time.FixedZone("JST", 9*60*60)

const (
	// SlotStep is the booking granularity.
	SlotStep = 30 * time.Minute

	windowOpenHour = 12
	windowHours    = 17
)

// Window returns the absolute start and end of the business window for the
// given civil day: local 12:00 through local 05:00 on the following day.
// An earlier revision closed the window at 01:00, but booking validation has
// always accepted times through 05:00, so 05:00 is the canonical close.
func Window(year int, month time.Month, day int) (time.Time, time.Time) {
	start := time.Date(year, month, day, windowOpenHour, 0, 0, 0, Location)
	return start.UTC(), start.Add(windowHours * time.Hour).UTC()
}

// Label formats an instant as local wall-clock HH:MM. Slots past midnight
// label as 00:00-04:30; the calendar rollover is not reflected in the label.
func Label(t time.Time) string {
	return t.In(Location).Format("15:04")
}
