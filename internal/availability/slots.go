package availability

import "time"

// Slot is one bookable 30-minute start instant inside a business window.
type Slot struct {
	StartAt   time.Time
	Label     string
	Available bool
}

// Slots returns the candidate slot starts in [windowStart, windowEnd) at
// SlotStep intervals, in ascending order. The interval is half-open: the
// window-end instant itself (local 05:00) is never generated, even though
// booking validation accepts it as a direct request.
func Slots(windowStart, windowEnd time.Time) []Slot {
	var slots []Slot
	for t := windowStart; t.Before(windowEnd); t = t.Add(SlotStep) {
		slots = append(slots, Slot{StartAt: t, Label: Label(t)})
	}
	return slots
}

// Resolve marks each slot's availability against the already-booked start
// instants and the current time. A slot is available iff its start is
// strictly in the future and no booking holds it. Slots are never removed
// from the list, so fully-booked days still render every slot.
func Resolve(slots []Slot, booked []time.Time, now time.Time) []Slot {
	out := make([]Slot, len(slots))
	for i, s := range slots {
		s.Available = s.StartAt.After(now) && !containsInstant(booked, s.StartAt)
		out[i] = s
	}
	return out
}

func containsInstant(set []time.Time, t time.Time) bool {
	for _, b := range set {
		if b.Equal(t) {
			return true
		}
	}
	return false
}
