package domain

import "time"

const (
	MinSlotDuration = 30 * time.Minute
	MaxSlotDuration = 12 * time.Hour
)

// TimeSlot is the half-open UTC interval [start, end) an appointment occupies.
// The zero value is an empty slot; valid slots come from NewTimeSlot.
type TimeSlot struct {
	start time.Time
	end   time.Time
}

// NewTimeSlot validates the interval against now. Checks run in a fixed order
// and the first failure is reported.
func NewTimeSlot(start, end, now time.Time) (TimeSlot, error) {
	start = start.UTC()
	end = end.UTC()

	if !start.After(now) {
		return TimeSlot{}, ruleViolation("appointment cannot be scheduled in the past")
	}
	if !start.Before(end) {
		return TimeSlot{}, ruleViolation("start time must precede end time")
	}
	d := end.Sub(start)
	if d < MinSlotDuration {
		return TimeSlot{}, ruleViolation("appointment must last at least 30 minutes")
	}
	if d > MaxSlotDuration {
		return TimeSlot{}, ruleViolation("appointment cannot last longer than 12 hours")
	}

	return TimeSlot{start: start, end: end}, nil
}

// RestoreTimeSlot rebuilds a persisted slot without validation; stored slots
// may legitimately lie in the past.
func RestoreTimeSlot(start, end time.Time) TimeSlot {
	return TimeSlot{start: start.UTC(), end: end.UTC()}
}

func (s TimeSlot) Start() time.Time { return s.start }

func (s TimeSlot) End() time.Time { return s.end }

func (s TimeSlot) Duration() time.Duration { return s.end.Sub(s.start) }

func (s TimeSlot) IsZero() bool { return s.start.IsZero() && s.end.IsZero() }

// Overlaps reports whether [start, end) intersects the slot. Touching
// endpoints do not overlap.
func (s TimeSlot) Overlaps(start, end time.Time) bool {
	return s.start.Before(end) && s.end.After(start)
}

func (s TimeSlot) OverlapsSlot(other TimeSlot) bool {
	return s.Overlaps(other.start, other.end)
}

func (s TimeSlot) Equal(other TimeSlot) bool {
	return s.start.Equal(other.start) && s.end.Equal(other.end)
}
