package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// AppointmentStatus is a closed set of lifecycle states. The zero value is not
// a valid status.
type AppointmentStatus uint8

const (
	StatusScheduled  AppointmentStatus = 1
	StatusCanceled   AppointmentStatus = 2
	StatusCompleted  AppointmentStatus = 3
	StatusInProgress AppointmentStatus = 4
	StatusNoShow     AppointmentStatus = 5
)

var statusNames = map[AppointmentStatus]string{
	StatusScheduled:  "Scheduled",
	StatusCanceled:   "Canceled",
	StatusCompleted:  "Completed",
	StatusInProgress: "InProgress",
	StatusNoShow:     "NoShow",
}

func (s AppointmentStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

func (s AppointmentStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "AppointmentStatus(" + strconv.Itoa(int(s)) + ")"
}

// ParseStatus accepts the status name in any letter case (with or without
// separators, e.g. "in_progress") or its numeric value.
func ParseStatus(raw string) (AppointmentStatus, error) {
	v := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(v); err == nil {
		s := AppointmentStatus(n)
		if n > 0 && n < 256 && s.Valid() {
			return s, nil
		}
		return 0, fmt.Errorf("unknown appointment status %q", raw)
	}

	norm := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(v))
	for s, name := range statusNames {
		if strings.ToLower(name) == norm {
			return s, nil
		}
	}
	// "cancelled" is a common spelling on inbound requests.
	if norm == "cancelled" {
		return StatusCanceled, nil
	}
	return 0, fmt.Errorf("unknown appointment status %q", raw)
}

func (s AppointmentStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid appointment status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *AppointmentStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
