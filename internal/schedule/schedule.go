package schedule

import (
	"errors"
	"fmt"
	"strings"
)

const (
	fieldSep = ";"
	timeSep  = ":"
)

var (
	ErrMalformedSchedule = errors.New("malformed schedule")
	ErrIndexOutOfRange   = errors.New("schedule index out of range")
	ErrStoreNotFound     = errors.New("schedule file not found")
)

// Schedule is one daily backup trigger.
// It is never mutated once parsed; the store only appends and removes lines.
type Schedule struct {
	SourcePath string
	Hour       int
	Minute     int
	BackupName string
}

// TimeOfDay returns the HH:MM key the poller compares against wall-clock time.
func (s Schedule) TimeOfDay() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

func (s Schedule) String() string {
	return s.SourcePath + fieldSep + s.TimeOfDay() + fieldSep + s.BackupName
}

// Parse validates raw and returns the schedule it describes.
//
// Time parts must be exactly two digits ("09:05", not "9:5"), so every accepted
// line serializes back to itself and can be matched by the poller.
func Parse(raw string) (Schedule, error) {
	parts := strings.Split(raw, fieldSep)
	if len(parts) != 3 {
		return Schedule{}, malformed(raw, "want 3 fields separated by ';', got %d", len(parts))
	}
	for i, p := range parts {
		if p == "" {
			return Schedule{}, malformed(raw, "field %d is empty", i+1)
		}
	}

	hour, minute, err := parseHHMM(parts[1])
	if err != nil {
		return Schedule{}, malformed(raw, "%v", err)
	}

	return Schedule{
		SourcePath: parts[0],
		Hour:       hour,
		Minute:     minute,
		BackupName: parts[2],
	}, nil
}

// Split breaks a stored line into its three raw fields without validating the
// time. The poller uses it to skip lines written by older validators.
func Split(line string) (source, timeOfDay, name string, ok bool) {
	parts := strings.Split(line, fieldSep)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func parseHHMM(v string) (int, int, error) {
	tp := strings.Split(v, timeSep)
	if len(tp) != 2 {
		return 0, 0, fmt.Errorf("time %q is not HH:MM", v)
	}
	hh, ok := twoDigits(tp[0])
	if !ok {
		return 0, 0, fmt.Errorf("invalid hour in %q", v)
	}
	mm, ok := twoDigits(tp[1])
	if !ok {
		return 0, 0, fmt.Errorf("invalid minute in %q", v)
	}
	if hh > 23 {
		return 0, 0, fmt.Errorf("hour %d out of range 0-23", hh)
	}
	if mm > 59 {
		return 0, 0, fmt.Errorf("minute %d out of range 0-59", mm)
	}
	return hh, mm, nil
}

func twoDigits(s string) (int, bool) {
	if len(s) != 2 {
		return 0, false
	}
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

func malformed(raw, format string, args ...any) error {
	return fmt.Errorf("%w %q: %s", ErrMalformedSchedule, raw, fmt.Sprintf(format, args...))
}
