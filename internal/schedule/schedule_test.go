package schedule

import (
	"errors"
	"testing"
	"time"
)

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []string{
		"a;09:30;b",
		"/tmp/data;14:05;daily",
		"/srv/www;00:00;midnight",
		"rel/dir;23:59;late",
	}
	for _, raw := range tests {
		raw := raw
		t.Run(raw, func(t *testing.T) {
			s, err := Parse(raw)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", raw, err)
			}
			if got := s.String(); got != raw {
				t.Fatalf("String() = %q, want %q", got, raw)
			}
		})
	}
}

func TestParseFields(t *testing.T) {
	t.Parallel()
	s, err := Parse("/tmp/data;14:05;daily")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if s.SourcePath != "/tmp/data" || s.Hour != 14 || s.Minute != 5 || s.BackupName != "daily" {
		t.Fatalf("unexpected schedule: %+v", s)
	}
	if s.TimeOfDay() != "14:05" {
		t.Fatalf("TimeOfDay() = %q", s.TimeOfDay())
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "two fields", raw: "a;09:30"},
		{name: "four fields", raw: "a;09:30;b;c"},
		{name: "empty source", raw: ";09:30;b"},
		{name: "empty time", raw: "a;;b"},
		{name: "empty name", raw: "a;09:30;"},
		{name: "hour 24", raw: "a;24:00;b"},
		{name: "minute 60", raw: "a;12:60;b"},
		{name: "negative hour", raw: "a;-1:10;b"},
		{name: "single digits", raw: "a;9:5;b"},
		{name: "no colon", raw: "a;0930;b"},
		{name: "three parts", raw: "a;09:30:00;b"},
		{name: "letters", raw: "a;ab:cd;b"},
		{name: "signed", raw: "a;+1:10;b"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			if !errors.Is(err, ErrMalformedSchedule) {
				t.Fatalf("Parse(%q) err = %v, want ErrMalformedSchedule", tt.raw, err)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()
	src, tod, name, ok := Split("/tmp/x;9:5;n")
	if !ok || src != "/tmp/x" || tod != "9:5" || name != "n" {
		t.Fatalf("unexpected split: %q %q %q %v", src, tod, name, ok)
	}
	if _, _, _, ok := Split("only;two"); ok {
		t.Fatal("expected split failure for two fields")
	}
}

func TestNextRun(t *testing.T) {
	t.Parallel()
	s := Schedule{SourcePath: "/x", Hour: 14, Minute: 5, BackupName: "n"}
	loc := time.Local

	before := time.Date(2026, 10, 15, 13, 0, 0, 0, loc)
	if got, want := NextRun(s, before), time.Date(2026, 10, 15, 14, 5, 0, 0, loc); !got.Equal(want) {
		t.Fatalf("NextRun before = %v, want %v", got, want)
	}

	after := time.Date(2026, 10, 15, 14, 5, 0, 0, loc)
	if got, want := NextRun(s, after), time.Date(2026, 10, 16, 14, 5, 0, 0, loc); !got.Equal(want) {
		t.Fatalf("NextRun at fire time = %v, want %v", got, want)
	}
}
