package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDate(t *testing.T) {
	got, ok := ParseTime("2024-03-15")
	if !ok {
		t.Fatalf("expected ok")
	}
	if FormatDate(got) != "2024-03-15" {
		t.Fatalf("unexpected date %v", got)
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
	got = ParseTimeDefault("not-a-time", def)
	if !got.Equal(def) {
		t.Fatalf("expected default for invalid input")
	}
}

func TestAfterDay(t *testing.T) {
	ref := time.Date(2024, 10, 10, 23, 0, 0, 0, time.UTC)
	if AfterDay(time.Date(2024, 10, 10, 1, 0, 0, 0, time.UTC), ref) {
		t.Fatalf("same day must not be after")
	}
	if !AfterDay(time.Date(2024, 10, 11, 0, 0, 1, 0, time.UTC), ref) {
		t.Fatalf("next day must be after")
	}
}
