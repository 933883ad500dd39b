package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatal("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}

	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok = ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatal("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}

	if _, ok := ParseTime(""); ok {
		t.Fatal("empty string parsed")
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	if got := ParseTimeDefault("", def); !got.Equal(def) {
		t.Fatal("expected default")
	}
}

func TestParseDate(t *testing.T) {
	got, ok := ParseDate("2023-09-30")
	if !ok {
		t.Fatal("expected ok")
	}
	if got.Year() != 2023 || got.Month() != time.September || got.Day() != 30 {
		t.Fatalf("unexpected date %v", got)
	}

	if _, ok := ParseDate("not-a-date"); ok {
		t.Fatal("garbage parsed")
	}
	if _, ok := ParseDate(""); ok {
		t.Fatal("empty string parsed")
	}
}
