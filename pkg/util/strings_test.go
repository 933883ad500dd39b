package util

import "testing"

func TestParseIntDefault(t *testing.T) {
	if got := ParseIntDefault("7", 0); got != 7 {
		t.Fatalf("got %d", got)
	}
	if got := ParseIntDefault("", 10); got != 10 {
		t.Fatalf("got %d", got)
	}
	if got := ParseIntDefault("abc", 10); got != 10 {
		t.Fatalf("got %d", got)
	}
}

func TestNormalizeTicker(t *testing.T) {
	cases := map[string]string{
		" aapl ": "AAPL",
		"BRK.B":  "BRK.B",
		"":       "",
	}
	for in, want := range cases {
		if got := NormalizeTicker(in); got != want {
			t.Errorf("NormalizeTicker(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseFloatDefault(t *testing.T) {
	if got := ParseFloatDefault("1.5", 0); got != 1.5 {
		t.Fatalf("got %v", got)
	}
	for _, s := range []string{"", "None", "-", "junk"} {
		if got := ParseFloatDefault(s, 2.5); got != 2.5 {
			t.Fatalf("ParseFloatDefault(%q) = %v", s, got)
		}
	}
}
