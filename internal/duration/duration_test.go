package duration

import (
	"bytes"
	"strings"
	"testing"
	"time"

	appLog "icaltool/internal/log"
)

func ip(n int) *int { return &n }

func equal(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameOffset(a, b Offset) bool {
	return equal(a.Years, b.Years) && equal(a.Months, b.Months) && equal(a.Days, b.Days) &&
		equal(a.Hours, b.Hours) && equal(a.Minutes, b.Minutes) && equal(a.Seconds, b.Seconds)
}

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Offset
	}{
		{"PT12H", Offset{Hours: ip(12)}},
		{"P3D", Offset{Days: ip(3)}},
		{"P3DT12H", Offset{Days: ip(3), Hours: ip(12)}},
		{"P3Y6M4DT12H30M5S", Offset{Years: ip(3), Months: ip(6), Days: ip(4), Hours: ip(12), Minutes: ip(30), Seconds: ip(5)}},
		{"PT5M", Offset{Minutes: ip(5)}},
		{"P1M", Offset{Months: ip(1)}},
		{"P10W", Offset{Days: ip(70)}},
		{"P1.5W", Offset{Days: ip(10)}},
		{"P0W", Offset{Days: ip(0)}},
		{"P", Offset{}},
		{"", Offset{}},
		{"garbage", Offset{}},
		{"PT", Offset{}},
		{"P1D1D2D", Offset{Days: ip(2)}},
		{"PT1H30", Offset{}},
		{"P1.5D", Offset{}},
		{"PXW", Offset{}},
	}

	for _, tt := range tests {
		got := Parse(tt.input)
		if !sameOffset(got, tt.want) {
			t.Errorf("Parse(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestParseBadSubstringKeepsOther(t *testing.T) {
	// The period substring is malformed, the time substring is not.
	got := Parse("P1.5DT2H")
	want := Offset{Hours: ip(2)}
	if !sameOffset(got, want) {
		t.Errorf("Parse = %s, want %s", got, want)
	}

	got = Parse("P2DT1.5H")
	want = Offset{Days: ip(2)}
	if !sameOffset(got, want) {
		t.Errorf("Parse = %s, want %s", got, want)
	}
}

func TestParseLogsDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	prev := appLog.SetOutput(&buf)
	defer appLog.SetOutput(prev)

	Parse("garbage")
	if !strings.Contains(buf.String(), "duration=garbage") {
		t.Errorf("missing diagnostic for missing P: %q", buf.String())
	}

	buf.Reset()
	Parse("P")
	if buf.Len() != 0 {
		t.Errorf("empty duration should not log: %q", buf.String())
	}
}

func TestIntegerPrefix(t *testing.T) {
	tests := map[string]int{
		"12":  12,
		"-3":  -3,
		"+4":  4,
		" 7":  7,
		"5x":  5,
		"x":   0,
		"":    0,
		"-":   0,
		"1.9": 1,
	}
	for in, want := range tests {
		if got := integerPrefix(in); got != want {
			t.Errorf("integerPrefix(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestApply(t *testing.T) {
	base := time.Date(2020, time.January, 31, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		input string
		want  time.Time
	}{
		{"PT12H", time.Date(2020, time.January, 31, 22, 0, 0, 0, time.UTC)},
		{"P1M", time.Date(2020, time.February, 29, 10, 0, 0, 0, time.UTC)},
		{"P1Y1M", time.Date(2021, time.February, 28, 10, 0, 0, 0, time.UTC)},
		{"P1DT30M", time.Date(2020, time.February, 1, 10, 30, 0, 0, time.UTC)},
		{"P2W", time.Date(2020, time.February, 14, 10, 0, 0, 0, time.UTC)},
		{"garbage", base},
	}

	for _, tt := range tests {
		if got := Parse(tt.input).Apply(base); !got.Equal(tt.want) {
			t.Errorf("Parse(%q).Apply = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestStringAndIsZero(t *testing.T) {
	if s := Parse("P3Y6M4DT12H30M5S").String(); s != "P3Y6M4DT12H30M5S" {
		t.Errorf("String() = %q", s)
	}
	if s := (Offset{}).String(); s != "PT0S" {
		t.Errorf("zero String() = %q", s)
	}
	if !Parse("garbage").IsZero() {
		t.Error("invalid input should be zero")
	}
	if Parse("P0D").IsZero() {
		t.Error("explicit zero component is not unset")
	}
}
