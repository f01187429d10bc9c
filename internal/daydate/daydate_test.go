package daydate_test

import (
	"errors"
	"testing"
	"time"

	"allsky/internal/daydate"
)

func TestForAppliesNightOffset(t *testing.T) {
	capture := time.Date(2024, 5, 22, 0, 30, 0, 0, time.Local)

	if got := daydate.Format(daydate.For(capture, true)); got != "20240521" {
		t.Fatalf("night frame at 00:30 mapped to %s, want 20240521", got)
	}
	if got := daydate.Format(daydate.For(capture, false)); got != "20240522" {
		t.Fatalf("day frame at 00:30 mapped to %s, want 20240522", got)
	}
}

func TestForNightBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		capture time.Time
		want    string
	}{
		{"evening", time.Date(2024, 5, 21, 21, 0, 0, 0, time.Local), "20240521"},
		{"just before noon", time.Date(2024, 5, 22, 11, 59, 59, 0, time.Local), "20240521"},
		{"noon", time.Date(2024, 5, 22, 12, 0, 0, 0, time.Local), "20240522"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := daydate.Format(daydate.For(tc.capture, true)); got != tc.want {
				t.Fatalf("got %s want %s", got, tc.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	got, err := daydate.Parse("20240521")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got.Year() != 2024 || got.Month() != time.May || got.Day() != 21 {
		t.Fatalf("unexpected date %v", got)
	}

	for _, bad := range []string{"", "2024-05-21", "20241341", "2024052", "abcdefgh"} {
		if _, err := daydate.Parse(bad); !errors.Is(err, daydate.ErrInvalid) {
			t.Fatalf("Parse(%q) = %v, want ErrInvalid", bad, err)
		}
	}
}

func TestParsePartition(t *testing.T) {
	if p, err := daydate.ParsePartition(" Night "); err != nil || p != daydate.Night {
		t.Fatalf("ParsePartition(Night) = %v, %v", p, err)
	}
	if _, err := daydate.ParsePartition("dusk"); !errors.Is(err, daydate.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for dusk, got %v", err)
	}
	if !daydate.PartitionOf(true).IsNight() || daydate.PartitionOf(false).IsNight() {
		t.Fatal("PartitionOf mismatch")
	}
}
