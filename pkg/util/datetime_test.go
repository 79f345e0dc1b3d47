package util

import (
	"testing"
	"time"
)

func TestWorldTimeEpoch(t *testing.T) {
	epoch := time.UnixMilli(WorldEpochMillis)
	if got := WorldTime(epoch); got != 0 {
		t.Fatalf("expected 0 at epoch, got %d", got)
	}
	if got := WorldTime(epoch.Add(1500 * time.Millisecond)); got != 1500 {
		t.Fatalf("expected 1500, got %d", got)
	}
	if !FromWorldTime(1500).Equal(epoch.Add(1500 * time.Millisecond)) {
		t.Fatal("FromWorldTime must invert WorldTime")
	}
}

func TestTimeToISO8601StrUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*60*60)
	ts := time.Date(2024, 5, 1, 13, 30, 0, 0, loc)
	if got := TimeToISO8601Str(ts); got != "2024-05-01T06:30:00Z" {
		t.Fatalf("expected UTC timestamp, got %s", got)
	}
}
