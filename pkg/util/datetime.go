package util

import "time"

const ISO8601Format = "2006-01-02T15:04:05Z"

// WorldEpochMillis is the Unix millisecond timestamp world time counts from.
const WorldEpochMillis int64 = 1414016075000

// WorldTime converts a wall clock instant to world time in milliseconds.
func WorldTime(t time.Time) int64 {
	return t.UnixMilli() - WorldEpochMillis
}

// FromWorldTime is the inverse of WorldTime.
func FromWorldTime(wt int64) time.Time {
	return time.UnixMilli(wt + WorldEpochMillis)
}

// MonotonicMicros is the microsecond timestamp carried by broadcast frames.
func MonotonicMicros(t time.Time) int64 {
	return t.UnixMicro()
}

func TimeToISO8601Str(t time.Time) string {
	return t.UTC().Format(ISO8601Format)
}
