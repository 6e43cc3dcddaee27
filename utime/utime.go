// Package utime holds the microsecond durations and timestamps used when
// rendering timestamp atoms.
package utime

import "fmt"

// Duration is a signed count of microseconds.
type Duration int64

// Timestamp is a count of microseconds since the Unix epoch.
type Timestamp int64

// Microseconds returns a duration of v microseconds.
func Microseconds(v int64) Duration { return Duration(v) }

// Milliseconds returns a duration of v milliseconds.
func Milliseconds(v int64) Duration { return Duration(v * 1000) }

// Seconds returns a duration of v seconds.
func Seconds(v int64) Duration { return Duration(v * 1000000) }

// Minutes returns a duration of v minutes.
func Minutes(v int64) Duration { return Duration(v * 1000000 * 60) }

// Hours returns a duration of v hours.
func Hours(v int64) Duration { return Duration(v * 1000000 * 3600) }

// Microseconds returns d as a count of microseconds.
func (d Duration) Microseconds() int64 { return int64(d) }

// Milliseconds returns d truncated to whole milliseconds.
func (d Duration) Milliseconds() int64 { return int64(d) / 1000 }

// Seconds returns d truncated to whole seconds.
func (d Duration) Seconds() int64 { return int64(d) / 1000000 }

// Minutes returns d truncated to whole minutes.
func (d Duration) Minutes() int64 { return int64(d) / (1000000 * 60) }

// Hours returns d truncated to whole hours.
func (d Duration) Hours() int64 { return int64(d) / (1000000 * 3600) }

// FromDuration returns the timestamp d after the epoch.
func FromDuration(d Duration) Timestamp { return Timestamp(d) }

// SinceEpoch returns t as a duration from the epoch.
func (t Timestamp) SinceEpoch() Duration { return Duration(t) }

// Add returns t+d.
func (t Timestamp) Add(d Duration) Timestamp { return t + Timestamp(d) }

// Sub returns t-u.
func (t Timestamp) Sub(u Timestamp) Duration { return Duration(t - u) }

// magnitude returns |d| as an unsigned value; it is exact for math.MinInt64.
func magnitude(d Duration) uint64 {
	if d < 0 {
		return uint64(-(d + 1)) + 1
	}
	return uint64(d)
}

func sign(d Duration) string {
	if d < 0 {
		return "-"
	}
	return ""
}

// FormatSecondsMsUs renders ts-ref as "Ss:MMms:UUus", with a leading minus
// sign when negative. Subtracting a reference (usually the session start)
// keeps the seconds readable.
func FormatSecondsMsUs(ts, ref Timestamp) string {
	d := ts.Sub(ref)
	t := magnitude(d)

	us := t % 1000
	ms := t / 1000
	s := ms / 1000
	ms %= 1000

	return fmt.Sprintf("%s%ds:%dms:%dus", sign(d), s, ms, us)
}

// FormatUs renders d in microseconds, collapsing to milliseconds or seconds
// when the lower units are zero. This is the inverse of how durations are
// written in source.
func FormatUs(d Duration) string {
	us := magnitude(d)
	if us%1000 != 0 {
		return fmt.Sprintf("%s%dus", sign(d), us)
	}
	ms := us / 1000
	if ms%1000 != 0 {
		return fmt.Sprintf("%s%dms", sign(d), ms)
	}
	return fmt.Sprintf("%s%ds", sign(d), ms/1000)
}

// RelativeTime renders ts against the epoch.
// TODO: take the session start time as the reference once sessions exist.
func RelativeTime(ts Timestamp) string {
	return FormatSecondsMsUs(ts, 0)
}
