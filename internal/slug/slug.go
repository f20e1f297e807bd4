// Package slug decodes the 12-digit timestamp keys that identify capture
// files. A slug is YYYYMMDDHHmm in UTC; every accepted slug names a real
// calendar instant at 5-minute capture granularity.
package slug

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// Length is the exact number of digits in a slug.
const Length = 12

var (
	// ErrInvalidFormat reports a key that is not exactly 12 ASCII digits.
	ErrInvalidFormat = errors.New("slug must be exactly 12 digits (YYYYMMDDHHmm)")
	// ErrInvalidCalendar reports a well-formed key whose fields do not name
	// a valid UTC calendar time (month 13, day 32, hour 25, ...).
	ErrInvalidCalendar = errors.New("slug does not decode to a valid calendar time")
)

// Decode parses a slug into its UTC instant. Invalid calendar components
// are rejected, never normalized.
func Decode(s string) (time.Time, error) {
	if len(s) != Length {
		return time.Time{}, ErrInvalidFormat
	}
	for _, c := range []byte(s) {
		if c < '0' || c > '9' {
			return time.Time{}, ErrInvalidFormat
		}
	}

	year := atoi(s[0:4])
	month := atoi(s[4:6])
	day := atoi(s[6:8])
	hour := atoi(s[8:10])
	minute := atoi(s[10:12])

	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	// time.Date normalizes out-of-range fields; round-tripping detects that.
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute {
		return time.Time{}, ErrInvalidCalendar
	}
	return t, nil
}

// atoi converts a digits-only substring; callers have already validated it.
func atoi(s string) int {
	n := 0
	for _, c := range []byte(s) {
		n = n*10 + int(c-'0')
	}
	return n
}

// Bucket returns the epoch-seconds time bucket for a decoded slug instant.
func Bucket(t time.Time) int64 {
	return t.Unix()
}

// Format re-encodes a UTC instant as a slug.
func Format(t time.Time) string {
	return t.UTC().Format("200601021504")
}

// FilePath builds the canonical capture-file path for a router and slug:
// <dataDir>/<router>/<YYYY>/<MM>/<DD>/nfcapd.<slug>.
func FilePath(dataDir, router, s string) (string, error) {
	t, err := Decode(s)
	if err != nil {
		return "", err
	}
	return filepath.Join(
		dataDir, router,
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", int(t.Month())),
		fmt.Sprintf("%02d", t.Day()),
		"nfcapd."+s,
	), nil
}
