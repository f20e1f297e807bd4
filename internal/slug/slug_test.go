package slug

import (
	"errors"
	"testing"
	"time"
)

func TestDecode_Valid(t *testing.T) {
	got, err := Decode("202501011200")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Decode = %v, want %v", got, want)
	}
	if got.Location() != time.UTC {
		t.Fatalf("Decode location = %v, want UTC", got.Location())
	}
}

func TestDecode_LeapDay(t *testing.T) {
	if _, err := Decode("202402290000"); err != nil {
		t.Fatalf("2024-02-29 is a real date: %v", err)
	}
	if _, err := Decode("202502290000"); !errors.Is(err, ErrInvalidCalendar) {
		t.Fatalf("2025-02-29 should be ErrInvalidCalendar, got %v", err)
	}
}

func TestDecode_InvalidFormat(t *testing.T) {
	for _, in := range []string{
		"",
		"2025",
		"20250101120",    // 11 chars
		"2025010112000",  // 13 chars
		"20250101120a",   // non-digit
		"2025-01-01 1",   // punctuation, 12 chars
		" 02501011200",   // leading space
		"202501011200\n", // trailing byte
	} {
		if _, err := Decode(in); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("Decode(%q) = %v, want ErrInvalidFormat", in, err)
		}
	}
}

func TestDecode_InvalidCalendar(t *testing.T) {
	for _, in := range []string{
		"202500011200", // month 0
		"202513011200", // month 13
		"202501321200", // day 32
		"202504311200", // April 31
		"202501012500", // hour 25
		"202501011260", // minute 60
		"202501001200", // day 0
	} {
		if _, err := Decode(in); !errors.Is(err, ErrInvalidCalendar) {
			t.Errorf("Decode(%q) = %v, want ErrInvalidCalendar", in, err)
		}
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	for _, s := range []string{"202501011200", "202402290515", "199912312355"} {
		decoded, err := Decode(s)
		if err != nil {
			t.Fatalf("Decode(%q): %v", s, err)
		}
		if got := Format(decoded); got != s {
			t.Errorf("Format(Decode(%q)) = %q", s, got)
		}
	}
}

func TestBucket(t *testing.T) {
	decoded, err := Decode("202501011200")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := Bucket(decoded); got != 1735732800 {
		t.Fatalf("Bucket = %d, want 1735732800", got)
	}
}

func TestFilePath(t *testing.T) {
	got, err := FilePath("/data/netflow", "cc-ir1-gw", "202503040510")
	if err != nil {
		t.Fatalf("FilePath: %v", err)
	}
	want := "/data/netflow/cc-ir1-gw/2025/03/04/nfcapd.202503040510"
	if got != want {
		t.Fatalf("FilePath = %q, want %q", got, want)
	}

	if _, err := FilePath("/data", "r", "not-a-slug-00"); err == nil {
		t.Fatal("FilePath with bad slug should fail")
	}
}
