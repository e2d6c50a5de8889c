package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDayInTimezone(t *testing.T) {
	// 2024-03-10 23:30 UTC is already the 11th in Tokyo and still the 10th in New York
	instant := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		timezone string
		expected string
		wantErr  bool
	}{
		{name: "utc", timezone: "UTC", expected: "2024-03-10"},
		{name: "empty falls back to utc", timezone: "", expected: "2024-03-10"},
		{name: "tokyo", timezone: "Asia/Tokyo", expected: "2024-03-11"},
		{name: "new york", timezone: "America/New_York", expected: "2024-03-10"},
		{name: "invalid", timezone: "Mars/Olympus", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DayInTimezone(instant, tt.timezone)
			if tt.wantErr {
				if err == nil {
					t.Errorf("DayInTimezone(%q) expected error", tt.timezone)
				}
				return
			}
			if err != nil {
				t.Fatalf("DayInTimezone(%q) unexpected error: %v", tt.timezone, err)
			}
			if got != tt.expected {
				t.Errorf("DayInTimezone(%q) = %q, want %q", tt.timezone, got, tt.expected)
			}
		})
	}
}

func TestGetTodayInTimezone(t *testing.T) {
	today, err := GetTodayInTimezone("UTC")
	if err != nil {
		t.Fatalf("GetTodayInTimezone() error: %v", err)
	}
	if !ValidateDate(today) {
		t.Errorf("GetTodayInTimezone() returned malformed day %q", today)
	}
}

func TestAddDays(t *testing.T) {
	tests := []struct {
		day      string
		n        int
		expected string
	}{
		{"2024-01-01", -1, "2023-12-31"},
		{"2024-02-28", 1, "2024-02-29"},
		{"2023-02-28", 1, "2023-03-01"},
		{"2024-03-10", 1, "2024-03-11"}, // DST change in the US does not matter for calendar days
		{"2024-05-15", 0, "2024-05-15"},
	}

	for _, tt := range tests {
		got, err := AddDays(tt.day, tt.n)
		if err != nil {
			t.Fatalf("AddDays(%q, %d) error: %v", tt.day, tt.n, err)
		}
		if got != tt.expected {
			t.Errorf("AddDays(%q, %d) = %q, want %q", tt.day, tt.n, got, tt.expected)
		}
	}

	if _, err := AddDays("2024-13-01", 1); err == nil {
		t.Error("AddDays() expected error for invalid month")
	}
}

func TestDaysBetween(t *testing.T) {
	got, err := DaysBetween("2024-02-27", "2024-03-01")
	if err != nil {
		t.Fatalf("DaysBetween() error: %v", err)
	}
	if got != 3 {
		t.Errorf("DaysBetween() = %d, want 3", got)
	}

	got, err = DaysBetween("2024-03-01", "2024-02-27")
	if err != nil {
		t.Fatalf("DaysBetween() error: %v", err)
	}
	if got != -3 {
		t.Errorf("DaysBetween() = %d, want -3", got)
	}
}

func TestValidateDate(t *testing.T) {
	valid := []string{"2024-01-01", "2024-02-29"}
	invalid := []string{"", "2024-1-1", "2023-02-29", "01/02/2024", "Mon Jan 01 2024"}

	for _, d := range valid {
		if !ValidateDate(d) {
			t.Errorf("ValidateDate(%q) = false, want true", d)
		}
	}
	for _, d := range invalid {
		if ValidateDate(d) {
			t.Errorf("ValidateDate(%q) = true, want false", d)
		}
	}
}

func TestValidateTimezone(t *testing.T) {
	if !ValidateTimezone("Europe/Berlin") {
		t.Error("ValidateTimezone(Europe/Berlin) = false")
	}
	if !ValidateTimezone("") {
		t.Error("ValidateTimezone(\"\") = false")
	}
	if ValidateTimezone("Not/AZone") {
		t.Error("ValidateTimezone(Not/AZone) = true")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}

	got, err := ExpandPath("~/.config/habitline/habitline.db")
	if err != nil {
		t.Fatalf("ExpandPath() error: %v", err)
	}
	want := filepath.Join(home, ".config/habitline/habitline.db")
	if got != want {
		t.Errorf("ExpandPath() = %q, want %q", got, want)
	}

	if got, _ := ExpandPath("/tmp/x.db"); got != "/tmp/x.db" {
		t.Errorf("ExpandPath() changed an absolute path: %q", got)
	}
}

func TestIsPostgresConnString(t *testing.T) {
	if !IsPostgresConnString("postgres://u@localhost/db") || !IsPostgresConnString("postgresql://u@localhost/db") {
		t.Error("IsPostgresConnString() did not detect a postgres URL")
	}
	if IsPostgresConnString("/home/u/habitline.db") {
		t.Error("IsPostgresConnString() matched a file path")
	}
}
