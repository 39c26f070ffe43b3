package utils

import (
	"testing"
	"time"
)

func TestNowIST(t *testing.T) {
	now := NowIST()
	if now.Location().String() != "Asia/Kolkata" && now.Location().String() != "IST" {
		t.Errorf("NowIST() location = %s, want Asia/Kolkata or IST", now.Location().String())
	}
}

func TestIsMarketOpenAt(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"wednesday mid-session", time.Date(2026, 2, 18, 10, 0, 0, 0, IST), true},
		{"saturday", time.Date(2026, 2, 21, 10, 0, 0, 0, IST), false},
		{"before open", time.Date(2026, 2, 18, 8, 0, 0, 0, IST), false},
		{"after close", time.Date(2026, 2, 18, 16, 0, 0, 0, IST), false},
		{"republic day", time.Date(2026, 1, 26, 10, 0, 0, 0, IST), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsMarketOpenAt(tt.at); got != tt.want {
				t.Errorf("IsMarketOpenAt(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestSessionAt(t *testing.T) {
	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Date(2026, 2, 18, 8, 30, 0, 0, IST), "PRE-MARKET"},
		{time.Date(2026, 2, 18, 9, 5, 0, 0, IST), "PRE-OPEN SESSION"},
		{time.Date(2026, 2, 18, 12, 0, 0, 0, IST), "OPEN"},
		{time.Date(2026, 2, 18, 17, 0, 0, 0, IST), "CLOSED"},
		{time.Date(2026, 2, 22, 12, 0, 0, 0, IST), "CLOSED (Weekend)"},
		{time.Date(2026, 10, 2, 12, 0, 0, 0, IST), "CLOSED (Mahatma Gandhi Jayanti)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := SessionAt(tt.at); got != tt.want {
				t.Errorf("SessionAt(%v) = %q, want %q", tt.at, got, tt.want)
			}
		})
	}
}
