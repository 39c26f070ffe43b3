package utils

import (
	"math"
	"testing"

	"github.com/guregu/null/v6"
)

func TestFormatINR(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{0, "₹0.00"},
		{100, "₹100.00"},
		{1000, "₹1,000.00"},
		{123456, "₹1,23,456.00"},
		{12345678, "₹1,23,45,678.00"},
		{2847.50, "₹2,847.50"},
		{-1234.56, "-₹1,234.56"},
		{10000000, "₹1,00,00,000.00"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatINR(tt.input)
			if result != tt.expected {
				t.Errorf("FormatINR(%f) = %s, want %s", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatINRCompact(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{500, "₹500.00"},
		{100000, "₹1 L"},
		{1500000, "₹15 L"},
		{10000000, "₹1 Cr"},
		{192734500000, "₹19273.45 Cr"},
		{1000000000000, "₹1 L Cr"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatINRCompact(tt.input)
			if result != tt.expected {
				t.Errorf("FormatINRCompact(%f) = %s, want %s", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatVolume(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{500, "500"},
		{1500, "1.50 K"},
		{150000, "1.50 L"},
		{15000000, "1.50 Cr"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatVolume(tt.input); got != tt.expected {
				t.Errorf("FormatVolume(%f) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestOptionalFormatting(t *testing.T) {
	missing := null.Float{}
	nan := null.FloatFrom(math.NaN())

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"num", FmtNum(null.FloatFrom(48.234), 1), "48.2"},
		{"num missing", FmtNum(missing, 1), NA},
		{"num nan", FmtNum(nan, 2), NA},
		{"rupee", FmtRupee(null.FloatFrom(1234.567)), "₹1234.57"},
		{"rupee missing", FmtRupee(missing), NA},
		{"percent", FmtPercent(null.FloatFrom(55.671)), "55.67%"},
		{"signed percent", FmtSignedPercent(null.FloatFrom(-3.2)), "-3.20%"},
		{"range", FmtRange(null.FloatFrom(1200), null.FloatFrom(1250)), "₹1200.00 - ₹1250.00"},
		{"range half missing", FmtRange(null.FloatFrom(1200), missing), NA},
		{"change up", FmtChange(null.FloatFrom(12.34), null.FloatFrom(1.23)), "+₹12.34 (+1.23%)"},
		{"change down", FmtChange(null.FloatFrom(-4.4), null.FloatFrom(-0.61)), "-₹4.40 (-0.61%)"},
		{"change missing", FmtChange(missing, null.FloatFrom(1)), NA},
		{"compact", FmtCompactRupee(null.FloatFrom(1e7)), "₹1 Cr"},
		{"blank string", OrNA("  "), NA},
		{"string", OrNA("NIFTY 50"), "NIFTY 50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestPositiveAndFinite(t *testing.T) {
	if Positive(0).Valid {
		t.Error("Positive(0) should be invalid")
	}
	if Positive(-1).Valid {
		t.Error("Positive(-1) should be invalid")
	}
	if !Positive(0.5).Valid {
		t.Error("Positive(0.5) should be valid")
	}
	if Finite(math.Inf(1)).Valid {
		t.Error("Finite(+Inf) should be invalid")
	}
	if !Finite(0).Valid {
		t.Error("Finite(0) should be valid")
	}
}
