package cli

import (
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// For any integer, FormatNumber groups digits in threes and removing the
// separators gives the original digits back.
func TestProperty_NumberFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	grouped := regexp.MustCompile(`^-?\d{1,3}(,\d{3})*$`)

	properties.Property("FormatNumber groups by thousands", prop.ForAll(
		func(n int64) bool {
			formatted := FormatNumber(strconv.FormatInt(n, 10))
			if !grouped.MatchString(formatted) {
				t.Logf("bad grouping for %d: %s", n, formatted)
				return false
			}
			return true
		},
		gen.Int64Range(-1e15, 1e15),
	))

	properties.Property("FormatNumber preserves value", prop.ForAll(
		func(n int64) bool {
			formatted := FormatNumber(strconv.FormatInt(n, 10))
			parsed, err := strconv.ParseInt(strings.ReplaceAll(formatted, ",", ""), 10, 64)
			if err != nil || parsed != n {
				t.Logf("value not preserved: %d -> %s", n, formatted)
				return false
			}
			return true
		},
		gen.Int64Range(-1e15, 1e15),
	))

	properties.Property("FormatVolume uses correct units", prop.ForAll(
		func(volume float64) bool {
			formatted := FormatVolume(volume)
			switch {
			case volume >= 1e9:
				return strings.HasSuffix(formatted, "B")
			case volume >= 1e6:
				return strings.HasSuffix(formatted, "M")
			case volume >= 1e3:
				return strings.HasSuffix(formatted, "K")
			}
			_, err := strconv.ParseFloat(formatted, 64)
			return err == nil
		},
		gen.Float64Range(0, 1e12),
	))

	properties.Property("TruncateString never exceeds the limit", prop.ForAll(
		func(s string, max int) bool {
			out := TruncateString(s, max)
			if len(out) > max {
				return false
			}
			if len(s) <= max {
				return out == s
			}
			return max <= 3 || strings.HasSuffix(out, "...")
		},
		gen.AlphaString(),
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}

func TestFormatNumberExamples(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{"0", "0"},
		{"999", "999"},
		{"1000", "1,000"},
		{"123456", "123,456"},
		{"1234567", "1,234,567"},
		{"-1234567", "-1,234,567"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			if got := FormatNumber(tc.in); got != tc.expected {
				t.Errorf("FormatNumber(%s) = %s, want %s", tc.in, got, tc.expected)
			}
		})
	}
}

func TestFormatPercentExamples(t *testing.T) {
	testCases := []struct {
		value    float64
		expected string
	}{
		{0, "0.00%"},
		{1.5, "+1.50%"},
		{-2.5, "-2.50%"},
		{100, "+100.00%"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			if got := FormatPercent(tc.value); got != tc.expected {
				t.Errorf("FormatPercent(%f) = %s, want %s", tc.value, got, tc.expected)
			}
		})
	}
}

func TestFormatPlanLevels(t *testing.T) {
	entry := 123.456
	rr := 2.5
	small := 4.2

	if got := FormatLevel(nil); got != "-" {
		t.Errorf("FormatLevel(nil) = %s", got)
	}
	if got := FormatLevel(&entry); got != "123.46" {
		t.Errorf("FormatLevel(123.456) = %s", got)
	}
	if got := FormatLevel(&small); got != "4.2000" {
		t.Errorf("FormatLevel(4.2) = %s", got)
	}
	if got := FormatRewardRisk(&rr); got != "1:2.50" {
		t.Errorf("FormatRewardRisk(2.5) = %s", got)
	}
	if got := FormatRewardRisk(nil); got != "-" {
		t.Errorf("FormatRewardRisk(nil) = %s", got)
	}
	if got := FormatDollars(2500000); got != "$2,500,000" {
		t.Errorf("FormatDollars = %s", got)
	}
	if got := FormatConfidence(0.834); got != "83%" {
		t.Errorf("FormatConfidence = %s", got)
	}
}
