package utils

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"
)

func TestDurationUS(t *testing.T) {
	d := 1234*time.Microsecond + 567*time.Nanosecond
	got := DurationUS(d)
	if math.Abs(got-1234.567) > 0.001 {
		t.Fatalf("want 1234.567µs, got %.3f", got)
	}
}

func withOutput(t *testing.T, verbose bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevVerbose := Output, Verbose
	Output, Verbose = &buf, verbose
	t.Cleanup(func() { Output, Verbose = prevOut, prevVerbose })
	return &buf
}

func TestPrintTimingStats(t *testing.T) {
	buf := withOutput(t, true)
	stats := &TimingStats{
		TotalTime:       100 * time.Millisecond,
		ForwardPassTime: 25 * time.Millisecond,
		Steps:           5,
	}
	PrintTimingStats(stats)
	out := buf.String()
	if !strings.Contains(out, "Forward pass: 25ms (25.0%)") {
		t.Fatalf("missing forward share in:\n%s", out)
	}
	if !strings.Contains(out, "Average time per step: 20ms") {
		t.Fatalf("missing per-step average in:\n%s", out)
	}
	if !strings.Contains(out, "Average forward pass time: 5000.0µs") {
		t.Fatalf("missing per-step forward time in:\n%s", out)
	}
}

func TestPrintTimingStatsZeroSteps(t *testing.T) {
	buf := withOutput(t, true)
	PrintTimingStats(&TimingStats{})
	if strings.Contains(buf.String(), "NaN") {
		t.Fatalf("zero stats printed NaN:\n%s", buf.String())
	}
}

func TestPrintTimingStatsQuiet(t *testing.T) {
	buf := withOutput(t, false)
	PrintTimingStats(&TimingStats{TotalTime: time.Second, Steps: 1})
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestTimingStatsAdd(t *testing.T) {
	var total TimingStats
	total.Add(TimingStats{ForwardPassTime: time.Second, Steps: 2})
	total.Add(TimingStats{ForwardPassTime: time.Second, UpdateTime: time.Millisecond, Steps: 3})
	if total.ForwardPassTime != 2*time.Second || total.UpdateTime != time.Millisecond || total.Steps != 5 {
		t.Fatalf("unexpected totals: %+v", total)
	}
}
