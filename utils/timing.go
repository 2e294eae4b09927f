package utils

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Verbose controls whether timing statistics are printed.
// Set to false to suppress output.
var Verbose = true

// Output is the writer where timing statistics are printed.
// Defaults to os.Stdout.
var Output io.Writer = os.Stdout

// TimingStats holds timing information for different operations
type TimingStats struct {
	TotalTime           time.Duration
	DataLoadingTime     time.Duration
	ModelInitTime       time.Duration
	ForwardPassTime     time.Duration
	LossComputationTime time.Duration
	BackwardPassTime    time.Duration
	UpdateTime          time.Duration
	EvaluationTime      time.Duration
	InferenceTime       time.Duration

	Steps int
}

// Add accumulates other into s.
func (s *TimingStats) Add(other TimingStats) {
	s.TotalTime += other.TotalTime
	s.DataLoadingTime += other.DataLoadingTime
	s.ModelInitTime += other.ModelInitTime
	s.ForwardPassTime += other.ForwardPassTime
	s.LossComputationTime += other.LossComputationTime
	s.BackwardPassTime += other.BackwardPassTime
	s.UpdateTime += other.UpdateTime
	s.EvaluationTime += other.EvaluationTime
	s.InferenceTime += other.InferenceTime
	s.Steps += other.Steps
}

func percent(part, whole time.Duration) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func perStep(d time.Duration, steps int) time.Duration {
	if steps <= 0 {
		return 0
	}
	return d / time.Duration(steps)
}

// PrintTimingStats prints detailed timing statistics.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintTimingStats(stats *TimingStats) {
	if !Verbose || stats == nil {
		return
	}
	fmt.Fprintln(Output, "\n=== TIMING STATISTICS ===")
	fmt.Fprintf(Output, "Total time: %v\n", stats.TotalTime)
	fmt.Fprintf(Output, "Average time per step: %v\n", perStep(stats.TotalTime, stats.Steps))
	fmt.Fprintf(Output, "Steps completed: %d\n", stats.Steps)
	fmt.Fprintln(Output, "\nBreakdown by operation:")
	rows := []struct {
		name string
		d    time.Duration
	}{
		{"Data loading", stats.DataLoadingTime},
		{"Model initialization", stats.ModelInitTime},
		{"Forward pass", stats.ForwardPassTime},
		{"Loss computation", stats.LossComputationTime},
		{"Backward pass", stats.BackwardPassTime},
		{"Weight updates", stats.UpdateTime},
		{"Evaluation", stats.EvaluationTime},
		{"Inference", stats.InferenceTime},
	}
	for _, r := range rows {
		fmt.Fprintf(Output, "  %s: %v (%.1f%%)\n", r.name, r.d, percent(r.d, stats.TotalTime))
	}
	fmt.Fprintln(Output, "\nPerformance metrics:")
	fmt.Fprintf(Output, "  Average forward pass time: %.1fµs\n", DurationUS(perStep(stats.ForwardPassTime, stats.Steps)))
	fmt.Fprintf(Output, "  Average backward pass time: %.1fµs\n", DurationUS(perStep(stats.BackwardPassTime, stats.Steps)))
	fmt.Fprintf(Output, "  Average update time: %.1fµs\n", DurationUS(perStep(stats.UpdateTime, stats.Steps)))
}

// DurationUS converts d to microseconds.
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}
