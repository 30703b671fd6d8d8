package profiler

import "time"

// ProfilerBuilderOption is a function that configures a profiler.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often Tick logs.
//
// Parameters:
//   - d: the reporting interval
//
// Returns:
//   - ProfilerBuilderOption: a function that sets the interval
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.updateInterval = d
	}
}

// WithQuiet disables logging. Stats stay available through Last.
//
// Parameters:
//   - quiet: whether to suppress the log line
//
// Returns:
//   - ProfilerBuilderOption: a function that sets the flag
func WithQuiet(quiet bool) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.quiet = quiet
	}
}
