package profiler

import (
	"fmt"
	"log"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pass"
)

// Stats is the summary of one reporting interval.
type Stats struct {
	// FPS is the presented frame rate over the interval.
	FPS float64
	// HeapMB is the live heap at the end of the interval.
	HeapMB float64
	// AllocRateMB is the allocation rate in MB per second.
	AllocRateMB float64
	// GCCount is the cumulative number of collections.
	GCCount uint32
	// Stages holds the mean duration of each pass stage per frame it ran in.
	Stages map[pass.Stage]time.Duration
}

// Profiler tracks frame rate, memory statistics and pass stage timings.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	mu sync.Mutex

	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastTotalAlloc uint64

	stageTotals map[pass.Stage]time.Duration
	stageCounts map[pass.Stage]int
	last        Stats
	quiet       bool
}

// NewProfiler creates a new Profiler. The update interval defaults to 1 second.
//
// Parameters:
//   - options: a variadic list of ProfilerBuilderOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
		stageTotals:    make(map[pass.Stage]time.Duration),
		stageCounts:    make(map[pass.Stage]int),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// RecordStages adds the stage durations of one frame to the current interval.
//
// Parameters:
//   - durations: the per-stage wall time of the frame
func (p *Profiler) RecordStages(durations map[pass.Stage]time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for s, d := range durations {
		p.stageTotals[s] += d
		p.stageCounts[s]++
	}
}

// Tick should be called once per presented frame. When the update interval has elapsed it logs
// FPS, heap usage, allocation rate, GC count and the mean duration of each pass stage, then
// starts a new interval.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	now := time.Now()
	elapsed := now.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	stats := Stats{
		FPS:         float64(p.frameCount) / elapsed.Seconds(),
		HeapMB:      float64(p.memStats.Alloc) / 1024 / 1024,
		AllocRateMB: float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:     p.memStats.NumGC,
		Stages:      make(map[pass.Stage]time.Duration, len(p.stageTotals)),
	}
	for s, total := range p.stageTotals {
		stats.Stages[s] = total / time.Duration(p.stageCounts[s])
	}
	p.last = stats
	if !p.quiet {
		log.Printf("[Profiler] FPS: %.2f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d%s",
			stats.FPS, stats.HeapMB, stats.AllocRateMB, stats.GCCount, formatStages(stats.Stages))
	}

	p.frameCount = 0
	p.lastTime = now
	p.lastTotalAlloc = p.memStats.TotalAlloc
	clear(p.stageTotals)
	clear(p.stageCounts)
	return true
}

// Last returns the stats of the most recently completed interval.
func (p *Profiler) Last() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func formatStages(stages map[pass.Stage]time.Duration) string {
	if len(stages) == 0 {
		return ""
	}
	names := make([]string, 0, len(stages))
	for s := range stages {
		names = append(names, string(s))
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString(" | Stages:")
	for _, n := range names {
		fmt.Fprintf(&b, " %s=%.2fms", n, float64(stages[pass.Stage(n)].Microseconds())/1000)
	}
	return b.String()
}
