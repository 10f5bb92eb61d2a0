package validation

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/btraven00/linkmedic/internal/model"
)

// ProgressUpdate reports one finished url.
type ProgressUpdate struct {
	URL    string
	Status model.Status
	Done   int
	Total  int
	Cached bool
}

// ProgressTracker tracks and reports progress for a validation batch.
type ProgressTracker struct {
	startTime    time.Time
	statusCounts map[model.Status]int
	done, total  int
	mu           sync.RWMutex
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		startTime:    time.Now(),
		statusCounts: make(map[model.Status]int),
	}
}

// Update records an update.
func (pt *ProgressTracker) Update(update ProgressUpdate) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.statusCounts[update.Status]++
	pt.done = update.Done
	pt.total = update.Total
}

// ProgressSummary is a snapshot of a tracker.
type ProgressSummary struct {
	Done         int
	Total        int
	StatusCounts map[model.Status]int
	Elapsed      time.Duration
}

// Summary returns a snapshot.
func (pt *ProgressTracker) Summary() ProgressSummary {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	counts := make(map[model.Status]int, len(pt.statusCounts))
	for k, v := range pt.statusCounts {
		counts[k] = v
	}

	return ProgressSummary{
		Done:         pt.done,
		Total:        pt.total,
		StatusCounts: counts,
		Elapsed:      time.Since(pt.startTime),
	}
}

// EstimateCompletion extrapolates the remaining time from the average so far.
func (pt *ProgressTracker) EstimateCompletion() time.Duration {
	s := pt.Summary()
	if s.Done == 0 || s.Total == 0 {
		return 0
	}

	perURL := s.Elapsed / time.Duration(s.Done)
	return perURL * time.Duration(s.Total-s.Done)
}

// Print writes a single carriage-return progress line.
func (pt *ProgressTracker) Print(w io.Writer) {
	s := pt.Summary()

	fmt.Fprintf(w, "\r🔄 Progress: %d/%d validated", s.Done, s.Total)
	if broken := s.StatusCounts[model.StatusBroken]; broken > 0 {
		fmt.Fprintf(w, " (%d broken)", broken)
	}
	if s.Total > 0 {
		fmt.Fprintf(w, " [%.1f%%]", float64(s.Done)/float64(s.Total)*100)
	}
	fmt.Fprintf(w, " [%v elapsed", s.Elapsed.Round(time.Second))
	if eta := pt.EstimateCompletion(); eta > 0 {
		fmt.Fprintf(w, ", ~%v left", eta.Round(time.Second))
	}
	fmt.Fprint(w, "]")
}
