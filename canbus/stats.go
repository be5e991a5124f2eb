package canbus

import (
	"fmt"
	"io"
	"sort"
	"time"
)

// Defaults for the passive bus monitor.
const (
	// MaxTrackedIDs caps how many distinct identifiers the stats table holds.
	MaxTrackedIDs = 16

	// StatsInterval is how often the listener prints a summary.
	StatsInterval = 10 * time.Second

	// SilenceTimeout is how long without traffic before the bus is reported
	// silent.
	SilenceTimeout = 5 * time.Second
)

type idStats struct {
	id       uint32
	count    uint64
	lastSeen time.Time
}

// Stats tracks per-identifier traffic counts for the passive listener. It is
// used from a single goroutine and carries no locking.
type Stats struct {
	known       []idStats
	total       uint64
	errors      uint64
	lastMessage time.Time
	silenced    bool
}

// NewStats returns an empty stats table.
func NewStats() *Stats {
	return &Stats{known: make([]idStats, 0, MaxTrackedIDs)}
}

// Observe records one received frame.
func (s *Stats) Observe(id uint32, at time.Time) {
	s.total++
	s.lastMessage = at
	s.silenced = false

	for i := range s.known {
		if s.known[i].id == id {
			s.known[i].count++
			s.known[i].lastSeen = at
			return
		}
	}
	if len(s.known) < MaxTrackedIDs {
		s.known = append(s.known, idStats{id: id, count: 1, lastSeen: at})
	}
}

// ObserveError records a receive error.
func (s *Stats) ObserveError() {
	s.errors++
}

// Total returns the number of frames observed.
func (s *Stats) Total() uint64 {
	return s.total
}

// Count returns how many frames carried the given identifier.
func (s *Stats) Count(id uint32) uint64 {
	for i := range s.known {
		if s.known[i].id == id {
			return s.known[i].count
		}
	}
	return 0
}

// Silent reports whether the bus has gone quiet. It latches until traffic
// resumes so the caller reports the silence only once.
func (s *Stats) Silent(now time.Time) bool {
	if s.total == 0 || s.silenced {
		return false
	}
	if now.Sub(s.lastMessage) > SilenceTimeout {
		s.silenced = true
		return true
	}
	return false
}

// Print writes a summary table of the tracked identifiers.
func (s *Stats) Print(w io.Writer, now time.Time) {
	fmt.Fprintf(w, "--- Bus statistics: %d frames, %d errors, %d identifiers ---\n",
		s.total, s.errors, len(s.known))

	sorted := make([]idStats, len(s.known))
	copy(sorted, s.known)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].count > sorted[j].count })

	for _, st := range sorted {
		fmt.Fprintf(w, "  ID 0x%03X: %d frames, last seen %s ago\n",
			st.id, st.count, now.Sub(st.lastSeen).Truncate(time.Millisecond))
	}
}
