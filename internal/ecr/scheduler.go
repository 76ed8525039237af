package ecr

import "sort"

// ScheduleEntry is one pending application-layer send request.
// Remaining == -1 means "send as many as possible, forever, until the
// source dies."
type ScheduleEntry struct {
	Tick      int
	Src       string
	Dst       string
	Remaining int
}

// Scheduler is an ordered multiset of ScheduleEntry, cheap to pop at the
// current tick.
type Scheduler struct {
	entries []ScheduleEntry
}

// NewScheduler builds a Scheduler from an initial batch of entries.
func NewScheduler(entries ...ScheduleEntry) *Scheduler {
	s := &Scheduler{entries: append([]ScheduleEntry(nil), entries...)}
	s.sort()
	return s
}

// Add inserts a new entry, keeping the scheduler sorted.
func (s *Scheduler) Add(e ScheduleEntry) {
	s.entries = append(s.entries, e)
	s.sort()
}

// Len reports how many entries remain pending.
func (s *Scheduler) Len() int { return len(s.entries) }

// PopDue removes and returns every entry due at tick, in (src, dst)
// order for deterministic replay.
func (s *Scheduler) PopDue(tick int) []ScheduleEntry {
	var due []ScheduleEntry
	remaining := s.entries[:0:0]
	for _, e := range s.entries {
		if e.Tick <= tick {
			due = append(due, e)
		} else {
			remaining = append(remaining, e)
		}
	}
	s.entries = remaining
	return due
}

// sort orders entries by tick ascending, then (src, dst) for
// deterministic popping when several entries share a tick.
func (s *Scheduler) sort() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		a, b := s.entries[i], s.entries[j]
		if a.Tick != b.Tick {
			return a.Tick < b.Tick
		}
		if a.Src != b.Src {
			return a.Src < b.Src
		}
		return a.Dst < b.Dst
	})
}
