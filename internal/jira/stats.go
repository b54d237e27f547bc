package jira

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const rollingWindowDuration = time.Hour

// OperationStats tracks metrics for a single gateway operation.
type OperationStats struct {
	Count       int64 // total calls
	TotalTimeNs int64 // for computing avg latency
	Errors      int64 // failed calls
}

// Stats tracks gateway call statistics. A nil *Stats is valid and records nothing.
type Stats struct {
	mu              sync.RWMutex
	operations      map[string]*OperationStats
	recentCalls     []time.Time
	rateLimitWaitNs int64
	log             *zap.Logger
	stopCh          chan struct{}
	wg              sync.WaitGroup
	closeOnce       sync.Once
}

// NewStats creates a stats tracker. When interval is positive a summary is
// logged at that interval and once more on Close.
func NewStats(log *zap.Logger, interval time.Duration) *Stats {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Stats{
		operations:  make(map[string]*OperationStats),
		recentCalls: make([]time.Time, 0, 256),
		log:         log,
		stopCh:      make(chan struct{}),
	}
	if interval > 0 {
		s.wg.Add(1)
		go s.periodicLogger(interval)
	}
	return s
}

// Record records a call with its operation name, duration, and any error.
// This method is safe for concurrent use.
func (s *Stats) Record(opName string, duration time.Duration, err error) {
	if s == nil {
		return
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	stats, ok := s.operations[opName]
	if !ok {
		stats = &OperationStats{}
		s.operations[opName] = stats
	}
	stats.Count++
	stats.TotalTimeNs += duration.Nanoseconds()
	if err != nil {
		stats.Errors++
	}

	s.recentCalls = append(s.recentCalls, now)
	cutoff := now.Add(-rollingWindowDuration)
	firstValid := 0
	for i, t := range s.recentCalls {
		if t.After(cutoff) {
			firstValid = i
			break
		}
	}
	if firstValid > 0 {
		s.recentCalls = s.recentCalls[firstValid:]
	}
}

// RecordRateLimitWait records time spent waiting for the rate limiter.
func (s *Stats) RecordRateLimitWait(duration time.Duration) {
	if s == nil {
		return
	}
	atomic.AddInt64(&s.rateLimitWaitNs, duration.Nanoseconds())
}

// Operation returns a copy of the counters for one operation.
func (s *Stats) Operation(opName string) OperationStats {
	if s == nil {
		return OperationStats{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if op, ok := s.operations[opName]; ok {
		return *op
	}
	return OperationStats{}
}

// HourlyCount returns the number of calls in the last hour.
func (s *Stats) HourlyCount() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-rollingWindowDuration)
	count := 0
	for _, t := range s.recentCalls {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}

// RateLimitWaitTotal returns the total time spent waiting for the rate limiter.
func (s *Stats) RateLimitWaitTotal() time.Duration {
	if s == nil {
		return 0
	}
	return time.Duration(atomic.LoadInt64(&s.rateLimitWaitNs))
}

// Summary returns a formatted summary of gateway stats.
func (s *Stats) Summary() string {
	hourly := s.HourlyCount()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "[jira] %d calls in the last hour", hourly)
	if wait := s.RateLimitWaitTotal(); wait > 0 {
		fmt.Fprintf(&sb, " | rate-wait: %s", formatDuration(wait))
	}
	sb.WriteString("\n")

	type opEntry struct {
		name  string
		stats *OperationStats
	}
	ops := make([]opEntry, 0, len(s.operations))
	for name, stats := range s.operations {
		ops = append(ops, opEntry{name, stats})
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].stats.Count != ops[j].stats.Count {
			return ops[i].stats.Count > ops[j].stats.Count
		}
		return ops[i].name < ops[j].name
	})

	for _, op := range ops {
		avgMs := float64(op.stats.TotalTimeNs) / float64(op.stats.Count) / 1e6
		line := fmt.Sprintf("  %-20s %4d  avg:%s", op.name, op.stats.Count, formatMillis(avgMs))
		if op.stats.Errors > 0 {
			line += fmt.Sprintf("  errors:%d", op.stats.Errors)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	return sb.String()
}

// Close stops the periodic logger and waits for it to finish.
func (s *Stats) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
	})
}

func (s *Stats) periodicLogger(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.log.Info("gateway stats", zap.String("summary", s.Summary()))
		case <-s.stopCh:
			s.log.Info("final gateway stats", zap.String("summary", s.Summary()))
			return
		}
	}
}

// formatDuration formats a duration for display (e.g., "1.2s", "450ms").
func formatDuration(d time.Duration) string {
	if d >= time.Second {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}

func formatMillis(ms float64) string {
	if ms >= 1000 {
		return fmt.Sprintf("%.1fs", ms/1000)
	}
	return fmt.Sprintf("%.0fms", ms)
}
