package jira

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestStats_Record(t *testing.T) {
	t.Parallel()
	stats := NewStats(nil, 0)
	defer stats.Close()

	stats.Record("ListSprints", 100*time.Millisecond, nil)
	stats.Record("ListSprints", 150*time.Millisecond, nil)
	stats.Record("ListSprintIssues", 200*time.Millisecond, nil)
	stats.Record("ListSprintIssues", 250*time.Millisecond, errors.New("failed"))

	sprints := stats.Operation("ListSprints")
	if sprints.Count != 2 {
		t.Errorf("ListSprints count = %d, want 2", sprints.Count)
	}
	if sprints.Errors != 0 {
		t.Errorf("ListSprints errors = %d, want 0", sprints.Errors)
	}

	issues := stats.Operation("ListSprintIssues")
	if issues.Count != 2 {
		t.Errorf("ListSprintIssues count = %d, want 2", issues.Count)
	}
	if issues.Errors != 1 {
		t.Errorf("ListSprintIssues errors = %d, want 1", issues.Errors)
	}
	if got := time.Duration(issues.TotalTimeNs); got != 450*time.Millisecond {
		t.Errorf("ListSprintIssues total = %s, want 450ms", got)
	}
}

func TestStats_HourlyCount(t *testing.T) {
	t.Parallel()
	stats := NewStats(nil, 0)
	defer stats.Close()

	for i := 0; i < 5; i++ {
		stats.Record("ListBoards", 10*time.Millisecond, nil)
	}
	if got := stats.HourlyCount(); got != 5 {
		t.Errorf("HourlyCount() = %d, want 5", got)
	}
}

func TestStats_Summary(t *testing.T) {
	t.Parallel()
	stats := NewStats(nil, 0)
	defer stats.Close()

	stats.Record("ListSprints", 2*time.Second, nil)
	stats.Record("ListBoards", 50*time.Millisecond, errors.New("boom"))
	stats.RecordRateLimitWait(1500 * time.Millisecond)

	summary := stats.Summary()
	for _, want := range []string{"2 calls", "rate-wait: 1.5s", "ListSprints", "avg:2.0s", "errors:1"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary() missing %q:\n%s", want, summary)
		}
	}
}

func TestStats_NilIsSafe(t *testing.T) {
	t.Parallel()
	var stats *Stats
	stats.Record("ListBoards", time.Millisecond, nil)
	stats.RecordRateLimitWait(time.Second)
	if stats.HourlyCount() != 0 || stats.RateLimitWaitTotal() != 0 {
		t.Error("nil stats should report zero")
	}
	stats.Close()
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   time.Duration
		want string
	}{
		{450 * time.Millisecond, "450ms"},
		{1200 * time.Millisecond, "1.2s"},
		{0, "0ms"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
