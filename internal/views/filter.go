package views

import (
	"strings"
	"time"

	"zen-journal-backend/internal/models"
)

// Record is what every listed entity exposes to filtering and reordering.
type Record interface {
	RecordID() string
	Created() time.Time
	SearchText() string
}

type Status string

const (
	StatusAll       Status = "all"
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
)

func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusCompleted:
		return StatusCompleted
	case StatusPending:
		return StatusPending
	}
	return StatusAll
}

// Bucket is a created_at window ending now.
type Bucket string

const (
	BucketAll   Bucket = "all"
	BucketToday Bucket = "today"
	BucketWeek  Bucket = "week"
	BucketMonth Bucket = "month"
)

func ParseBucket(s string) Bucket {
	switch Bucket(strings.ToLower(strings.TrimSpace(s))) {
	case BucketToday:
		return BucketToday
	case BucketWeek:
		return BucketWeek
	case BucketMonth:
		return BucketMonth
	}
	return BucketAll
}

// Contains reports whether t falls in the bucket. today runs from local
// midnight; week and month are the last 7 and 30 days.
func (b Bucket) Contains(t, now time.Time) bool {
	var start time.Time
	switch b {
	case BucketToday:
		y, m, d := now.Date()
		start = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	case BucketWeek:
		start = now.AddDate(0, 0, -7)
	case BucketMonth:
		start = now.AddDate(0, 0, -30)
	default:
		return true
	}
	return !t.Before(start) && !t.After(now)
}

// Filter is the derived-list criteria. Zero value matches everything.
// Status and Priority only apply to tasks.
type Filter struct {
	Query    string
	Status   Status
	Priority string
	Bucket   Bucket
}

// Apply returns the items matching f, keeping their order.
func Apply[T Record](items []T, f Filter, now time.Time) []T {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	priority := strings.ToLower(strings.TrimSpace(f.Priority))
	if priority == "all" {
		priority = ""
	}

	out := make([]T, 0, len(items))
	for _, it := range items {
		if q != "" && !strings.Contains(strings.ToLower(it.SearchText()), q) {
			continue
		}
		if f.Bucket != "" && !f.Bucket.Contains(it.Created(), now) {
			continue
		}
		if t, ok := any(it).(models.Task); ok && !matchTask(t, f.Status, priority) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func matchTask(t models.Task, status Status, priority string) bool {
	switch status {
	case StatusCompleted:
		if !t.Completed {
			return false
		}
	case StatusPending:
		if t.Completed {
			return false
		}
	}
	return priority == "" || string(t.Priority) == priority
}
