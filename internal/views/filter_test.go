package views

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"zen-journal-backend/internal/models"
)

func TestBucketContains(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		bucket Bucket
		at     time.Time
		want   bool
	}{
		{BucketToday, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), true},
		{BucketToday, time.Date(2025, 3, 9, 23, 59, 0, 0, time.UTC), false},
		{BucketWeek, now.AddDate(0, 0, -6), true},
		{BucketWeek, now.AddDate(0, 0, -8), false},
		{BucketMonth, now.AddDate(0, 0, -29), true},
		{BucketMonth, now.AddDate(0, 0, -31), false},
		{BucketAll, now.AddDate(-5, 0, 0), true},
		{BucketToday, now.Add(time.Hour), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.bucket.Contains(tt.at, now), "%s at %s", tt.bucket, tt.at)
	}
}

func TestApplyTaskFilters(t *testing.T) {
	now := time.Now()
	tasks := []models.Task{
		{ID: "1", Title: "Buy MILK", Priority: models.PriorityHigh, CreatedAt: now},
		{ID: "2", Title: "call mom", Priority: models.PriorityLow, Completed: true, CreatedAt: now},
		{ID: "3", Title: "buy bread", Priority: models.PriorityLow, CreatedAt: now},
	}

	ids := func(ts []models.Task) []string {
		var out []string
		for _, t := range ts {
			out = append(out, t.ID)
		}
		return out
	}

	assert.Equal(t, []string{"1", "2", "3"}, ids(Apply(tasks, Filter{}, now)))
	assert.Equal(t, []string{"1", "3"}, ids(Apply(tasks, Filter{Query: "buy"}, now)))
	assert.Equal(t, []string{"1"}, ids(Apply(tasks, Filter{Query: "milk"}, now)))
	assert.Equal(t, []string{"2"}, ids(Apply(tasks, Filter{Status: StatusCompleted}, now)))
	assert.Equal(t, []string{"3"}, ids(Apply(tasks, Filter{Status: StatusPending, Priority: "low"}, now)))
	assert.Equal(t, []string{"1", "2", "3"}, ids(Apply(tasks, Filter{Priority: "all"}, now)))
}

func TestApplyBucketOnNotes(t *testing.T) {
	now := time.Now()
	notes := []models.Note{
		{ID: "new", Content: "x", CreatedAt: now.Add(-time.Hour)},
		{ID: "old", Content: "x", CreatedAt: now.AddDate(0, 0, -10)},
	}
	got := Apply(notes, Filter{Bucket: BucketWeek}, now)
	assert.Len(t, got, 1)
	assert.Equal(t, "new", got[0].ID)
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, StatusPending, ParseStatus("Pending"))
	assert.Equal(t, StatusAll, ParseStatus("whatever"))
	assert.Equal(t, BucketMonth, ParseBucket("month"))
	assert.Equal(t, BucketAll, ParseBucket(""))
}
