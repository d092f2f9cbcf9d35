package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHoldDuration(t *testing.T) {
	open := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		closed time.Time
		want   string
	}{
		{"seconds", open.Add(30 * time.Second), "0m"},
		{"negative", open.Add(-time.Hour), "0m"},
		{"minutes", open.Add(45 * time.Minute), "45m"},
		{"hours and minutes", open.Add(2*time.Hour + 5*time.Minute), "2h 5m"},
		{"exact hours", open.Add(3 * time.Hour), "3h"},
		{"days", open.Add(50*time.Hour + time.Minute), "2d 2h 1m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HoldDuration(open, tt.closed))
		})
	}
}
