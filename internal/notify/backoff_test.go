package notify

import (
	"testing"
	"time"
)

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		errors int
		want   time.Duration
	}{
		{errors: 0, want: time.Second},
		{errors: 1, want: 2 * time.Second},
		{errors: 3, want: 8 * time.Second},
		{errors: 4, want: 16 * time.Second},
		{errors: 5, want: 30 * time.Second},
		{errors: 100, want: 30 * time.Second},
	}

	for _, tt := range tests {
		if got := retryBackoff(tt.errors); got != tt.want {
			t.Errorf("retryBackoff(%d) = %v, want %v", tt.errors, got, tt.want)
		}
	}
}
