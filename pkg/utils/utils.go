package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/xhit/go-str2duration/v2"
)

// ParsePositiveDuration parses durations such as "60s", "10m" or "1d".
func ParsePositiveDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, errors.New("duration is empty")
	}

	d, err := str2duration.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("error parsing duration: %w", err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", s)
	}

	return d, nil
}
