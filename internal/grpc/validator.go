package server

import (
	"fmt"
	"time"

	"github.com/arec-energy/pumpstream/internal/aggregation"
)

const (
	maxTimeRange = 2 * 365 * 24 * time.Hour

	DefaultLatestLimit = 100
	MaxLatestLimit     = 1000
)

// RequestValidator handles input validation
type RequestValidator struct {
	maxRange time.Duration
	maxLimit int
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{
		maxRange: maxTimeRange,
		maxLimit: MaxLatestLimit,
	}
}

// Validate checks an aggregate request whose range has already been
// resolved and returns the parsed granularity.
func (v *RequestValidator) Validate(start, end time.Time, granularity string) (aggregation.Granularity, error) {
	if granularity == "" {
		return 0, fmt.Errorf("missing granularity")
	}
	g, err := aggregation.ParseGranularity(granularity)
	if err != nil {
		return 0, err
	}

	// Validate timestamps are present
	if start.IsZero() || end.IsZero() {
		return 0, fmt.Errorf("missing timestamp")
	}

	// Validate time range
	if start.After(end) {
		return 0, fmt.Errorf("start time must be before end time")
	}

	// Validate maximum time range
	if end.Sub(start) > v.maxRange {
		return 0, fmt.Errorf("time range exceeds maximum allowed")
	}

	return g, nil
}

// Limit returns the effective row limit for a Latest request.
func (v *RequestValidator) Limit(limit int) (int, error) {
	switch {
	case limit == 0:
		return DefaultLatestLimit, nil
	case limit < 0:
		return 0, fmt.Errorf("limit must be positive")
	case limit > v.maxLimit:
		return 0, fmt.Errorf("limit exceeds maximum of %d", v.maxLimit)
	}
	return limit, nil
}
