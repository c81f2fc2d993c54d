package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestIsTimeout(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), true},
		{"net timeout", fmt.Errorf("dial: %w", timeoutError{}), true},
		{"cancelled", context.Canceled, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTimeout(tt.err); got != tt.expected {
				t.Errorf("IsTimeout(%v) = %v, expected %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestCallStatus(t *testing.T) {
	tests := []struct {
		name     string
		info     RateInfo
		err      error
		expected string
	}{
		{"ok", RateInfo{}, nil, CallStatusOK},
		{"limited flag", RateInfo{Limited: true}, nil, CallStatusRateLimited},
		{"limited error", RateInfo{}, fmt.Errorf("%w: 429", ErrRateLimited), CallStatusRateLimited},
		{"timeout", RateInfo{}, context.DeadlineExceeded, CallStatusTimeout},
		{"remote", RateInfo{}, fmt.Errorf("%w: 500", ErrRemote), CallStatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CallStatus(tt.info, tt.err); got != tt.expected {
				t.Errorf("CallStatus() = %s, expected %s", got, tt.expected)
			}
		})
	}
}
