package core

import (
	"context"
	"errors"
	"net"
)

var (
	// ErrRateLimited is returned when a remote answered 429 and the call may be retried
	ErrRateLimited = errors.New("rate limited")
	// ErrRemote marks transport and HTTP failures distinct from rate limiting
	ErrRemote = errors.New("remote error")
	// ErrRetriesExhausted is returned when the configured retry budget ran out
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrQuotaExceeded is returned when a daily quota is used up; the run stops early
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrNothingPlaying is returned when the player has no current track
	ErrNothingPlaying = errors.New("nothing is currently playing")
	// ErrNotAuthenticated is returned by clients used before Authenticate
	ErrNotAuthenticated = errors.New("client not authenticated")
)

// Call status labels reported to the Recorder.
const (
	CallStatusOK          = "ok"
	CallStatusRateLimited = "rate_limited"
	CallStatusTimeout     = "timeout"
	CallStatusError       = "error"
)

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// CallStatus classifies the result of one remote call.
func CallStatus(info RateInfo, err error) string {
	switch {
	case info.Limited || errors.Is(err, ErrRateLimited):
		return CallStatusRateLimited
	case IsTimeout(err):
		return CallStatusTimeout
	case err != nil:
		return CallStatusError
	default:
		return CallStatusOK
	}
}
