package rate

import (
	"context"
	"fmt"
	"time"
)

const (
	loginMinuteWindow = time.Minute
	login10SecWindow  = 10 * time.Second
)

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	ResetWindow(ctx context.Context, key string) error
}

// Limiter throttles credential-guessing by counting login attempts per
// normalized login over two sliding windows.
type Limiter struct {
	store     WindowStore
	perMinute int
	per10Sec  int
}

func NewLimiter(store WindowStore, perMinute, per10Sec int) *Limiter {
	if perMinute < 0 {
		perMinute = 0
	}
	if per10Sec < 0 {
		per10Sec = 0
	}

	return &Limiter{
		store:     store,
		perMinute: perMinute,
		per10Sec:  per10Sec,
	}
}

// AllowLogin records one attempt for login and reports whether it may
// proceed. When blocked, the first return value is the retry-after hint in
// seconds.
func (l *Limiter) AllowLogin(ctx context.Context, login string) (int64, bool, error) {
	if login == "" {
		return 0, false, fmt.Errorf("login is required")
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	retryAfterSec := int64(0)

	if l.perMinute > 0 {
		count, ttl, err := l.store.IncrementWindow(ctx, minuteKey(login), loginMinuteWindow)
		if err != nil {
			return 0, false, err
		}
		if count > int64(l.perMinute) {
			retryAfterSec = maxInt64(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if l.per10Sec > 0 {
		count, ttl, err := l.store.IncrementWindow(ctx, tenSecKey(login), login10SecWindow)
		if err != nil {
			return 0, false, err
		}
		if count > int64(l.per10Sec) {
			retryAfterSec = maxInt64(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if retryAfterSec > 0 {
		return retryAfterSec, false, nil
	}

	return 0, true, nil
}

// ResetLogin clears the attempt windows after a successful authentication.
func (l *Limiter) ResetLogin(ctx context.Context, login string) error {
	if login == "" {
		return fmt.Errorf("login is required")
	}
	if l.store == nil {
		return fmt.Errorf("rate limiter store is nil")
	}

	if err := l.store.ResetWindow(ctx, minuteKey(login)); err != nil {
		return err
	}
	return l.store.ResetWindow(ctx, tenSecKey(login))
}

func minuteKey(login string) string {
	return "rate:login:min:" + login
}

func tenSecKey(login string) string {
	return "rate:login:10s:" + login
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
