// Package ratelimit implements sliding-window admission with an explicit clock.
package ratelimit

import (
	"sync"
	"time"
)

// Window admits at most limit events within any interval. An event that
// happened exactly interval ago no longer counts.
type Window struct {
	mu       sync.Mutex
	history  []time.Time
	limit    int
	interval time.Duration
}

func NewWindow(limit int, interval time.Duration) *Window {
	if limit < 1 {
		limit = 1
	}
	return &Window{
		history:  make([]time.Time, 0, limit),
		limit:    limit,
		interval: interval,
	}
}

func (w *Window) Interval() time.Duration { return w.interval }

func (w *Window) Allow() bool { return w.AllowAt(time.Now()) }

// AllowAt records an attempt at now and reports whether it was admitted.
// Rejected attempts are not recorded.
func (w *Window) AllowAt(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	fresh := w.history[:0]
	for _, t := range w.history {
		if now.Sub(t) < w.interval {
			fresh = append(fresh, t)
		}
	}
	w.history = fresh

	if len(fresh) >= w.limit {
		return false
	}
	w.history = append(w.history, now)
	return true
}

func (w *Window) Reset() {
	w.mu.Lock()
	w.history = w.history[:0]
	w.mu.Unlock()
}

// Keyed keeps one Window per key.
type Keyed[K comparable] struct {
	mu       sync.Mutex
	windows  map[K]*Window
	limit    int
	interval time.Duration
}

func NewKeyed[K comparable](limit int, interval time.Duration) *Keyed[K] {
	return &Keyed[K]{
		windows:  make(map[K]*Window),
		limit:    limit,
		interval: interval,
	}
}

func (k *Keyed[K]) Allow(key K) bool { return k.AllowAt(key, time.Now()) }

func (k *Keyed[K]) AllowAt(key K, now time.Time) bool {
	k.mu.Lock()
	w, ok := k.windows[key]
	if !ok {
		w = NewWindow(k.limit, k.interval)
		k.windows[key] = w
	}
	k.mu.Unlock()
	return w.AllowAt(now)
}

// Forget drops the history of key.
func (k *Keyed[K]) Forget(key K) {
	k.mu.Lock()
	delete(k.windows, key)
	k.mu.Unlock()
}
