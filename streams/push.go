// Package streams provides push-driven location and motion streams,
// and a replayer feeding them from recorded rides.
package streams

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/rotblauer/catride/params"
	"github.com/rotblauer/catride/session"
	"github.com/rotblauer/catride/types/fix"
)

var (
	ErrFixTimeout = errors.New("no location fix within timeout")
	ErrStaleFix   = errors.New("stale location fix")
	ErrNilHandler = errors.New("nil handler")
)

type subscription struct {
	once sync.Once
	fn   func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.fn)
}

type locationSubscriber struct {
	onFix    func(fix.LocationFix)
	onError  func(error)
	watchdog *time.Timer
}

// LocationFeed is a session.LocationStream fed by Push.
// Fixes are delivered synchronously on the pushing goroutine.
// Timeout errors are delivered from a timer goroutine.
type LocationFeed struct {
	mu      sync.Mutex
	options params.LocationOptions
	subs    map[uint64]*locationSubscriber
	next    uint64
	seen    *lru.Cache
	// newest is the latest fix time delivered since the feed last had subscribers.
	newest time.Time
}

var _ session.LocationStream = (*LocationFeed)(nil)

// NewLocationFeed returns a feed honoring the Timeout and MaximumAge options.
// MaximumAge is measured against the newest fix already delivered, not the
// local clock, so batched uploads and device clock skew are not stale.
// Exact duplicate fixes among the last dedupeSize are dropped; a size
// of zero disables deduplication.
func NewLocationFeed(options params.LocationOptions, dedupeSize int) *LocationFeed {
	l := &LocationFeed{
		options: options,
		subs:    make(map[uint64]*locationSubscriber),
	}
	if dedupeSize > 0 {
		l.seen = lru.New(dedupeSize)
	}
	return l
}

func (l *LocationFeed) Subscribe(onFix func(fix.LocationFix), onError func(error)) (session.Subscription, error) {
	if onFix == nil {
		return nil, ErrNilHandler
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.next
	l.next++
	sub := &locationSubscriber{onFix: onFix, onError: onError}
	if l.options.Timeout > 0 {
		sub.watchdog = time.AfterFunc(l.options.Timeout, func() {
			l.timeout(id)
		})
	}
	l.subs[id] = sub
	return &subscription{fn: func() { l.remove(id) }}, nil
}

func (l *LocationFeed) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if sub, ok := l.subs[id]; ok {
		if sub.watchdog != nil {
			sub.watchdog.Stop()
		}
		delete(l.subs, id)
		if len(l.subs) == 0 {
			l.newest = time.Time{}
		}
	}
}

func (l *LocationFeed) timeout(id uint64) {
	l.mu.Lock()
	sub, ok := l.subs[id]
	if ok {
		sub.watchdog.Reset(l.options.Timeout)
	}
	l.mu.Unlock()
	if ok && sub.onError != nil {
		sub.onError(fmt.Errorf("%w (%s)", ErrFixTimeout, l.options.Timeout))
	}
}

// duplicate reports whether f was delivered recently. Fixes pushed with
// nobody listening are not remembered. Callers hold the lock.
func (l *LocationFeed) duplicate(f fix.LocationFix) bool {
	if l.seen == nil || len(l.subs) == 0 {
		return false
	}
	hash, err := hashstructure.Hash(f, hashstructure.FormatV2, nil)
	if err != nil {
		return false
	}
	if _, ok := l.seen.Get(hash); ok {
		return true
	}
	l.seen.Add(hash, struct{}{})
	return false
}

// Push delivers f to every subscriber and returns how many received it.
// Duplicates are dropped silently. A fix older than the newest delivered
// fix by more than MaximumAge is reported as ErrStaleFix to the
// subscribers' error handlers instead.
func (l *LocationFeed) Push(f fix.LocationFix) int {
	l.mu.Lock()
	if l.duplicate(f) {
		l.mu.Unlock()
		return 0
	}
	var staleErr error
	if !f.Time.IsZero() && len(l.subs) > 0 {
		behind := l.newest.Sub(f.Time)
		switch {
		case l.options.MaximumAge > 0 && !l.newest.IsZero() && behind > l.options.MaximumAge:
			staleErr = fmt.Errorf("%w: %s behind", ErrStaleFix, behind.Round(time.Millisecond))
		case f.Time.After(l.newest):
			l.newest = f.Time
		}
	}
	subs := make([]*locationSubscriber, 0, len(l.subs))
	for _, sub := range l.subs {
		if staleErr == nil && sub.watchdog != nil {
			sub.watchdog.Reset(l.options.Timeout)
		}
		subs = append(subs, sub)
	}
	l.mu.Unlock()

	if staleErr != nil {
		for _, sub := range subs {
			if sub.onError != nil {
				sub.onError(staleErr)
			}
		}
		return 0
	}
	for _, sub := range subs {
		sub.onFix(f)
	}
	return len(subs)
}

// Fail reports err to every subscriber's error handler.
func (l *LocationFeed) Fail(err error) {
	l.mu.Lock()
	subs := make([]*locationSubscriber, 0, len(l.subs))
	for _, sub := range l.subs {
		subs = append(subs, sub)
	}
	l.mu.Unlock()
	for _, sub := range subs {
		if sub.onError != nil {
			sub.onError(err)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (l *LocationFeed) Subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

// Close drops every subscriber and stops their timers.
func (l *LocationFeed) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, sub := range l.subs {
		if sub.watchdog != nil {
			sub.watchdog.Stop()
		}
		delete(l.subs, id)
	}
	l.newest = time.Time{}
}

// MotionFeed is a session.MotionStream fed by Push.
type MotionFeed struct {
	mu       sync.Mutex
	interval time.Duration
	subs     map[uint64]func(fix.MotionSample)
	next     uint64
}

var _ session.MotionStream = (*MotionFeed)(nil)

// NewMotionFeed returns a feed for samples taken at the nominal interval.
func NewMotionFeed(interval time.Duration) *MotionFeed {
	return &MotionFeed{
		interval: interval,
		subs:     make(map[uint64]func(fix.MotionSample)),
	}
}

// Interval is the nominal sampling interval.
func (m *MotionFeed) Interval() time.Duration {
	return m.interval
}

func (m *MotionFeed) Subscribe(onSample func(fix.MotionSample)) (session.Subscription, error) {
	if onSample == nil {
		return nil, ErrNilHandler
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	m.subs[id] = onSample
	return &subscription{fn: func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}}, nil
}

func (m *MotionFeed) Push(s fix.MotionSample) int {
	m.mu.Lock()
	subs := make([]func(fix.MotionSample), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
	return len(subs)
}

func (m *MotionFeed) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}
