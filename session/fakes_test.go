package session

import (
	"errors"
	"sync"
	"time"

	"github.com/rotblauer/catride/types/fix"
	"github.com/rotblauer/catride/types/waypoint"
)

type fakeSub struct {
	once  sync.Once
	calls *int
	fn    func()
}

func (f *fakeSub) Unsubscribe() {
	f.once.Do(func() {
		*f.calls++
		f.fn()
	})
}

type fakeLocations struct {
	mu          sync.Mutex
	onFix       func(fix.LocationFix)
	onError     func(error)
	err         error
	unsubscribe int

	// onUnsubscribe runs when a subscription is released.
	onUnsubscribe func()
}

func (l *fakeLocations) Subscribe(onFix func(fix.LocationFix), onError func(error)) (Subscription, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onFix, l.onError = onFix, onError
	return &fakeSub{calls: &l.unsubscribe, fn: func() {
		l.mu.Lock()
		hook := l.onUnsubscribe
		l.mu.Unlock()
		if hook != nil {
			hook()
		}
	}}, nil
}

// push delivers regardless of subscription state, to simulate late events.
func (l *fakeLocations) push(f fix.LocationFix) {
	l.mu.Lock()
	fn := l.onFix
	l.mu.Unlock()
	if fn != nil {
		fn(f)
	}
}

func (l *fakeLocations) fail(err error) {
	l.mu.Lock()
	fn := l.onError
	l.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

type fakeMotions struct {
	mu          sync.Mutex
	onSample    func(fix.MotionSample)
	err         error
	unsubscribe int
}

func (m *fakeMotions) Subscribe(onSample func(fix.MotionSample)) (Subscription, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSample = onSample
	return &fakeSub{calls: &m.unsubscribe, fn: func() {}}, nil
}

func (m *fakeMotions) push(s fix.MotionSample) {
	m.mu.Lock()
	fn := m.onSample
	m.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

type collectSink struct {
	mu        sync.Mutex
	waypoints []waypoint.Waypoint
	panicking bool
}

func (c *collectSink) Submit(w waypoint.Waypoint) {
	if c.panicking {
		panic("sink exploded")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waypoints = append(c.waypoints, w)
}

func (c *collectSink) all() []waypoint.Waypoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]waypoint.Waypoint{}, c.waypoints...)
}

type recordObserver struct {
	mu       sync.Mutex
	rejected []string
	errs     []error
}

func (o *recordObserver) LogRejectedFix(f fix.LocationFix, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected = append(o.rejected, reason)
}

func (o *recordObserver) LogStreamError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errBoom = errors.New("boom")
