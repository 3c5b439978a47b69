package proctor

import "sync"

// Sink receives the signals a Monitor observes.
type Sink interface {
	VisibilityChanged(v Visibility)
	CameraChanged(active bool)
	ActionBlocked(ev PageEvent)
}

// Monitor owns the page and camera subscriptions of one running exam.
// Listeners are registered by Start and removed by Stop.
type Monitor struct {
	page Page

	mu     sync.Mutex
	unsubs []func()
	active bool
}

// NewMonitor creates a Monitor for page.
func NewMonitor(page Page) *Monitor {
	return &Monitor{page: page}
}

// Start subscribes to visibility changes and suppresses clipboard and
// selection actions. Calling Start on a running monitor does nothing.
func (m *Monitor) Start(sink Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return
	}
	m.active = true

	m.unsubs = append(m.unsubs, m.page.OnVisibilityChange(sink.VisibilityChanged))
	for _, ev := range SuppressedEvents {
		m.unsubs = append(m.unsubs, m.page.Suppress(ev, func() { sink.ActionBlocked(ev) }))
	}
}

// WatchCamera forwards camera activity changes until Stop.
func (m *Monitor) WatchCamera(track Track, sink Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active || track == nil {
		return
	}
	m.unsubs = append(m.unsubs, track.OnActiveChange(sink.CameraChanged))
}

// Stop removes every listener. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	unsubs := m.unsubs
	m.unsubs = nil
	m.active = false
	m.mu.Unlock()

	for i := len(unsubs) - 1; i >= 0; i-- {
		if unsubs[i] != nil {
			unsubs[i]()
		}
	}
}

// Active reports whether listeners are registered.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}
