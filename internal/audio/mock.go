package audio

import (
	"sync"
	"sync/atomic"
)

// Call records one control invoked on a MockDevice.
type Call struct {
	Method string
	Arg    any // source, rate or position; nil for argument-less calls
}

// MockDevice implements Device for testing purposes.
// It records every control call and produces events only when told to,
// or automatically when auto-emit is enabled.
type MockDevice struct {
	mu          sync.Mutex
	calls       []Call
	source      string
	rate        float64
	duration    float64
	currentTime float64
	playing     bool
	autoEmit    bool
	closed      bool

	events chan Event

	// Metrics for testing
	playCount  atomic.Int64
	pauseCount atomic.Int64
	stopCount  atomic.Int64
}

// NewMockDevice creates a mock device with a buffered event channel and
// auto-emit disabled.
func NewMockDevice() *MockDevice {
	return &MockDevice{
		rate:   1,
		events: make(chan Event, 64),
	}
}

// SetAutoEmit makes Play, Pause, Stop and Seek emit the events a real
// device would.
func (m *MockDevice) SetAutoEmit(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoEmit = enabled
}

func (m *MockDevice) record(method string, arg any) {
	m.calls = append(m.calls, Call{Method: method, Arg: arg})
}

// SetSource binds a new source and rewinds. Interrupted playback is
// reported as a pause of the new source.
func (m *MockDevice) SetSource(src string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("SetSource", src)
	wasPlaying := m.playing
	m.source = src
	m.currentTime = 0
	m.playing = false
	if wasPlaying && m.autoEmit {
		m.emitLocked(Event{Type: EventPause, Source: src})
	}
}

// SetPlaybackRate records the rate.
func (m *MockDevice) SetPlaybackRate(rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("SetPlaybackRate", rate)
	m.rate = rate
}

// Play starts simulated playback, from the start once the source has ended.
func (m *MockDevice) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Play", nil)
	m.playCount.Add(1)
	if !m.autoEmit {
		return
	}
	if m.source == "" {
		m.emitLocked(Event{Type: EventError, Err: ErrNoSource})
		return
	}
	if m.duration > 0 && m.currentTime >= m.duration {
		m.currentTime = 0
	}
	m.playing = true
	m.emitLocked(Event{Type: EventPlay, Source: m.source})
}

// Pause pauses simulated playback.
func (m *MockDevice) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Pause", nil)
	m.pauseCount.Add(1)
	if !m.autoEmit || !m.playing {
		return
	}
	m.playing = false
	m.emitLocked(Event{Type: EventPause, Source: m.source})
}

// Stop halts simulated playback and rewinds.
func (m *MockDevice) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Stop", nil)
	m.stopCount.Add(1)
	if !m.autoEmit {
		return
	}
	m.playing = false
	m.currentTime = 0
	m.emitLocked(Event{Type: EventStop, Source: m.source})
}

// Seek moves the simulated position.
func (m *MockDevice) Seek(position float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Seek", position)
	if !m.autoEmit {
		return
	}
	m.currentTime = position
	if m.duration > 0 && m.currentTime > m.duration {
		m.currentTime = m.duration
	}
	m.emitLocked(Event{Type: EventTimeUpdate, Source: m.source})
}

// Advance moves simulated playback forward by seconds of wall time, scaled
// by the playback rate, emitting a time update, or ended once the duration
// is reached. It does nothing while paused.
func (m *MockDevice) Advance(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.playing {
		return
	}
	m.currentTime += seconds * m.rate
	if m.duration > 0 && m.currentTime >= m.duration {
		m.currentTime = m.duration
		m.playing = false
		m.emitLocked(Event{Type: EventEnded, Source: m.source})
		return
	}
	m.emitLocked(Event{Type: EventTimeUpdate, Source: m.source})
}

// Duration returns the simulated duration.
func (m *MockDevice) Duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

// CurrentTime returns the simulated position.
func (m *MockDevice) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

// Events returns the event channel. It is closed by Close.
func (m *MockDevice) Events() <-chan Event {
	return m.events
}

// Close closes the event channel. Further emits are dropped.
func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.events)
	}
	return nil
}

// Test helper methods

// Emit pushes an event as if the device produced it.
func (m *MockDevice) Emit(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitLocked(ev)
}

func (m *MockDevice) emitLocked(ev Event) {
	if m.closed {
		return
	}
	select {
	case m.events <- ev:
	default:
		// consumer isn't draining; drop
	}
}

// SetDuration sets what Duration reports.
func (m *MockDevice) SetDuration(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duration = seconds
}

// SetCurrentTime sets what CurrentTime reports.
func (m *MockDevice) SetCurrentTime(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = seconds
}

// Source returns the bound source.
func (m *MockDevice) Source() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

// Rate returns the last rate set.
func (m *MockDevice) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

// Calls returns a copy of the recorded calls in order.
func (m *MockDevice) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallNames returns just the method names of the recorded calls.
func (m *MockDevice) CallNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.calls))
	for i, c := range m.calls {
		names[i] = c.Method
	}
	return names
}

// ResetCalls forgets recorded calls and metrics.
func (m *MockDevice) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.playCount.Store(0)
	m.pauseCount.Store(0)
	m.stopCount.Store(0)
}

// GetMetrics returns playback metrics for testing.
func (m *MockDevice) GetMetrics() MockMetrics {
	return MockMetrics{
		PlayCount:  m.playCount.Load(),
		PauseCount: m.pauseCount.Load(),
		StopCount:  m.stopCount.Load(),
	}
}

// MockMetrics contains control call counts for testing.
type MockMetrics struct {
	PlayCount  int64
	PauseCount int64
	StopCount  int64
}

// Ensure MockDevice implements Device interface
var _ Device = (*MockDevice)(nil)
