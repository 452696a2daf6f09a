package player

import (
	"context"
	"math"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/changdang/companion/internal/audio"
)

// Controller owns one audio device and the playback state derived from it.
// All methods are safe for concurrent use; device calls are issued in call
// order while the controller lock is held.
type Controller struct {
	device audio.Device
	logger *log.Logger

	mu    sync.Mutex
	state State
	// pending is set once device play has been requested and cleared by the
	// first event answering it, so a repeated Play cannot start the device
	// twice.
	pending bool

	listenerMu sync.Mutex
	listeners  map[int]func(State)
	nextID     int
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for device errors and dropped events.
func WithLogger(logger *log.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithDefaultRate sets the initial playback rate. Non-positive or
// non-finite values are ignored. Reset always returns to DefaultRate.
func WithDefaultRate(rate float64) Option {
	return func(c *Controller) {
		if validRate(rate) {
			c.state.PlaybackRate = rate
		}
	}
}

// New creates a controller driving device. The device is owned by the
// controller for its whole lifetime.
func New(device audio.Device, opts ...Option) *Controller {
	c := &Controller{
		device:    device,
		logger:    log.Default().WithPrefix("player"),
		state:     DefaultState(),
		listeners: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run applies device events until ctx is done or the event channel closes.
func (c *Controller) Run(ctx context.Context) error {
	events := c.device.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.HandleEvent(ev)
		}
	}
}

// HandleEvent reconciles state with one device event. Events tagged with a
// source other than the current one are stale and dropped.
func (c *Controller) HandleEvent(ev audio.Event) {
	c.mu.Lock()
	if ev.Source != "" && ev.Source != c.state.CurrentSource {
		c.mu.Unlock()
		c.logger.Debug("dropping stale event", "type", ev.Type, "src", ev.Source, "current", c.state.CurrentSource)
		return
	}

	if ev.Type == audio.EventError {
		c.logger.Error("audio error", "src", c.state.CurrentSource, "err", ev.Err)
	}
	if ev.Type != audio.EventTimeUpdate {
		c.pending = false
	}

	readout := Readout{
		Duration:    c.device.Duration(),
		CurrentTime: c.device.CurrentTime(),
	}
	c.commitLocked(Reduce(c.state, ev, readout))
}

// Play binds src if it differs from the current source, resetting time,
// duration and title, then starts the device unless it is already playing
// or a start is pending.
func (c *Controller) Play(src, title string) error {
	if src == "" {
		return ErrNoSource
	}
	c.mu.Lock()
	c.playLocked(src, title)
	return nil
}

// playLocked must be called with c.mu held; it releases it.
func (c *Controller) playLocked(src, title string) {
	next := c.state
	if src != next.CurrentSource {
		c.device.SetSource(src)
		next.CurrentSource = src
		next.CurrentTitle = title
		next.CurrentTime = 0
		next.Duration = 0
		c.pending = false
	}
	if !next.IsPlaying && !c.pending {
		c.device.SetPlaybackRate(next.PlaybackRate)
		c.device.Play()
		c.pending = true
	}
	c.commitLocked(next)
}

// Pause pauses the device if it is playing.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.IsPlaying {
		c.device.Pause()
	}
}

// Toggle pauses when playing and resumes the current source otherwise.
// Without a source it does nothing.
func (c *Controller) Toggle() {
	c.mu.Lock()
	switch {
	case c.state.CurrentSource == "":
		c.mu.Unlock()
	case c.state.IsPlaying:
		c.device.Pause()
		c.mu.Unlock()
	default:
		c.playLocked(c.state.CurrentSource, c.state.CurrentTitle)
	}
}

// Stop asks the device to stop. State changes when the device reports it.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.device.Stop()
}

// SetRate stores rate and applies it to the device right away.
func (c *Controller) SetRate(rate float64) error {
	if !validRate(rate) {
		return ErrInvalidRate
	}
	c.mu.Lock()
	next := c.state
	next.PlaybackRate = rate
	c.device.SetPlaybackRate(rate)
	c.commitLocked(next)
	return nil
}

// Seek forwards position to the device; negative positions become 0. The
// new position arrives with the device's time update.
func (c *Controller) Seek(position float64) {
	if position < 0 || math.IsNaN(position) {
		position = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.device.Seek(position)
}

// Reset stops the device and returns to the idle default state.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.device.Stop()
	c.pending = false
	c.commitLocked(DefaultState())
}

// Background pauses playback when the host application is hidden.
func (c *Controller) Background() {
	c.Pause()
}

// Foreground re-applies the stored rate to a loaded but idle device. It
// never resumes playback.
func (c *Controller) Foreground() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.CurrentSource != "" && !c.state.IsPlaying {
		c.device.SetPlaybackRate(c.state.PlaybackRate)
	}
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn to be called with the new state after every
// change. The returned func unregisters it.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.listenerMu.Lock()
		defer c.listenerMu.Unlock()
		delete(c.listeners, id)
	}
}

// commitLocked stores next, releases c.mu and notifies listeners if the
// state changed.
func (c *Controller) commitLocked(next State) {
	changed := next != c.state
	c.state = next
	c.mu.Unlock()

	if changed {
		c.notify(next)
	}
}

func (c *Controller) notify(state State) {
	c.listenerMu.Lock()
	fns := make([]func(State), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenerMu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func validRate(rate float64) bool {
	return rate > 0 && !math.IsInf(rate, 0) && !math.IsNaN(rate)
}
