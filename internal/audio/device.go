package audio

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

var (
	// ErrUnavailable is returned by NewOtoDevice in builds without audio output.
	ErrUnavailable = errors.New("audio output not available in this build")

	// ErrUnknownDevice is returned by NewDevice for an unrecognised device name.
	ErrUnknownDevice = errors.New("unknown audio device")

	// ErrNoSource is carried by an error event when play is requested
	// before a playable source is bound.
	ErrNoSource = errors.New("no playable source")
)

// EventType identifies a device notification.
type EventType int

const (
	EventPlay EventType = iota + 1
	EventPause
	EventStop
	EventEnded
	EventTimeUpdate
	EventError
)

// String returns the string representation of the event type
func (t EventType) String() string {
	switch t {
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventStop:
		return "stop"
	case EventEnded:
		return "ended"
	case EventTimeUpdate:
		return "timeupdate"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a notification from the device. Source is the source the device
// was bound to when the event was produced.
type Event struct {
	Type   EventType
	Source string
	Err    error
}

// Device is an audio output. Controls are fire-and-forget; their effects
// are reported asynchronously on Events.
type Device interface {
	SetSource(src string)
	SetPlaybackRate(rate float64)
	Play()
	Pause()
	Stop()
	Seek(position float64)
	Duration() float64    // seconds, 0 when unknown
	CurrentTime() float64 // seconds
	Events() <-chan Event
	Close() error
}

// Device names accepted by NewDevice.
const (
	DeviceOto  = "oto"
	DeviceMock = "mock"
)

// Config contains configuration for audio devices.
type Config struct {
	Device             string
	SampleRate         int // 44100 or 48000 Hz only
	Channels           int // 1 = mono, 2 = stereo
	BufferSize         time.Duration
	TimeUpdateInterval time.Duration
	CacheBytes         int64 // decoded audio kept in memory; 0 disables
}

// DefaultConfig returns the default device configuration.
func DefaultConfig() Config {
	return Config{
		Device:             DeviceOto,
		SampleRate:         44100,
		Channels:           2,
		BufferSize:         100 * time.Millisecond,
		TimeUpdateInterval: 250 * time.Millisecond,
		CacheBytes:         DefaultCacheBytes,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Device != DeviceOto && c.Device != DeviceMock {
		return fmt.Errorf("%w: %q", ErrUnknownDevice, c.Device)
	}
	if c.SampleRate != 44100 && c.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", c.Channels)
	}
	if c.TimeUpdateInterval <= 0 {
		return errors.New("time update interval must be positive")
	}
	if c.CacheBytes < 0 {
		return errors.New("cache size must not be negative")
	}
	return nil
}

// NewDevice creates the device named by cfg.Device. A mock device is
// created in auto-emit mode so it behaves like real hardware.
func NewDevice(cfg Config, logger *log.Logger) (Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = log.Default().WithPrefix("audio")
	}

	switch cfg.Device {
	case DeviceMock:
		m := NewMockDevice()
		m.SetAutoEmit(true)
		return m, nil
	default:
		d, err := NewOtoDevice(cfg, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}
