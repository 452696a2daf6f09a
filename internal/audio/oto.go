//go:build !nocgo
// +build !nocgo

package audio

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
	"golang.org/x/time/rate"
)

// pollInterval is how often the monitor checks for drained or failed streams.
const pollInterval = 50 * time.Millisecond

// OtoDevice plays WAV or raw PCM files through an oto context.
// Playback rate is applied by resampling the decoded PCM, so pitch follows
// speed.
type OtoDevice struct {
	// OTO context - initialized once and reused
	context *oto.Context
	format  Format
	logger  *log.Logger
	cache   *PCMCache

	mu     sync.Mutex
	source string
	rate   float64

	// Decoded source at rate 1 in the context format.
	pcm []byte

	// Current oto player and the resampled buffer it reads from. The buffer
	// must stay referenced for as long as the player is alive.
	player *oto.Player
	scaled []byte
	reader *bytes.Reader

	// offset is the source position in seconds at the start of scaled.
	offset  float64
	playing bool

	throttle rate.Sometimes
	events   chan Event
	done     chan struct{}
	closed   bool
}

// NewOtoDevice creates the oto context and starts the playback monitor.
// oto allows a single context per process.
func NewOtoDevice(cfg Config, logger *log.Logger) (*OtoDevice, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = log.Default().WithPrefix("audio")
	}

	op := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   cfg.BufferSize,
	}
	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	d := &OtoDevice{
		context:  ctx,
		format:   Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels},
		logger:   logger,
		cache:    NewPCMCache(cfg.CacheBytes),
		rate:     1,
		throttle: rate.Sometimes{Interval: cfg.TimeUpdateInterval},
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
	}
	go d.monitor()
	return d, nil
}

// SetSource stops playback and loads src. Interrupted playback is reported
// as a pause of src. Load failures are reported as an error event; the
// source stays bound so later events carry it.
func (d *OtoDevice) SetSource(src string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	wasPlaying := d.playing
	d.closePlayerLocked()
	d.source = src
	d.offset = 0
	d.playing = false
	d.pcm = nil
	if wasPlaying {
		d.emitLocked(Event{Type: EventPause, Source: src})
	}

	pcm, err := d.cache.Load(src, d.format)
	if err != nil {
		d.logger.Debug("load source failed", "src", src, "err", err)
		d.emitLocked(Event{Type: EventError, Source: src, Err: err})
		return
	}
	d.pcm = pcm
	d.logger.Debug("source loaded", "src", src, "seconds", d.format.Duration(len(pcm)))
}

// SetPlaybackRate changes speed, rebuilding the stream at the current
// position when one exists.
func (d *OtoDevice) SetPlaybackRate(r float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if r <= 0 || r == d.rate {
		return
	}
	if d.player == nil {
		d.rate = r
		return
	}
	pos := d.positionLocked()
	d.rate = r
	d.rebuildLocked(pos)
}

// Play starts or resumes playback, from the start once the source has
// ended.
func (d *OtoDevice) Play() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pcm == nil {
		d.emitLocked(Event{Type: EventError, Source: d.source, Err: ErrNoSource})
		return
	}
	if d.playing {
		return
	}
	if d.player == nil {
		if d.offset >= d.format.Duration(len(d.pcm)) {
			d.offset = 0
		}
		d.rebuildLocked(d.offset)
	}
	d.player.Play()
	d.playing = true
	d.emitLocked(Event{Type: EventPlay, Source: d.source})
}

// Pause pauses playback, keeping the position.
func (d *OtoDevice) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.playing || d.player == nil {
		return
	}
	d.player.Pause()
	d.playing = false
	d.emitLocked(Event{Type: EventPause, Source: d.source})
}

// Stop halts playback and rewinds to the start.
func (d *OtoDevice) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closePlayerLocked()
	d.offset = 0
	d.playing = false
	d.emitLocked(Event{Type: EventStop, Source: d.source})
}

// Seek moves to position seconds, clamped to the source length.
func (d *OtoDevice) Seek(position float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pcm == nil {
		return
	}
	if position < 0 {
		position = 0
	}
	if total := d.format.Duration(len(d.pcm)); position > total {
		position = total
	}

	if d.player == nil {
		d.offset = position
	} else {
		d.rebuildLocked(position)
	}
	d.emitLocked(Event{Type: EventTimeUpdate, Source: d.source})
}

// Duration returns the source length in seconds.
func (d *OtoDevice) Duration() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.format.Duration(len(d.pcm))
}

// CurrentTime returns the playback position in source seconds.
func (d *OtoDevice) CurrentTime() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.positionLocked()
}

// Events returns the event channel. It is closed by Close.
func (d *OtoDevice) Events() <-chan Event {
	return d.events
}

// Close stops playback, ends the monitor and closes the event channel.
func (d *OtoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.closePlayerLocked()
	d.playing = false
	close(d.done)
	close(d.events)
	return nil
}

// positionLocked derives the position from how much of the resampled
// buffer oto has consumed, minus what is still queued in its buffer.
func (d *OtoDevice) positionLocked() float64 {
	if d.player == nil || d.reader == nil {
		return d.offset
	}
	consumed := len(d.scaled) - d.reader.Len() - d.player.BufferedSize()
	if consumed < 0 {
		consumed = 0
	}
	pos := d.offset + d.format.Duration(consumed)*d.rate
	if total := d.format.Duration(len(d.pcm)); pos > total {
		pos = total
	}
	return pos
}

// rebuildLocked replaces the player with one that starts at position,
// resampled for the current rate. Playback continues if it was running.
func (d *OtoDevice) rebuildLocked(position float64) {
	wasPlaying := d.playing
	d.closePlayerLocked()

	frame := d.format.FrameSize()
	start := int(position*float64(d.format.SampleRate)) * frame
	if start > len(d.pcm) {
		start = len(d.pcm)
	}

	d.offset = position
	d.scaled = Resample(d.pcm[start:], d.format.Channels, d.rate)
	d.reader = bytes.NewReader(d.scaled)
	d.player = d.context.NewPlayer(d.reader)
	if wasPlaying {
		d.player.Play()
	}
}

func (d *OtoDevice) closePlayerLocked() {
	if d.player == nil {
		return
	}
	d.player.Pause()
	if err := d.player.Close(); err != nil {
		d.logger.Debug("close player", "err", err)
	}
	d.player = nil
	d.reader = nil
	d.scaled = nil
}

// monitor reports drained streams as ended, player failures as errors and
// emits throttled time updates while playing.
func (d *OtoDevice) monitor() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			d.poll()
		}
	}
}

func (d *OtoDevice) poll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.playing || d.player == nil {
		return
	}

	if err := d.player.Err(); err != nil {
		d.logger.Warn("playback error", "src", d.source, "err", err)
		d.closePlayerLocked()
		d.playing = false
		d.emitLocked(Event{Type: EventError, Source: d.source, Err: err})
		return
	}

	if d.reader.Len() == 0 && !d.player.IsPlaying() {
		d.closePlayerLocked()
		d.playing = false
		d.offset = d.format.Duration(len(d.pcm))
		d.emitLocked(Event{Type: EventEnded, Source: d.source})
		return
	}

	d.throttle.Do(func() {
		d.emitLocked(Event{Type: EventTimeUpdate, Source: d.source})
	})
}

func (d *OtoDevice) emitLocked(ev Event) {
	if d.closed {
		return
	}
	select {
	case d.events <- ev:
	default:
		d.logger.Debug("event dropped", "type", ev.Type, "src", ev.Source)
	}
}

// Ensure OtoDevice implements Device interface
var _ Device = (*OtoDevice)(nil)
