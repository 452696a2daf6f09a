package content

import (
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	json "github.com/goccy/go-json"

	"github.com/changdang/companion/internal/kv"
)

// Storage keys, relative to the key prefix.
const (
	KeyVersion = "content-version"
	KeySites   = "sites"
	KeyTerms   = "terms"

	// DefaultKeyPrefix namespaces the keys inside a shared store.
	DefaultKeyPrefix = "changdang"
)

// Source says where the in-memory state came from after a hydration.
type Source int

const (
	// SourceNone means the call was a no-op because state was already loaded.
	SourceNone Source = iota
	// SourceStorage means the persisted cache was adopted.
	SourceStorage
	// SourceStatic means state was reset to the static dataset.
	SourceStatic
)

// String returns the string representation of the source
func (s Source) String() string {
	switch s {
	case SourceNone:
		return "unchanged"
	case SourceStorage:
		return "storage"
	case SourceStatic:
		return "static"
	default:
		return "unknown"
	}
}

// HydrationResult reports what a Hydrate call did. It is informational
// only; hydration itself never fails.
type HydrationResult struct {
	Source    Source
	Persisted bool // static data was written back to the store without error
}

// Synchronizer owns the content state and reconciles it with the
// persistent store and the static dataset. It is safe for concurrent use.
type Synchronizer struct {
	static    *Dataset
	store     *kv.PrefixedStore
	keyPrefix string
	logger    *log.Logger

	mu    sync.RWMutex
	state State

	listenerMu sync.Mutex
	listeners  map[int]func(State)
	nextID     int
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger used for swallowed storage failures.
func WithLogger(logger *log.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Synchronizer) {
		s.keyPrefix = prefix
	}
}

// NewSynchronizer creates an unloaded synchronizer over the static dataset
// and the persistent store.
func NewSynchronizer(static *Dataset, store kv.Store, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		static:    static,
		keyPrefix: DefaultKeyPrefix,
		logger:    log.Default().WithPrefix("content"),
		listeners: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.store = kv.Prefixed(store, s.keyPrefix)
	return s
}

// StorageKey returns the full store key for one of the Key* constants.
func (s *Synchronizer) StorageKey(key string) string {
	return s.store.Key(key)
}

// StaticVersion returns the version stamp of the static dataset.
func (s *Synchronizer) StaticVersion() string {
	return s.static.Version
}

// State returns a copy of the current state.
func (s *Synchronizer) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Hydrate makes sure the state is loaded. Without force, an already loaded
// state is left alone and a persisted cache matching the static version is
// preferred. With force, the static dataset always wins and is written back.
// Storage failures are logged and never returned.
func (s *Synchronizer) Hydrate(force bool) HydrationResult {
	s.mu.Lock()

	if s.state.Loaded && !force {
		s.mu.Unlock()
		return HydrationResult{Source: SourceNone}
	}

	result := HydrationResult{}
	if !force {
		if cached, err := s.loadFromStorage(); err != nil {
			s.logLoadFailure(err)
		} else {
			s.state = cached
			result.Source = SourceStorage
		}
	}

	if !s.state.Loaded || force {
		s.state = State{
			Sites:         append([]Site(nil), s.static.Sites...),
			Terms:         append([]Term(nil), s.static.Terms...),
			Loaded:        true,
			LastUpdatedAt: s.static.Version,
		}
		result.Source = SourceStatic
		if err := s.cacheToStorage(s.state); err != nil {
			s.logger.Warn("cacheToStorage error", "op", err.Op, "key", err.Key, "err", err.Err)
		} else {
			result.Persisted = true
		}
	}

	snapshot := s.state.clone()
	s.mu.Unlock()

	s.notify(snapshot)
	return result
}

// loadFromStorage reads the three persisted values. The cache is only
// accepted when its version equals the static version and both
// collections are present.
func (s *Synchronizer) loadFromStorage() (State, error) {
	rawVersion, err := s.store.Get(KeyVersion)
	if err != nil {
		return State{}, &StorageFailure{Op: "load", Key: KeyVersion, Err: err}
	}
	version := string(rawVersion)
	if version == "" {
		return State{}, &StorageFailure{Op: "load", Key: KeyVersion, Err: ErrIncompleteCache}
	}
	if version != s.static.Version {
		return State{}, &StorageFailure{Op: "load", Key: KeyVersion, Err: ErrVersionMismatch}
	}

	var sites *[]Site
	if err := s.readJSON(KeySites, &sites); err != nil {
		return State{}, err
	}
	var terms *[]Term
	if err := s.readJSON(KeyTerms, &terms); err != nil {
		return State{}, err
	}
	if sites == nil {
		return State{}, &StorageFailure{Op: "load", Key: KeySites, Err: ErrIncompleteCache}
	}
	if terms == nil {
		return State{}, &StorageFailure{Op: "load", Key: KeyTerms, Err: ErrIncompleteCache}
	}

	return State{
		Sites:         *sites,
		Terms:         *terms,
		Loaded:        true,
		LastUpdatedAt: version,
	}, nil
}

func (s *Synchronizer) readJSON(key string, v any) error {
	raw, err := s.store.Get(key)
	if err != nil {
		return &StorageFailure{Op: "load", Key: key, Err: err}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &StorageFailure{Op: "load", Key: key, Err: err}
	}
	return nil
}

// cacheToStorage writes version, sites and terms, stopping at the first
// failure. The writes are not atomic; loadFromStorage rejects a partial set.
func (s *Synchronizer) cacheToStorage(state State) *StorageFailure {
	if err := s.store.Set(KeyVersion, []byte(s.static.Version)); err != nil {
		return &StorageFailure{Op: "cache", Key: KeyVersion, Err: err}
	}

	sites, err := json.Marshal(state.Sites)
	if err != nil {
		return &StorageFailure{Op: "cache", Key: KeySites, Err: err}
	}
	if err := s.store.Set(KeySites, sites); err != nil {
		return &StorageFailure{Op: "cache", Key: KeySites, Err: err}
	}

	terms, err := json.Marshal(state.Terms)
	if err != nil {
		return &StorageFailure{Op: "cache", Key: KeyTerms, Err: err}
	}
	if err := s.store.Set(KeyTerms, terms); err != nil {
		return &StorageFailure{Op: "cache", Key: KeyTerms, Err: err}
	}
	return nil
}

func (s *Synchronizer) logLoadFailure(err error) {
	var failure *StorageFailure
	if !errors.As(err, &failure) {
		s.logger.Warn("loadFromStorage error", "err", err)
		return
	}
	switch {
	case errors.Is(err, kv.ErrNotFound),
		errors.Is(err, ErrVersionMismatch),
		errors.Is(err, ErrIncompleteCache):
		// Expected on first launch and after an app update.
		s.logger.Debug("persisted cache not usable", "key", failure.Key, "reason", failure.Err)
	default:
		s.logger.Warn("loadFromStorage error", "key", failure.Key, "err", failure.Err)
	}
}

// Subscribe registers fn to be called with a snapshot after every
// hydration that changes state. The returned func unregisters it.
func (s *Synchronizer) Subscribe(fn func(State)) (unsubscribe func()) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.listenerMu.Lock()
		defer s.listenerMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Synchronizer) notify(state State) {
	s.listenerMu.Lock()
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenerMu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}
