package content

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	json "github.com/goccy/go-json"

	"github.com/changdang/companion/internal/kv"
)

// countingStore wraps a MemoryStore and records every call. Keys listed in
// failGet or failSet return errStoreDown.
type countingStore struct {
	inner *kv.MemoryStore

	gets atomic.Int32
	sets atomic.Int32

	mu      sync.Mutex
	failGet map[string]bool
	failSet map[string]bool
}

var errStoreDown = errors.New("store unavailable")

func newCountingStore() *countingStore {
	return &countingStore{
		inner:   kv.NewMemoryStore(),
		failGet: make(map[string]bool),
		failSet: make(map[string]bool),
	}
}

func (c *countingStore) Get(key string) ([]byte, error) {
	c.gets.Add(1)
	c.mu.Lock()
	fail := c.failGet[key] || c.failGet["*"]
	c.mu.Unlock()
	if fail {
		return nil, errStoreDown
	}
	return c.inner.Get(key)
}

func (c *countingStore) Set(key string, value []byte) error {
	c.sets.Add(1)
	c.mu.Lock()
	fail := c.failSet[key] || c.failSet["*"]
	c.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return c.inner.Set(key, value)
}

func (c *countingStore) calls() int32 {
	return c.gets.Load() + c.sets.Load()
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func testDataset() *Dataset {
	return NewDataset(
		[]Site{
			{BaseContent: BaseContent{ID: "A", Tags: []string{"a", "b"}, UpdatedAt: "2024-01-01"}, Category: "landmark"},
		},
		[]Term{
			{BaseContent: BaseContent{ID: "T", Tags: []string{"b"}, UpdatedAt: "2024-06-01"}},
		},
	)
}

func newTestSynchronizer(t *testing.T, ds *Dataset, store kv.Store) *Synchronizer {
	t.Helper()
	return NewSynchronizer(ds, store, WithLogger(quietLogger()))
}

func TestSynchronizer_InitialState(t *testing.T) {
	s := newTestSynchronizer(t, testDataset(), newCountingStore())
	st := s.State()
	if st.Loaded {
		t.Error("new synchronizer reports loaded")
	}
	if st.LastUpdatedAt != "" {
		t.Errorf("LastUpdatedAt = %q, want empty", st.LastUpdatedAt)
	}
	if len(st.Sites) != 0 || len(st.Terms) != 0 {
		t.Errorf("expected empty collections, got %d sites, %d terms", len(st.Sites), len(st.Terms))
	}
}

func TestSynchronizer_FirstLaunchSeedsStore(t *testing.T) {
	store := newCountingStore()
	ds := testDataset()
	s := newTestSynchronizer(t, ds, store)

	result := s.Hydrate(false)
	if result.Source != SourceStatic {
		t.Errorf("Source = %v, want static", result.Source)
	}
	if !result.Persisted {
		t.Error("static data was not persisted")
	}

	st := s.State()
	if !st.Loaded {
		t.Fatal("state not loaded")
	}
	if st.LastUpdatedAt != "2024-06-01T00:00:00.000Z" {
		t.Errorf("LastUpdatedAt = %s", st.LastUpdatedAt)
	}

	raw, err := store.inner.Get("changdang-content-version")
	if err != nil {
		t.Fatalf("version not persisted: %v", err)
	}
	if string(raw) != ds.Version {
		t.Errorf("persisted version = %s, want %s", raw, ds.Version)
	}
	for _, key := range []string{"changdang-sites", "changdang-terms"} {
		if _, err := store.inner.Get(key); err != nil {
			t.Errorf("%s not persisted: %v", key, err)
		}
	}
}

func TestSynchronizer_HydrateIsIdempotent(t *testing.T) {
	store := newCountingStore()
	s := newTestSynchronizer(t, testDataset(), store)

	s.Hydrate(false)
	after := store.calls()
	first := s.State()

	for i := 0; i < 3; i++ {
		if result := s.Hydrate(false); result.Source != SourceNone {
			t.Errorf("repeat Hydrate source = %v, want unchanged", result.Source)
		}
	}
	if store.calls() != after {
		t.Errorf("repeat Hydrate touched the store: %d calls, want %d", store.calls(), after)
	}
	if got := s.State(); got.LastUpdatedAt != first.LastUpdatedAt || len(got.Sites) != len(first.Sites) {
		t.Error("repeat Hydrate changed state")
	}
}

func TestSynchronizer_ConcurrentHydrate(t *testing.T) {
	store := newCountingStore()
	s := newTestSynchronizer(t, testDataset(), store)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Hydrate(false)
		}()
	}
	wg.Wait()

	// One load attempt (version miss) plus three writes.
	if got := store.sets.Load(); got != 3 {
		t.Errorf("sets = %d, want 3", got)
	}
}

func TestSynchronizer_AdoptsMatchingCache(t *testing.T) {
	ds := testDataset()
	store := newCountingStore()

	cachedSites := []Site{{BaseContent: BaseContent{ID: "cached-site", UpdatedAt: "2020-01-01"}}}
	cachedTerms := []Term{}
	mustSetJSON(t, store, "changdang-sites", cachedSites)
	mustSetJSON(t, store, "changdang-terms", cachedTerms)
	if err := store.inner.Set("changdang-content-version", []byte(ds.Version)); err != nil {
		t.Fatal(err)
	}

	s := newTestSynchronizer(t, ds, store)
	result := s.Hydrate(false)
	if result.Source != SourceStorage {
		t.Fatalf("Source = %v, want storage", result.Source)
	}
	st := s.State()
	if len(st.Sites) != 1 || st.Sites[0].ID != "cached-site" {
		t.Errorf("sites = %+v, want cached set", st.Sites)
	}
	if len(st.Terms) != 0 {
		t.Errorf("terms = %+v, want cached empty set", st.Terms)
	}
	if st.LastUpdatedAt != ds.Version {
		t.Errorf("LastUpdatedAt = %s, want %s", st.LastUpdatedAt, ds.Version)
	}
}

func TestSynchronizer_IgnoresMismatchedCache(t *testing.T) {
	ds := testDataset()
	store := newCountingStore()
	mustSetJSON(t, store, "changdang-sites", []Site{{BaseContent: BaseContent{ID: "stale"}}})
	mustSetJSON(t, store, "changdang-terms", []Term{})
	if err := store.inner.Set("changdang-content-version", []byte("2000-01-01T00:00:00.000Z")); err != nil {
		t.Fatal(err)
	}

	s := newTestSynchronizer(t, ds, store)
	if result := s.Hydrate(false); result.Source != SourceStatic {
		t.Fatalf("Source = %v, want static", result.Source)
	}
	st := s.State()
	if len(st.Sites) != 1 || st.Sites[0].ID != "A" {
		t.Errorf("sites = %+v, want static set", st.Sites)
	}

	raw, _ := store.inner.Get("changdang-content-version")
	if string(raw) != ds.Version {
		t.Errorf("store version = %s, want overwritten with %s", raw, ds.Version)
	}
}

func TestSynchronizer_IncompleteCacheFallsBack(t *testing.T) {
	tests := []struct {
		name string
		seed func(t *testing.T, store *countingStore, version string)
	}{
		{
			name: "missing terms",
			seed: func(t *testing.T, store *countingStore, version string) {
				mustSetJSON(t, store, "changdang-sites", []Site{{BaseContent: BaseContent{ID: "cached"}}})
				_ = store.inner.Set("changdang-content-version", []byte(version))
			},
		},
		{
			name: "null sites",
			seed: func(t *testing.T, store *countingStore, version string) {
				_ = store.inner.Set("changdang-sites", []byte("null"))
				mustSetJSON(t, store, "changdang-terms", []Term{})
				_ = store.inner.Set("changdang-content-version", []byte(version))
			},
		},
		{
			name: "empty version",
			seed: func(t *testing.T, store *countingStore, _ string) {
				mustSetJSON(t, store, "changdang-sites", []Site{})
				mustSetJSON(t, store, "changdang-terms", []Term{})
				_ = store.inner.Set("changdang-content-version", []byte(""))
			},
		},
		{
			name: "malformed json",
			seed: func(t *testing.T, store *countingStore, version string) {
				_ = store.inner.Set("changdang-sites", []byte("{not json"))
				mustSetJSON(t, store, "changdang-terms", []Term{})
				_ = store.inner.Set("changdang-content-version", []byte(version))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := testDataset()
			store := newCountingStore()
			tt.seed(t, store, ds.Version)

			s := newTestSynchronizer(t, ds, store)
			if result := s.Hydrate(false); result.Source != SourceStatic {
				t.Fatalf("Source = %v, want static", result.Source)
			}
			st := s.State()
			if len(st.Sites) != 1 || st.Sites[0].ID != "A" {
				t.Errorf("sites = %+v, want static set", st.Sites)
			}
			if len(st.Terms) != 1 || st.Terms[0].ID != "T" {
				t.Errorf("terms = %+v, want static set", st.Terms)
			}
		})
	}
}

func TestSynchronizer_ForceUsesStatic(t *testing.T) {
	ds := testDataset()
	store := newCountingStore()
	mustSetJSON(t, store, "changdang-sites", []Site{{BaseContent: BaseContent{ID: "cached"}}})
	mustSetJSON(t, store, "changdang-terms", []Term{})
	_ = store.inner.Set("changdang-content-version", []byte(ds.Version))

	s := newTestSynchronizer(t, ds, store)
	s.Hydrate(false)
	if st := s.State(); st.Sites[0].ID != "cached" {
		t.Fatalf("expected cached state before force, got %+v", st.Sites)
	}

	getsBefore := store.gets.Load()
	result := s.Hydrate(true)
	if result.Source != SourceStatic || !result.Persisted {
		t.Errorf("result = %+v, want static and persisted", result)
	}
	if store.gets.Load() != getsBefore {
		t.Error("forced Hydrate read from the store")
	}

	st := s.State()
	if st.LastUpdatedAt != ds.Version {
		t.Errorf("LastUpdatedAt = %s, want %s", st.LastUpdatedAt, ds.Version)
	}
	if len(st.Sites) != 1 || st.Sites[0].ID != "A" {
		t.Errorf("sites = %+v, want static set", st.Sites)
	}

	var persisted []Site
	raw, _ := store.inner.Get("changdang-sites")
	if err := json.Unmarshal(raw, &persisted); err != nil {
		t.Fatal(err)
	}
	if len(persisted) != 1 || persisted[0].ID != "A" {
		t.Errorf("persisted sites = %+v, want static set", persisted)
	}
}

func TestSynchronizer_StoreFailuresAreSwallowed(t *testing.T) {
	tests := []struct {
		name          string
		failGet       []string
		failSet       []string
		wantPersisted bool
		wantSets      int32
	}{
		{"reads fail", []string{"*"}, nil, true, 3},
		{"everything fails", []string{"*"}, []string{"*"}, false, 1},
		{"sites write fails", nil, []string{"changdang-sites"}, false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newCountingStore()
			for _, k := range tt.failGet {
				store.failGet[k] = true
			}
			for _, k := range tt.failSet {
				store.failSet[k] = true
			}

			s := newTestSynchronizer(t, testDataset(), store)
			result := s.Hydrate(false)
			if result.Source != SourceStatic {
				t.Errorf("Source = %v, want static", result.Source)
			}
			if result.Persisted != tt.wantPersisted {
				t.Errorf("Persisted = %v, want %v", result.Persisted, tt.wantPersisted)
			}
			if got := store.sets.Load(); got != tt.wantSets {
				t.Errorf("sets = %d, want %d", got, tt.wantSets)
			}
			if st := s.State(); !st.Loaded || len(st.Sites) != 1 {
				t.Errorf("state not loaded from static: %+v", st)
			}
		})
	}
}

func TestSynchronizer_KeyPrefix(t *testing.T) {
	store := newCountingStore()
	s := NewSynchronizer(testDataset(), store, WithLogger(quietLogger()), WithKeyPrefix("museum"))

	if got := s.StorageKey(KeySites); got != "museum-sites" {
		t.Errorf("StorageKey = %s, want museum-sites", got)
	}
	s.Hydrate(false)
	if _, err := store.inner.Get("museum-content-version"); err != nil {
		t.Errorf("prefixed version key missing: %v", err)
	}
}

func TestSynchronizer_Subscribe(t *testing.T) {
	s := newTestSynchronizer(t, testDataset(), newCountingStore())

	var calls atomic.Int32
	var last State
	unsubscribe := s.Subscribe(func(st State) {
		calls.Add(1)
		last = st
	})

	s.Hydrate(false)
	if calls.Load() != 1 {
		t.Fatalf("listener called %d times, want 1", calls.Load())
	}
	if !last.Loaded {
		t.Error("listener saw unloaded state")
	}

	s.Hydrate(false)
	if calls.Load() != 1 {
		t.Errorf("no-op Hydrate notified listeners")
	}

	unsubscribe()
	s.Hydrate(true)
	if calls.Load() != 1 {
		t.Errorf("listener called after unsubscribe")
	}
}

func TestSynchronizer_StateIsACopy(t *testing.T) {
	s := newTestSynchronizer(t, testDataset(), newCountingStore())
	s.Hydrate(false)

	st := s.State()
	st.Sites[0] = Site{}
	if s.State().Sites[0].ID != "A" {
		t.Error("mutating a snapshot changed synchronizer state")
	}
}

func mustSetJSON(t *testing.T, store *countingStore, key string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.inner.Set(key, raw); err != nil {
		t.Fatal(err)
	}
}
