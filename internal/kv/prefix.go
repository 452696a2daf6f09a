package kv

import "strings"

// PrefixedStore namespaces every key with a prefix so several features can
// share one underlying store without colliding.
type PrefixedStore struct {
	store  Store
	prefix string
}

// Prefixed wraps store so that key k is stored as "<prefix>-<k>". An empty
// prefix leaves keys untouched.
func Prefixed(store Store, prefix string) *PrefixedStore {
	return &PrefixedStore{store: store, prefix: prefix}
}

// Key returns the underlying key used for k.
func (p *PrefixedStore) Key(k string) string {
	if p.prefix == "" {
		return k
	}
	return p.prefix + "-" + k
}

// Get reads k from the wrapped store.
func (p *PrefixedStore) Get(k string) ([]byte, error) {
	return p.store.Get(p.Key(k))
}

// Set writes k to the wrapped store.
func (p *PrefixedStore) Set(k string, value []byte) error {
	return p.store.Set(p.Key(k), value)
}

// Delete removes k when the wrapped store supports deletion.
func (p *PrefixedStore) Delete(k string) error {
	if ext, ok := p.store.(ExtendedStore); ok {
		return ext.Delete(p.Key(k))
	}
	return nil
}

// Keys lists the keys inside this namespace, with the prefix stripped.
func (p *PrefixedStore) Keys() ([]string, error) {
	ext, ok := p.store.(ExtendedStore)
	if !ok {
		return nil, nil
	}
	all, err := ext.Keys()
	if err != nil {
		return nil, err
	}
	if p.prefix == "" {
		return all, nil
	}
	var keys []string
	for _, key := range all {
		if rest, ok := strings.CutPrefix(key, p.prefix+"-"); ok {
			keys = append(keys, rest)
		}
	}
	return keys, nil
}
