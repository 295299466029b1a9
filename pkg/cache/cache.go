// Package cache holds the per-process stores the engine consults before going
// to the network: analysed results keyed by package and normalized version, and
// the memo of advisories already judged to be false positives.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/sambabib/depcheck/pkg/metrics"
)

const (
	DefaultSize = 4096
	DefaultTTL  = time.Hour
)

// Options bounds a store. A zero Size or TTL picks the default.
type Options struct {
	Size int
	TTL  time.Duration
}

func (o Options) withDefaults() Options {
	if o.Size <= 0 {
		o.Size = DefaultSize
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	return o
}

// Key identifies one analysed (package, version) pair. Version is the
// normalized triple, so "^4.17.0" and "4.17.0" share an entry. Ecosystem keeps
// same-named packages from different registries apart; it may be empty.
type Key struct {
	Ecosystem string
	Package   string
	Version   string
}

func (k Key) String() string {
	if k.Ecosystem == "" {
		return k.Package + "@" + k.Version
	}
	return k.Ecosystem + ":" + k.Package + "@" + k.Version
}

// Results is a bounded, expiring store of analysis results. Safe for
// concurrent use.
type Results[V any] struct {
	lru     *expirable.LRU[Key, V]
	metrics *metrics.Metrics
}

// NewResults creates a result store; m may be nil.
func NewResults[V any](opts Options, m *metrics.Metrics) *Results[V] {
	opts = opts.withDefaults()
	return &Results[V]{
		lru:     expirable.NewLRU[Key, V](opts.Size, nil, opts.TTL),
		metrics: m,
	}
}

// Get returns the cached value for key and records a hit or miss.
func (r *Results[V]) Get(key Key) (V, bool) {
	v, ok := r.lru.Get(key)
	r.metrics.CacheLookup(ok)
	return v, ok
}

// Put stores v under key, replacing any earlier value.
func (r *Results[V]) Put(key Key, v V) {
	r.lru.Add(key, v)
}

func (r *Results[V]) Len() int {
	return r.lru.Len()
}

// Purge drops every entry.
func (r *Results[V]) Purge() {
	r.lru.Purge()
}

// MemoKey identifies one advisory judged not to apply to a package version.
type MemoKey struct {
	AdvisoryID string
	Package    string
	Version    string
}

// Memo is the set of false positives seen so far. Safe for concurrent use.
type Memo struct {
	lru *expirable.LRU[MemoKey, struct{}]
}

func NewMemo(opts Options) *Memo {
	opts = opts.withDefaults()
	return &Memo{lru: expirable.NewLRU[MemoKey, struct{}](opts.Size, nil, opts.TTL)}
}

func (m *Memo) Add(advisoryID, pkg, version string) {
	m.lru.Add(MemoKey{AdvisoryID: advisoryID, Package: pkg, Version: version}, struct{}{})
}

func (m *Memo) Contains(advisoryID, pkg, version string) bool {
	return m.lru.Contains(MemoKey{AdvisoryID: advisoryID, Package: pkg, Version: version})
}

func (m *Memo) Len() int {
	return m.lru.Len()
}
