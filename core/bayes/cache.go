package bayes

import (
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoSize bounds the number of cached posteriors.
const DefaultMemoSize = 1024

// Memo wraps a network with an LRU cache of posteriors keyed by the exact
// (query, evidence) pair. The cache belongs to the wrapper, not the
// network, so rebuilding a network and wrapping it again always starts
// cold. Safe for concurrent use.
type Memo struct {
	net   *Network
	cache *lru.Cache[string, *Posterior]
}

// NewMemo wraps net with a cache holding up to size posteriors. A size
// of zero or less falls back to DefaultMemoSize.
func NewMemo(net *Network, size int) (*Memo, error) {
	if size <= 0 {
		size = DefaultMemoSize
	}
	cache, err := lru.New[string, *Posterior](size)
	if err != nil {
		return nil, err
	}
	return &Memo{net: net, cache: cache}, nil
}

// Network returns the wrapped network.
func (m *Memo) Network() *Network { return m.net }

// Infer returns the cached posterior for the (query, evidence) pair,
// computing and caching it on a miss. Errors are never cached.
func (m *Memo) Infer(query string, ev Evidence) (*Posterior, error) {
	key := memoKey(query, ev)
	if post, ok := m.cache.Get(key); ok {
		return post, nil
	}

	post, err := m.net.Infer(query, ev)
	if err != nil {
		return nil, err
	}
	m.cache.Add(key, post)
	return post, nil
}

// Len returns the number of cached posteriors.
func (m *Memo) Len() int { return m.cache.Len() }

// Purge drops every cached posterior.
func (m *Memo) Purge() { m.cache.Purge() }

func memoKey(query string, ev Evidence) string {
	names := make([]string, 0, len(ev))
	for name := range ev {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(query)
	for _, name := range names {
		b.WriteByte(0x1f)
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(ev[name])
	}
	return b.String()
}
