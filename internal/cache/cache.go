// Package cache manages versioned generations of the app's static
// resources, serving them cache-first with a network fallback.
package cache

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

// Entry is a single cached resource.
type Entry struct {
	Body        []byte
	ContentType string
}

// Fetcher retrieves a resource from its origin.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Entry, error)
}

// Config represents the cache config structure.
type Config struct {
	Version      string        `koanf:"version"`
	Resources    []string      `koanf:"resources"`
	FetchTimeout time.Duration `koanf:"fetch_timeout"`
}

// Manager holds the cache generations. Exactly one generation is current
// at a time; Activate is the only writer of that slot.
type Manager struct {
	fetcher Fetcher
	log     *log.Logger

	mut     sync.RWMutex
	buckets map[string]map[string]Entry
	active  string
}

// New returns a new cache Manager.
func New(fetcher Fetcher, l *log.Logger) *Manager {
	return &Manager{
		fetcher: fetcher,
		log:     l,
		buckets: make(map[string]map[string]Entry),
	}
}

// Install opens the bucket named by version and populates it with every
// resource in urls. Population is all-or-nothing: a single failed fetch
// fails the install and leaves no partial bucket behind. A retry re-fetches
// everything.
func (m *Manager) Install(ctx context.Context, version string, urls []string) error {
	staged := make(map[string]Entry, len(urls))
	for _, u := range urls {
		e, err := m.fetcher.Fetch(ctx, u)
		if err != nil {
			return fmt.Errorf("error caching %s: %w", u, err)
		}
		staged[u] = e
	}

	m.mut.Lock()
	m.buckets[version] = staged
	m.mut.Unlock()

	m.log.Printf("installed cache %s (%d resources)", version, len(staged))
	return nil
}

// Activate makes version the current generation and deletes every other
// bucket. The cleanup is eager; there is no dual-serving window.
func (m *Manager) Activate(version string) {
	m.mut.Lock()
	for name := range m.buckets {
		if name != version {
			delete(m.buckets, name)
		}
	}
	m.active = version
	m.mut.Unlock()

	m.log.Printf("activated cache %s", version)
}

// Active returns the current generation's version tag.
func (m *Manager) Active() string {
	m.mut.RLock()
	defer m.mut.RUnlock()
	return m.active
}

// Versions returns the names of all existing buckets.
func (m *Manager) Versions() []string {
	m.mut.RLock()
	defer m.mut.RUnlock()
	out := make([]string, 0, len(m.buckets))
	for name := range m.buckets {
		out = append(out, name)
	}
	return out
}

// HandleFetch resolves a resource cache-first: a hit in the active bucket
// is returned without touching the network; a miss goes to the network and
// is not added to the cache, so resources outside the installed list are
// always fetched fresh.
func (m *Manager) HandleFetch(ctx context.Context, url string) (Entry, error) {
	m.mut.RLock()
	bucket := m.buckets[m.active]
	e, ok := bucket[url]
	m.mut.RUnlock()
	if ok {
		return e, nil
	}
	return m.fetcher.Fetch(ctx, url)
}

// HTTPFetcher fetches resources over HTTP.
type HTTPFetcher struct {
	Client *http.Client
}

// Fetch performs a GET for the given URL.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (Entry, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Entry{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return Entry{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Entry{}, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
