// internal/marketplace/registry.go
package marketplace

import (
	"sort"
	"strings"
	"sync"

	"github.com/dealhawk/dealhawk-backend/internal/scraper"
)

// Info describes how a marketplace behaves for scheduling and fetching
// purposes, independently of any particular client instance.
type Info struct {
	// Volatile marketplaces (auction-style) reprice fast and get tighter
	// next-check windows plus extra staleness pressure in scoring.
	Volatile bool
	// APIIntegrated means an authoritative StoreClient exists and is
	// enabled; otherwise refresh falls back to scraping.
	APIIntegrated bool
	// ScrapingEnabled gates the HTML fallback for this marketplace.
	ScrapingEnabled bool
	// Selectors configure the scrape fallback when enabled.
	Selectors scraper.SelectorSet
}

// Registry maps marketplace names to clients and metadata. Registration
// happens at startup; lookups are concurrent-safe.
type Registry struct {
	mtx     sync.RWMutex
	clients map[string]StoreClient
	info    map[string]Info
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]StoreClient),
		info:    make(map[string]Info),
	}
}

func (r *Registry) Register(client StoreClient, info Info) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	name := normalizeName(client.Name())
	r.clients[name] = client
	r.info[name] = info
}

func (r *Registry) Client(marketplace string) (StoreClient, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	c, ok := r.clients[normalizeName(marketplace)]
	return c, ok
}

func (r *Registry) Info(marketplace string) Info {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.info[normalizeName(marketplace)]
}

// Names returns the registered marketplace names, sorted for stable
// iteration order.
func (r *Registry) Names() []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolver returns the client's variant-resolution capability if it has one.
func (r *Registry) Resolver(marketplace string) (VariantResolver, bool) {
	c, ok := r.Client(marketplace)
	if !ok {
		return nil, false
	}
	vr, ok := c.(VariantResolver)
	return vr, ok
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
