// Package site defines the capability every supported shop implements and
// the registry the crawl driver selects adapters from.
package site

import (
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-tyres/models"
)

// Adapter bundles the site-specific parts of a crawl. Implementations must be
// safe to share between concurrently running chains.
type Adapter interface {
	// Name identifies the adapter in logs and results.
	Name() string

	// Match reports whether the adapter handles u.
	Match(u *url.URL) bool

	// Normalize validates a search URL and returns the URL to fetch.
	Normalize(rawURL string) (string, error)

	// RunID derives the output file stem for a chain started at rawURL.
	RunID(rawURL string) (string, error)

	// ExtractRecords parses every listing row of a page. contextURL is only
	// used to label errors.
	ExtractRecords(doc *goquery.Document, contextURL string) ([]*models.ResultEntry, error)

	// NextPageURL returns the raw href of the next page link. An href
	// shorter than two characters means there are no further pages.
	NextPageURL(doc *goquery.Document, contextURL string) (string, error)
}

// HostMatcher returns a Match function that checks for a host substring.
func HostMatcher(fragment string) func(*url.URL) bool {
	fragment = strings.ToLower(fragment)
	return func(u *url.URL) bool {
		return u != nil && strings.Contains(strings.ToLower(u.Host), fragment)
	}
}

// Registry holds adapters in registration order.
type Registry struct {
	mu       sync.RWMutex
	adapters []Adapter
}

// NewRegistry builds a registry pre-populated with adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register appends an adapter. Earlier registrations win on overlap.
func (r *Registry) Register(a Adapter) {
	if a == nil {
		return
	}
	r.mu.Lock()
	r.adapters = append(r.adapters, a)
	r.mu.Unlock()
}

// Names lists the registered adapters.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		names = append(names, a.Name())
	}
	return names
}

// Select returns the first adapter that recognises rawURL.
func (r *Registry) Select(rawURL string) (Adapter, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, models.NewError(models.KindUnsupportedSite, rawURL, "unparsable url", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.adapters {
		if a.Match(parsed) {
			return a, nil
		}
	}
	return nil, models.Errorf(models.KindUnsupportedSite, rawURL, "no adapter for host %q", parsed.Host)
}
