// Package reifendirekt implements the site adapter for the motorcycle tyre
// search on reifendirekt.de.
package reifendirekt

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-tyres/models"
	"github.com/aluiziolira/go-scrape-tyres/parser"
	"github.com/aluiziolira/go-scrape-tyres/site"
)

const (
	// Name is the adapter name and the host fragment it matches.
	Name = "reifendirekt.de"

	// DefaultBaseURL is used to resolve product links.
	DefaultBaseURL = "https://www.reifendirekt.de"

	// DefaultPageSize is appended as itemsPerPage when the search URL has none.
	DefaultPageSize = 50

	nextGlyph = "›"

	rowSelector        = ".tyre_row"
	headingRowSelector = ".tyre_row_heading"
	productSelector    = ".moto-tyre-subtitle a"
	priceSelector      = ".moto-tyre-cart"
	reportSelector     = ".moto-tyre-result.moto-tyre-report a"
	bundleSelector     = ".moto-price-bundle"
	pageLinkSelector   = ".pageLink"
)

var (
	requiredParams = []string{"manufacturer", "capacity", "model", "type"}
	runIDParams    = []string{"manufacturer", "model", "type"}
)

var _ site.Adapter = (*Adapter)(nil)

// Adapter is stateless after construction.
type Adapter struct {
	base     *url.URL
	pageSize int
	now      func() time.Time
	match    func(*url.URL) bool
}

// Option customises an Adapter.
type Option func(*Adapter)

// WithBaseURL overrides the base product links are resolved against.
func WithBaseURL(base string) Option {
	return func(a *Adapter) {
		if parsed, err := url.Parse(base); err == nil && parsed.Host != "" {
			a.base = parsed
		}
	}
}

// WithPageSize overrides the itemsPerPage value added during normalization.
func WithPageSize(size int) Option {
	return func(a *Adapter) {
		if size > 0 {
			a.pageSize = size
		}
	}
}

// WithClock sets the clock used for the date part of run identifiers.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

// New builds the adapter.
func New(opts ...Option) *Adapter {
	base, _ := url.Parse(DefaultBaseURL)
	a := &Adapter{
		base:     base,
		pageSize: DefaultPageSize,
		now:      time.Now,
		match:    site.HostMatcher(Name),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string {
	return Name
}

func (a *Adapter) Match(u *url.URL) bool {
	return a.match(u)
}

// Normalize requires manufacturer, capacity, model and type and appends
// itemsPerPage to the query when absent. Existing parameters and any
// fragment are kept as they are.
func (a *Adapter) Normalize(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", models.NewError(models.KindInvalidQuery, rawURL, "unparsable url", err)
	}
	query := parsed.Query()
	for _, key := range requiredParams {
		if !query.Has(key) {
			return "", models.Errorf(models.KindInvalidQuery, rawURL, "no %s given", key)
		}
	}
	if query.Has("itemsPerPage") {
		return rawURL, nil
	}

	param := fmt.Sprintf("itemsPerPage=%d", a.pageSize)
	switch {
	case parsed.RawQuery == "":
		parsed.RawQuery = param
	case strings.HasSuffix(parsed.RawQuery, "&"):
		parsed.RawQuery += param
	default:
		parsed.RawQuery += "&" + param
	}
	return parsed.String(), nil
}

// RunID joins the normalized manufacturer, model and type with the UTC date.
func (a *Adapter) RunID(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", models.NewError(models.KindInvalidQuery, rawURL, "unparsable url", err)
	}
	query := parsed.Query()

	parts := make([]string, 0, len(runIDParams)+1)
	for _, key := range runIDParams {
		parts = append(parts, parser.NormalizeIDPart(query.Get(key)))
	}
	parts = append(parts, a.now().UTC().Format("2006-01-02"))
	return strings.Join(parts, "-"), nil
}

// ExtractRecords reads every non-heading tyre row. An empty page is an error
// so a markup change can never silently produce an empty result.
func (a *Adapter) ExtractRecords(doc *goquery.Document, contextURL string) ([]*models.ResultEntry, error) {
	rows := doc.Find(rowSelector).Not(headingRowSelector)
	if rows.Length() == 0 {
		return nil, models.Errorf(models.KindNoRows, contextURL, "no rows found")
	}

	entries := make([]*models.ResultEntry, 0, rows.Length())
	for i := range rows.Nodes {
		entry, err := a.extractRow(rows.Eq(i), contextURL)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (a *Adapter) extractRow(row *goquery.Selection, contextURL string) (*models.ResultEntry, error) {
	products := row.Find(productSelector)
	if products.Length() != 2 {
		return nil, models.Errorf(models.KindMalformedRow, contextURL, "did not find all products (found %d)", products.Length())
	}

	front, back := products.Eq(0), products.Eq(1)
	frontHref := strings.TrimSpace(front.AttrOr("href", ""))
	backHref := strings.TrimSpace(back.AttrOr("href", ""))
	if frontHref == "" || backHref == "" {
		return nil, models.Errorf(models.KindMalformedRow, contextURL, "not all product links are valid")
	}

	priceNodes := row.Find(priceSelector)
	if priceNodes.Length() != 2 {
		return nil, models.Errorf(models.KindMalformedRow, contextURL, "did not find both prices (found %d)", priceNodes.Length())
	}
	frontPrice, err := parser.ParsePriceEuro(priceNodes.Eq(0).Text())
	if err != nil {
		return nil, models.NewError(models.KindPriceParse, contextURL, "front price is not a number", err)
	}
	backPrice, err := parser.ParsePriceEuro(priceNodes.Eq(1).Text())
	if err != nil {
		return nil, models.NewError(models.KindPriceParse, contextURL, "back price is not a number", err)
	}

	bundle := row.Find(bundleSelector)
	if bundle.Length() == 0 {
		return nil, models.Errorf(models.KindMalformedRow, contextURL, "bundle price not found")
	}
	setPrice, err := parser.ParsePriceEuro(bundle.First().Text())
	if err != nil {
		return nil, models.NewError(models.KindPriceParse, contextURL, "bundle price is not a number", err)
	}

	reportLink := strings.TrimSpace(row.Find(reportSelector).First().AttrOr("href", ""))

	return &models.ResultEntry{
		Manufacturer: parser.ManufacturerFromReportLink(reportLink),
		Name:         parser.PairName(front.Text(), back.Text()),
		FrontPrice:   frontPrice,
		FrontLink:    a.absolute(frontHref),
		BackPrice:    backPrice,
		BackLink:     a.absolute(backHref),
		SetPrice:     setPrice,
		ReportLink:   reportLink,
	}, nil
}

// NextPageURL finds the "›" pagination link. A page without any pagination
// block is treated as a markup change, not as the last page.
func (a *Adapter) NextPageURL(doc *goquery.Document, contextURL string) (string, error) {
	links := doc.Find(pageLinkSelector)
	if links.Length() == 0 {
		return "", models.Errorf(models.KindNoPagination, contextURL, "no page links found")
	}

	next := links.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.TrimSpace(s.Text()) == nextGlyph
	})
	if next.Length() == 0 {
		return "", models.Errorf(models.KindNoNextLink, contextURL, "no next page link found")
	}
	return strings.TrimSpace(next.First().AttrOr("href", "")), nil
}

func (a *Adapter) absolute(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return a.base.String() + href
	}
	return a.base.ResolveReference(ref).String()
}
