package reifendirekt

import (
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"

	"github.com/aluiziolira/go-scrape-tyres/models"
)

const searchURL = "https://www.reifendirekt.de/search-moto?manufacturer=SUZUKI&capacity=1200&model=GSF%201200%20%2F%20S%20(2001%20-%202005)&type=WVA9"

func fixedClock() time.Time {
	return time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
}

type testRow struct {
	front, back         string
	frontHref, backHref string
	frontPrice          string
	backPrice           string
	bundle              string
	report              string
	noBundle            bool
}

func defaultRow() testRow {
	return testRow{
		front:      "Road 6",
		back:       "Road 6",
		frontHref:  "/Motorradreifen/Michelin/Road-6-front.html",
		backHref:   "/Motorradreifen/Michelin/Road-6-rear.html",
		frontPrice: "123,45 €",
		backPrice:  "150 €",
		bundle:     "260,90 €",
		report:     "/motorradreifen/testberichte/michelin/road-6.html",
	}
}

func buildPage(rows []testRow, pagination string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="results">`)
	b.WriteString(`<div class="tyre_row tyre_row_heading"><span>Vorderreifen</span><span>Hinterreifen</span></div>`)
	for _, r := range rows {
		b.WriteString(`<div class="tyre_row">`)
		fmt.Fprintf(&b, `<div class="moto-tyre-subtitle"><a href="%s"> %s </a></div>`, r.frontHref, r.front)
		fmt.Fprintf(&b, `<div class="moto-tyre-subtitle"><a href="%s">%s</a></div>`, r.backHref, r.back)
		fmt.Fprintf(&b, `<div class="moto-tyre-cart"> %s </div>`, r.frontPrice)
		fmt.Fprintf(&b, `<div class="moto-tyre-cart">%s</div>`, r.backPrice)
		if r.report != "" {
			fmt.Fprintf(&b, `<div class="moto-tyre-result moto-tyre-report"><a href="%s">Test</a></div>`, r.report)
		}
		if !r.noBundle {
			fmt.Fprintf(&b, `<div class="moto-price-bundle">%s</div>`, r.bundle)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div>`)
	b.WriteString(pagination)
	b.WriteString(`</body></html>`)
	return b.String()
}

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestNormalizeRequiresQueryParameters(t *testing.T) {
	a := New()
	base := map[string]string{
		"manufacturer": "SUZUKI",
		"capacity":     "1200",
		"model":        "GSF",
		"type":         "WVA9",
	}

	for _, missing := range requiredParams {
		t.Run(missing, func(t *testing.T) {
			var parts []string
			for _, key := range requiredParams {
				if key != missing {
					parts = append(parts, key+"="+base[key])
				}
			}
			_, err := a.Normalize("https://www.reifendirekt.de/search-moto?" + strings.Join(parts, "&"))
			if !models.IsKind(err, models.KindInvalidQuery) {
				t.Fatalf("expected invalid_query, got %v", err)
			}
		})
	}
}

func TestNormalizePageSize(t *testing.T) {
	tests := []struct {
		name    string
		adapter *Adapter
		raw     string
		want    string
	}{
		{name: "appended", adapter: New(), raw: searchURL, want: searchURL + "&itemsPerPage=50"},
		{name: "already present", adapter: New(), raw: searchURL + "&itemsPerPage=10", want: searchURL + "&itemsPerPage=10"},
		{name: "trailing ampersand", adapter: New(WithPageSize(20)), raw: searchURL + "&", want: searchURL + "&itemsPerPage=20"},
		{name: "fragment kept after query", adapter: New(), raw: searchURL + "#list", want: searchURL + "&itemsPerPage=50#list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.adapter.Normalize(tt.raw)
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Normalize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeFragmentDoesNotHideQuery(t *testing.T) {
	got, err := New().Normalize(searchURL + "#list")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	parsed, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse normalized url: %v", err)
	}
	if size := parsed.Query().Get("itemsPerPage"); size != "50" {
		t.Fatalf("itemsPerPage = %q, want 50 (url %s)", size, got)
	}
	if parsed.Fragment != "list" {
		t.Fatalf("fragment = %q, want list", parsed.Fragment)
	}
}

func TestRunID(t *testing.T) {
	a := New(WithClock(fixedClock))

	id, err := a.RunID(searchURL)
	if err != nil {
		t.Fatalf("run id: %v", err)
	}
	if id != "SUZUKI-GSF_1200_S_2001_2005-WVA9-2026-10-19" {
		t.Fatalf("RunID() = %q", id)
	}
	if again, _ := a.RunID(searchURL); again != id {
		t.Fatalf("RunID not deterministic: %q vs %q", again, id)
	}

	for _, variant := range []string{
		strings.Replace(searchURL, "SUZUKI", "HONDA", 1),
		strings.Replace(searchURL, "GSF%201200", "GSX%201300", 1),
		strings.Replace(searchURL, "WVA9", "WVB8", 1),
	} {
		other, err := a.RunID(variant)
		if err != nil {
			t.Fatalf("run id %q: %v", variant, err)
		}
		if other == id {
			t.Fatalf("variant %q shares id %q", variant, id)
		}
	}

	// capacity does not take part in the identifier
	if sameID, _ := a.RunID(strings.Replace(searchURL, "capacity=1200", "capacity=1250", 1)); sameID != id {
		t.Fatalf("capacity changed the id: %q", sameID)
	}
}

func TestExtractRecords(t *testing.T) {
	second := defaultRow()
	second.front = "Angel GT II"
	second.back = "Angel GT II A"
	second.frontHref = "/Motorradreifen/Pirelli/Angel-GT-II-front.html"
	second.backHref = "/Motorradreifen/Pirelli/Angel-GT-II-A-rear.html"
	second.frontPrice = "99,90 €"
	second.backPrice = "129,00 €"
	second.bundle = "215 €"
	second.report = ""

	doc := mustDoc(t, buildPage([]testRow{defaultRow(), second}, ""))
	entries, err := New().ExtractRecords(doc, searchURL)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	want := []*models.ResultEntry{
		{
			Manufacturer: "michelin",
			Name:         "Road 6",
			FrontPrice:   123.45,
			FrontLink:    "https://www.reifendirekt.de/Motorradreifen/Michelin/Road-6-front.html",
			BackPrice:    150,
			BackLink:     "https://www.reifendirekt.de/Motorradreifen/Michelin/Road-6-rear.html",
			SetPrice:     260.9,
			ReportLink:   "/motorradreifen/testberichte/michelin/road-6.html",
		},
		{
			Manufacturer: "?",
			Name:         "Angel GT II / Angel GT II A",
			FrontPrice:   99.9,
			FrontLink:    "https://www.reifendirekt.de/Motorradreifen/Pirelli/Angel-GT-II-front.html",
			BackPrice:    129,
			BackLink:     "https://www.reifendirekt.de/Motorradreifen/Pirelli/Angel-GT-II-A-rear.html",
			SetPrice:     215,
		},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractRecordsErrors(t *testing.T) {
	oneProduct := defaultRow()
	oneProduct.backHref = ""

	badPrice := defaultRow()
	badPrice.backPrice = "ausverkauft"

	noBundle := defaultRow()
	noBundle.noBundle = true

	tests := []struct {
		name string
		html string
		kind models.Kind
	}{
		{name: "heading only", html: buildPage(nil, ""), kind: models.KindNoRows},
		{name: "empty body", html: "<html><body></body></html>", kind: models.KindNoRows},
		{name: "empty product link", html: buildPage([]testRow{oneProduct}, ""), kind: models.KindMalformedRow},
		{name: "unparsable price", html: buildPage([]testRow{badPrice}, ""), kind: models.KindPriceParse},
		{name: "missing bundle price", html: buildPage([]testRow{noBundle}, ""), kind: models.KindMalformedRow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().ExtractRecords(mustDoc(t, tt.html), searchURL)
			if got := models.KindOf(err); got != tt.kind {
				t.Fatalf("kind = %s, want %s (err=%v)", got, tt.kind, err)
			}
			if !strings.Contains(err.Error(), searchURL) {
				t.Fatalf("error should name the page: %v", err)
			}
		})
	}
}

func TestExtractRecordsSingleProductLink(t *testing.T) {
	html := `<html><body><div class="tyre_row">
		<div class="moto-tyre-subtitle"><a href="/front.html">Road 6</a></div>
		<div class="moto-tyre-cart">100 €</div><div class="moto-tyre-cart">100 €</div>
		<div class="moto-price-bundle">190 €</div>
	</div></body></html>`

	_, err := New().ExtractRecords(mustDoc(t, html), searchURL)
	if !models.IsKind(err, models.KindMalformedRow) {
		t.Fatalf("expected malformed_row, got %v", err)
	}
}

func TestExtractRecordsBundleErrorMessage(t *testing.T) {
	row := defaultRow()
	row.noBundle = true

	_, err := New().ExtractRecords(mustDoc(t, buildPage([]testRow{row}, "")), searchURL)
	if err == nil || !strings.Contains(err.Error(), "bundle price not found") {
		t.Fatalf("expected bundle price diagnostic, got %v", err)
	}
}

func TestNextPageURL(t *testing.T) {
	tests := []struct {
		name       string
		pagination string
		want       string
		kind       models.Kind
	}{
		{
			name:       "next link",
			pagination: `<a class="pageLink" href="/search-moto?page=1">1</a><a class="pageLink" href="/search-moto?page=2"> › </a>`,
			want:       "/search-moto?page=2",
		},
		{
			name:       "last page",
			pagination: `<a class="pageLink" href="/search-moto?page=1">1</a><a class="pageLink" href="">›</a>`,
			want:       "",
		},
		{
			name:       "no pagination",
			pagination: "",
			kind:       models.KindNoPagination,
		},
		{
			name:       "no next glyph",
			pagination: `<a class="pageLink" href="/search-moto?page=1">1</a><a class="pageLink" href="/search-moto?page=0">‹</a>`,
			kind:       models.KindNoNextLink,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustDoc(t, buildPage([]testRow{defaultRow()}, tt.pagination))
			got, err := New().NextPageURL(doc, searchURL)
			if tt.kind != "" {
				if gotKind := models.KindOf(err); gotKind != tt.kind {
					t.Fatalf("kind = %s, want %s (err=%v)", gotKind, tt.kind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("next page: %v", err)
			}
			if got != tt.want {
				t.Fatalf("NextPageURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWithBaseURL(t *testing.T) {
	a := New(WithBaseURL("http://shop.test"))
	if got := a.absolute("/a/b.html"); got != "http://shop.test/a/b.html" {
		t.Fatalf("absolute = %q", got)
	}

	unchanged := New(WithBaseURL("not a url"))
	if got := unchanged.absolute("/x"); got != DefaultBaseURL+"/x" {
		t.Fatalf("invalid base url should be ignored, got %q", got)
	}
}
