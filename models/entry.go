// Package models defines data structures for the tyre scraper.
package models

import "time"

// ResultEntry is one front/back tyre pairing extracted from a listing row.
type ResultEntry struct {
	Manufacturer string  `csv:"manufacturer" json:"manufacturer"`
	Name         string  `csv:"name" json:"name"`
	FrontPrice   float64 `csv:"frontPrice" json:"frontPrice"`
	FrontLink    string  `csv:"frontLink" json:"frontLink"`
	BackPrice    float64 `csv:"backPrice" json:"backPrice"`
	BackLink     string  `csv:"backLink" json:"backLink"`
	SetPrice     float64 `csv:"setPrice" json:"setPrice"`
	ReportLink   string  `csv:"reportLink" json:"reportLink,omitempty"`
}

// UnknownManufacturer is used when a row carries no comparison report link.
const UnknownManufacturer = "?"

// CrawlRequest is the normalized starting point of one chain. RunID is
// computed once from the caller's URL and shared by every page.
type CrawlRequest struct {
	URL   string
	RunID string
}

// RunResult summarises a finished chain.
type RunResult struct {
	URL         string
	RunID       string
	Adapter     string
	Pages       int
	RecordCount int
	Files       []string
	// Truncated is set when the chain stopped at the page limit while a
	// next page was still available.
	Truncated   bool
	StartTime   time.Time
	EndTime     time.Time
	Err         error
}

// Succeeded reports whether the chain reached its terminal Done state.
func (r *RunResult) Succeeded() bool {
	return r != nil && r.Err == nil
}

// Duration is the wall time the chain took.
func (r *RunResult) Duration() time.Duration {
	if r == nil || r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}
