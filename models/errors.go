package models

import (
	"errors"
	"fmt"
)

// Kind labels the stage or structural assumption a crawl error came from.
type Kind string

const (
	KindEmptyURL        Kind = "empty_url"
	KindUnsupportedSite Kind = "unsupported_site"
	KindInvalidQuery    Kind = "invalid_query"
	KindFetch           Kind = "fetch"
	KindParse           Kind = "parse"
	KindNoRows          Kind = "no_rows"
	KindMalformedRow    Kind = "malformed_row"
	KindPriceParse      Kind = "price_parse"
	KindNoPagination    Kind = "no_pagination"
	KindNoNextLink      Kind = "no_next_link"
	KindPersistence     Kind = "persistence"
	KindPaginationLoop  Kind = "pagination_loop"
	KindUnknown         Kind = "unknown"
)

// CrawlError is the single error type returned by every crawl stage.
type CrawlError struct {
	Kind    Kind
	URL     string
	Message string
	Err     error

	// Transient marks fetch failures that are worth another attempt.
	Transient bool
}

// Error renders a one-line diagnostic prefixed with the offending URL.
func (e *CrawlError) Error() string {
	prefix := ""
	if e.URL != "" {
		prefix = "[" + e.URL + "] "
	}
	if e.Err != nil {
		return fmt.Sprintf("%s%s: %s: %v", prefix, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s%s: %s", prefix, e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *CrawlError) Unwrap() error {
	return e.Err
}

// Retryable is true only for transient fetch failures.
func (e *CrawlError) Retryable() bool {
	return e.Kind == KindFetch && e.Transient
}

// NewError creates a CrawlError of the given kind.
func NewError(kind Kind, url, message string, err error) *CrawlError {
	return &CrawlError{
		Kind:    kind,
		URL:     url,
		Message: message,
		Err:     err,
	}
}

// Errorf creates a CrawlError with a formatted message and no cause.
func Errorf(kind Kind, url, format string, args ...any) *CrawlError {
	return NewError(kind, url, fmt.Sprintf(format, args...), nil)
}

// KindOf extracts the Kind from err, or KindUnknown.
func KindOf(err error) Kind {
	var ce *CrawlError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is a CrawlError of kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// WithURL fills in the URL of a CrawlError that was raised without one.
// Other errors are wrapped as KindUnknown.
func WithURL(err error, url string) error {
	if err == nil {
		return nil
	}
	var ce *CrawlError
	if errors.As(err, &ce) {
		if ce.URL == "" {
			ce.URL = url
		}
		return err
	}
	return NewError(KindUnknown, url, "unexpected failure", err)
}
