package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// fetchClass labels why a request failed.
type fetchClass string

const (
	classTimeout     fetchClass = "timeout"
	classConnection  fetchClass = "connection"
	classRateLimited fetchClass = "rate_limited"
	classServer      fetchClass = "server"
	classClient      fetchClass = "client"
	classOther       fetchClass = "other"
)

// fetchFailure is a request error tagged with its class and HTTP status.
type fetchFailure struct {
	class  fetchClass
	status int
	err    error
}

func (f *fetchFailure) Error() string {
	if f.status != 0 {
		return fmt.Sprintf("%s (status %d): %v", f.class, f.status, f.err)
	}
	return fmt.Sprintf("%s: %v", f.class, f.err)
}

func (f *fetchFailure) Unwrap() error {
	return f.err
}

// transient reports whether another attempt may succeed. Client errors such
// as 403 and 404 never do.
func (f *fetchFailure) transient() bool {
	switch f.class {
	case classTimeout, classConnection, classRateLimited, classServer:
		return true
	default:
		return false
	}
}

// classifyError tags a colly request error with its class. It returns nil
// only when there is neither an error nor a status.
func classifyError(err error, statusCode int) *fetchFailure {
	if err == nil && statusCode == 0 {
		return nil
	}
	if err == nil {
		err = fmt.Errorf("http status %d", statusCode)
	}

	f := &fetchFailure{class: classOther, status: statusCode, err: err}
	var netErr net.Error
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		f.class = classTimeout
	case errors.As(err, &opErr):
		f.class = classConnection
	case statusCode == http.StatusTooManyRequests:
		f.class = classRateLimited
	case statusCode >= http.StatusInternalServerError:
		f.class = classServer
	case statusCode >= http.StatusBadRequest:
		f.class = classClient
	}
	return f
}
