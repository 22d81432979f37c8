package scraper

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-tyres/config"
	"github.com/aluiziolira/go-scrape-tyres/models"
)

const (
	ctxStart  = "start"
	ctxBody   = "body"
	ctxStatus = "status"
)

type sleepFunc func(ctx context.Context, d time.Duration) error

// fetcher issues one synchronous GET at a time through a colly collector and
// retries transient failures with capped exponential backoff.
type fetcher struct {
	collector *colly.Collector
	cfg       *config.Config
	metrics   *Metrics
	sleep     sleepFunc
}

func newFetcher(cfg *config.Config, transport http.RoundTripper, metrics *Metrics, sleep sleepFunc) *fetcher {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	if transport != nil {
		collector.WithTransport(transport)
	} else {
		collector.WithTransport(&http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		})
	}

	collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(ctxStart, time.Now())
		metrics.IncRequest("started")
	})

	collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxStatus, r.StatusCode)
		r.Ctx.Put(ctxBody, r.Body)
		if start, ok := r.Ctx.GetAny(ctxStart).(time.Time); ok {
			metrics.ObserveDuration(time.Since(start))
		}
		metrics.IncRequest("succeeded")
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Ctx == nil {
			return
		}
		r.Ctx.Put(ctxStatus, r.StatusCode)
		metrics.IncRequest("failed")
	})

	return &fetcher{
		collector: collector,
		cfg:       cfg,
		metrics:   metrics,
		sleep:     sleep,
	}
}

// Fetch returns the response body of pageURL or a KindFetch error.
func (f *fetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, models.NewError(models.KindFetch, pageURL, "interrupted", err)
		}

		body, ferr := f.fetchOnce(pageURL)
		if ferr == nil {
			return body, nil
		}
		if !ferr.Retryable() || attempt >= f.cfg.MaxRetries {
			return nil, ferr
		}

		delay := f.backoff(attempt + 1)
		f.metrics.IncRetries()
		slog.Warn("retrying fetch",
			slog.String("url", pageURL),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", delay),
			slog.Any("error", ferr.Err),
		)
		if err := f.sleep(ctx, delay); err != nil {
			return nil, models.NewError(models.KindFetch, pageURL, "interrupted", err)
		}
	}
}

func (f *fetcher) fetchOnce(pageURL string) ([]byte, *models.CrawlError) {
	cctx := colly.NewContext()
	err := f.collector.Request(http.MethodGet, pageURL, nil, cctx, nil)
	status, _ := cctx.GetAny(ctxStatus).(int)
	if err != nil {
		classified := classifyError(err, status)
		ce := models.NewError(models.KindFetch, pageURL, "request failed", classified)
		ce.Transient = classified.transient()
		return nil, ce
	}

	body, _ := cctx.GetAny(ctxBody).([]byte)
	if len(bytes.TrimSpace(body)) == 0 {
		ce := models.Errorf(models.KindFetch, pageURL, "empty response body (status %d)", status)
		ce.Transient = true
		return nil, ce
	}
	return body, nil
}

func (f *fetcher) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := f.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := f.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
