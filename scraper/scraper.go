// Package scraper drives crawl chains: fetch, parse, extract, accumulate and
// follow the next page link until a chain is done or fails.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-scrape-tyres/config"
	"github.com/aluiziolira/go-scrape-tyres/models"
	"github.com/aluiziolira/go-scrape-tyres/pipeline"
	"github.com/aluiziolira/go-scrape-tyres/site"
)

// stage names the chain states, used for debug logging.
type stage string

const (
	stageStart      stage = "start"
	stageFetching   stage = "fetching"
	stageParsing    stage = "parsing"
	stageExtracting stage = "extracting"
	stageResolved   stage = "resolved"
	stageDelaying   stage = "delaying"
	stageDone       stage = "done"
)

// Crawler runs chains. It holds only configuration and shared collectors;
// every Run builds its own collector, accumulator and visited set.
type Crawler struct {
	cfg       *config.Config
	registry  *site.Registry
	writer    pipeline.OutputWriter
	transport http.RoundTripper
	sleep     sleepFunc
	Metrics   *Metrics
}

// Option customises a Crawler.
type Option func(*Crawler)

// WithTransport routes every request through rt.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Crawler) {
		c.transport = rt
	}
}

// WithWriter replaces the writer derived from the output format.
func WithWriter(w pipeline.OutputWriter) Option {
	return func(c *Crawler) {
		c.writer = w
	}
}

// WithSleep replaces the function used for page delays and retry backoff.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Crawler) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// NewCrawler builds a crawler configured from cfg.
func NewCrawler(cfg *config.Config, registry *site.Registry, opts ...Option) (*Crawler, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if registry == nil {
		return nil, fmt.Errorf("site registry is required")
	}

	writer, err := pipeline.NewWriter(cfg.OutputFormat, cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("create writer: %w", err)
	}

	c := &Crawler{
		cfg:      cfg,
		registry: registry,
		writer:   writer,
		sleep:    sleepContext,
		Metrics:  NewMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run crawls one chain starting at rawURL. The returned result is never nil;
// its Err mirrors the returned error. Records are only written at Done, so a
// failing chain produces no output file.
func (c *Crawler) Run(ctx context.Context, rawURL string) (*models.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	result := &models.RunResult{URL: rawURL, StartTime: time.Now()}
	slog.Info("crawl started", slog.String("url", rawURL))

	err := c.run(ctx, rawURL, result)
	result.EndTime = time.Now()
	if err != nil {
		err = models.WithURL(err, rawURL)
		result.Err = err
		kind := models.KindOf(err)
		c.Metrics.IncError(string(kind))
		c.Metrics.IncChain("failed")
		slog.Error("crawl failed",
			slog.String("url", rawURL),
			slog.String("kind", string(kind)),
			slog.Any("error", err),
		)
		return result, err
	}

	c.Metrics.IncChain("done")
	slog.Info("crawl finished",
		slog.String("url", rawURL),
		slog.String("run_id", result.RunID),
		slog.Int("pages", result.Pages),
		slog.Int("records", result.RecordCount),
		slog.Bool("truncated", result.Truncated),
		slog.Any("files", result.Files),
		slog.Duration("duration", result.Duration()),
	)
	return result, nil
}

// RunAll crawls independent chains concurrently, at most cfg.Concurrency at
// a time. A failing chain never affects the others. Results keep input order.
func (c *Crawler) RunAll(ctx context.Context, urls []string) []*models.RunResult {
	results := make([]*models.RunResult, len(urls))

	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			results[i], _ = c.Run(ctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

type chain struct {
	adapter  site.Adapter
	request  models.CrawlRequest
	fetcher  *fetcher
	pipeline *pipeline.Pipeline
	visited  *lru.Cache[string, struct{}]
	pages    int
}

func (c *Crawler) start(rawURL string) (*chain, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, models.Errorf(models.KindEmptyURL, "", "no input url given")
	}

	adapter, err := c.registry.Select(rawURL)
	if err != nil {
		return nil, err
	}
	normalized, err := adapter.Normalize(rawURL)
	if err != nil {
		return nil, err
	}
	runID, err := adapter.RunID(rawURL)
	if err != nil {
		return nil, err
	}

	visited, err := lru.New[string, struct{}](c.cfg.MaxPages + 1)
	if err != nil {
		return nil, fmt.Errorf("create visited set: %w", err)
	}

	return &chain{
		adapter:  adapter,
		request:  models.CrawlRequest{URL: normalized, RunID: runID},
		fetcher:  newFetcher(c.cfg, c.transport, c.Metrics, c.sleep),
		pipeline: pipeline.NewPipeline(c.writer),
		visited:  visited,
	}, nil
}

func (c *Crawler) run(ctx context.Context, rawURL string, result *models.RunResult) error {
	ch, err := c.start(rawURL)
	if err != nil {
		return err
	}
	result.RunID = ch.request.RunID
	result.Adapter = ch.adapter.Name()
	debugStage(stageStart, ch.request.URL)

	next := ch.request.URL
	for {
		pageURL, err := ch.adapter.Normalize(next)
		if err != nil {
			return err
		}
		ch.visited.Add(pageURL, struct{}{})

		href, err := c.page(ctx, ch, pageURL)
		result.Pages = ch.pages
		result.RecordCount = ch.pipeline.Len()
		if err != nil {
			return err
		}

		if len(href) < 2 {
			break
		}
		if ch.pages >= c.cfg.MaxPages {
			slog.Warn("page limit reached, stopping chain",
				slog.String("url", pageURL),
				slog.Int("max_pages", c.cfg.MaxPages),
			)
			result.Truncated = true
			break
		}

		nextURL, err := resolveNext(pageURL, href)
		if err != nil {
			return err
		}
		if normalizedNext, nerr := ch.adapter.Normalize(nextURL); nerr == nil && ch.visited.Contains(normalizedNext) {
			return models.Errorf(models.KindPaginationLoop, pageURL, "next page %s was already visited", normalizedNext)
		}

		debugStage(stageDelaying, nextURL)
		c.Metrics.IncDelays()
		if err := c.sleep(ctx, c.cfg.PageDelay); err != nil {
			return models.NewError(models.KindFetch, nextURL, "interrupted", err)
		}
		next = nextURL
	}

	debugStage(stageDone, ch.request.URL)
	files, err := ch.pipeline.Flush(ch.request.RunID)
	if err != nil {
		return err
	}
	result.Files = files
	return nil
}

// page runs Fetching, Parsing, Extracting and Resolved for one URL and
// returns the raw next page href.
func (c *Crawler) page(ctx context.Context, ch *chain, pageURL string) (string, error) {
	debugStage(stageFetching, pageURL)
	body, err := ch.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return "", err
	}

	debugStage(stageParsing, pageURL)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", models.NewError(models.KindParse, pageURL, "parse markup", err)
	}

	debugStage(stageExtracting, pageURL)
	entries, err := ch.adapter.ExtractRecords(doc, pageURL)
	if err != nil {
		return "", err
	}
	if err := ch.pipeline.Process(entries...); err != nil {
		return "", models.NewError(models.KindMalformedRow, pageURL, "invalid record", err)
	}
	ch.pages++
	c.Metrics.AddPage(len(entries))

	debugStage(stageResolved, pageURL)
	href, err := ch.adapter.NextPageURL(doc, pageURL)
	if err != nil {
		return "", err
	}
	slog.Debug("page extracted",
		slog.String("url", pageURL),
		slog.Int("page", ch.pages),
		slog.Int("records", len(entries)),
		slog.String("next", href),
	)
	return href, nil
}

func resolveNext(pageURL, href string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", models.NewError(models.KindNoNextLink, pageURL, "unparsable page url", err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", models.NewError(models.KindNoNextLink, pageURL, "unparsable next link", err)
	}
	return base.ResolveReference(ref).String(), nil
}

func debugStage(s stage, u string) {
	slog.Debug("chain stage", slog.String("stage", string(s)), slog.String("url", u))
}
