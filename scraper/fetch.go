package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/Quintui/car-details-web-scraper/config"
)

// Fetcher performs synchronous page fetches through a colly collector.
// Callers never overlap fetches; the run is single-flight by design so the
// per-call capture fields are safe behind one mutex.
type Fetcher struct {
	collector *colly.Collector
	metrics   *Metrics

	mu        sync.Mutex
	body      []byte
	status    int
	fetchErr  error
	fetchedAt time.Time
}

// NewFetcher builds a fetcher configured from cfg.
func NewFetcher(cfg *config.Config, metrics *Metrics) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(cfg.UserAgent),
	)
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(cfg.Timeout)
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

	f := &Fetcher{
		collector: collector,
		metrics:   metrics,
	}

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Cache-Control", "no-cache")
		r.Headers.Set("Pragma", "no-cache")
	})
	collector.OnResponse(func(r *colly.Response) {
		f.body = append(f.body[:0], r.Body...)
		f.status = r.StatusCode
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			f.status = r.StatusCode
		}
		f.fetchErr = err
	})

	return f, nil
}

// Fetch retrieves one URL and returns its raw body. Non-2xx statuses and
// transport failures come back as *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.body = f.body[:0]
	f.status = 0
	f.fetchErr = nil
	f.fetchedAt = time.Now()

	visitErr := f.collector.Visit(pageURL)
	f.metrics.ObserveDuration(time.Since(f.fetchedAt))

	err := f.fetchErr
	if err == nil {
		err = visitErr
	}
	if err != nil {
		return nil, &FetchError{URL: pageURL, Status: nonOKStatus(f.status), Err: err}
	}
	if f.status >= http.StatusBadRequest {
		return nil, &FetchError{URL: pageURL, Status: f.status, Err: fmt.Errorf("http status %d", f.status)}
	}

	body := make([]byte, len(f.body))
	copy(body, f.body)
	return body, nil
}

// Document retrieves one URL and parses it.
func (f *Fetcher) Document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := f.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{URL: pageURL, Err: err}
	}
	return doc, nil
}

// WithTransport swaps the underlying round tripper; used by tests.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

func nonOKStatus(status int) int {
	if status >= http.StatusBadRequest {
		return status
	}
	return 0
}
