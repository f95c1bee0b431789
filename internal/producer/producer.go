// Package producer discovers listing URLs by walking the paginated index.
package producer

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"autoria-harvester/internal/harvest"
	"autoria-harvester/internal/queue"
)

var totalPagesRe = regexp.MustCompile(`з\s+(\d+)`)

// Config controls discovery behavior.
type Config struct {
	StartURL  string
	Workers   int
	PageDelay time.Duration
}

// Producer paginates the listing index, extracts detail-page URLs,
// deduplicates them within the run, and feeds the queue. It finishes by
// enqueueing one sentinel per worker regardless of how discovery went.
type Producer struct {
	fetcher harvest.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Producer.
func New(fetcher harvest.Fetcher, cfg Config, logger *zap.Logger) *Producer {
	if cfg.PageDelay <= 0 {
		cfg.PageDelay = time.Second
	}
	return &Producer{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
	}
}

// Discover walks the index pages and pushes every new listing URL onto the
// queue. A full queue blocks the push, which is the intended backpressure.
func (p *Producer) Discover(ctx context.Context, q harvest.Queue) {
	defer p.enqueueSentinels(ctx, q)

	body, ok := p.fetcher.Fetch(ctx, p.cfg.StartURL)
	if !ok {
		p.logger.Error("cannot fetch start page, run degrades to zero work",
			zap.String("url", p.cfg.StartURL))
		return
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		p.logger.Error("unparseable start page", zap.Error(err))
		return
	}

	totalPages := totalPages(doc)
	p.logger.Info("pages to scrape", zap.Int("total", totalPages))

	seen := map[string]struct{}{}
	for page := 0; page < totalPages; page++ {
		if ctx.Err() != nil {
			return
		}
		pageURL := withPage(p.cfg.StartURL, page)
		pageBody, ok := p.fetcher.Fetch(ctx, pageURL)
		if !ok {
			p.logger.Warn("skipping unfetchable index page",
				zap.Int("page", page),
				zap.String("url", pageURL),
			)
			continue
		}
		if err := p.enqueueListings(ctx, q, pageBody, seen); err != nil {
			return
		}
		if !sleepCtx(ctx, p.cfg.PageDelay) {
			return
		}
	}
	p.logger.Info("producer done", zap.Int("discovered", len(seen)))
}

// enqueueListings scans one index page for detail links and queues the ones
// not yet seen this run.
func (p *Producer) enqueueListings(ctx context.Context, q harvest.Queue, body []byte, seen map[string]struct{}) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		p.logger.Warn("unparseable index page", zap.Error(err))
		return nil
	}

	base, err := url.Parse(p.cfg.StartURL)
	if err != nil {
		return nil
	}

	var enqueueErr error
	doc.Find("section.ticket-item a.m-link-ticket").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return true
		}
		listing := normalizeListingURL(base, href)
		if listing == "" {
			return true
		}
		if _, dup := seen[listing]; dup {
			return true
		}
		seen[listing] = struct{}{}
		if err := q.Enqueue(ctx, listing); err != nil {
			enqueueErr = err
			return false
		}
		return true
	})
	return enqueueErr
}

func (p *Producer) enqueueSentinels(ctx context.Context, q harvest.Queue) {
	for i := 0; i < p.cfg.Workers; i++ {
		if err := q.Enqueue(ctx, queue.Sentinel); err != nil {
			p.logger.Warn("sentinel enqueue failed", zap.Error(err))
			return
		}
	}
}

// totalPages reads the pagination indicator: an explicit "з N" label wins,
// else the maximum numeric page link, else a single page.
func totalPages(doc *goquery.Document) int {
	total := 1
	if m := totalPagesRe.FindStringSubmatch(doc.Find("span.page-item").Text()); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			total = n
		}
	}
	maxLink := 0
	doc.Find("a.page-link").Each(func(_ int, a *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(a.Text())); err == nil && n > maxLink {
			maxLink = n
		}
	})
	if maxLink > 0 {
		total = maxLink
	}
	return total
}

// withPage substitutes the page query parameter in the start URL.
func withPage(startURL string, page int) string {
	u, err := url.Parse(startURL)
	if err != nil {
		return startURL
	}
	qs := u.Query()
	qs.Set("page", strconv.Itoa(page))
	u.RawQuery = qs.Encode()
	return u.String()
}

// normalizeListingURL absolutizes a detail link against the index host and
// strips query and fragment, yielding the canonical identity key.
func normalizeListingURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	abs.RawQuery = ""
	abs.Fragment = ""
	if abs.Host == "" || abs.Scheme == "" {
		return ""
	}
	return abs.String()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
