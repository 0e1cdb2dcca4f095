// Package content fetches a business website and turns it into the raw
// page texts the extraction layer consumes. The site itself is treated as
// an opaque text source: no rendering, no JS execution.
package content

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/uvp-engine/internal/model"
	"github.com/sells-group/uvp-engine/internal/resilience"
)

// Config holds the fetcher tunables.
type Config struct {
	Timeout   time.Duration
	MaxPages  int
	MaxBody   int64
	UserAgent string
}

// Fetcher retrieves a site's landing page plus a handful of same-host
// pages likely to describe the business (about, services, products).
type Fetcher struct {
	client *http.Client
	cfg    Config
}

// NewFetcher creates a Fetcher with bounded connect and request timeouts.
func NewFetcher(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = 512 * 1024
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (compatible; UVPEngine/1.0)"
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		cfg: cfg,
	}
}

// relevantPaths are the same-host link keywords worth following beyond the
// landing page, in priority order.
var relevantPaths = []string{"about", "service", "product", "solution", "pricing", "team", "why"}

// Fetch retrieves the site's textual content. An unreachable or blocked
// site surfaces as model.ErrContentUnavailable so the pipeline fails the
// request cleanly instead of synthesizing from nothing.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*model.SiteContent, error) {
	base, err := normalizeURL(rawURL)
	if err != nil {
		return nil, eris.Wrapf(errors.Join(model.ErrContentUnavailable, err), "content: invalid url %q", rawURL)
	}

	doc, err := f.fetchDocument(ctx, base.String())
	if err != nil {
		return nil, eris.Wrap(errors.Join(model.ErrContentUnavailable, err), "content: fetch landing page")
	}

	site := &model.SiteContent{
		BusinessName: detectBusinessName(doc, base),
		IndustryHint: detectIndustryHint(doc),
	}
	if text := pageText(doc); text != "" {
		site.Pages = append(site.Pages, text)
	}

	for _, link := range candidateLinks(doc, base, f.cfg.MaxPages-1) {
		sub, err := f.fetchDocument(ctx, link)
		if err != nil {
			zap.L().Debug("content: skipping secondary page",
				zap.String("url", link),
				zap.Error(err),
			)
			continue
		}
		if text := pageText(sub); text != "" {
			site.Pages = append(site.Pages, text)
		}
	}

	if site.Empty() {
		return nil, eris.Wrapf(model.ErrContentUnavailable, "content: no usable text at %s", base)
	}
	zap.L().Info("content: fetched site",
		zap.String("url", base.String()),
		zap.Int("pages", len(site.Pages)),
		zap.String("business", site.BusinessName),
	)
	return site, nil
}

func (f *Fetcher) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "content: build request")
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "content: request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBody))
	if err != nil {
		return nil, eris.Wrap(err, "content: read body")
	}

	if blocked, kind := DetectBlock(resp, body); blocked {
		return nil, eris.Errorf("content: blocked (%s)", kind)
	}
	if resp.StatusCode >= 400 {
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(eris.Errorf("content: status %d", resp.StatusCode), resp.StatusCode)
		}
		return nil, eris.Errorf("content: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, eris.Wrap(err, "content: parse html")
	}
	return doc, nil
}

// pageText strips chrome (script, style, nav, footer) and returns the
// page's visible text with collapsed whitespace.
func pageText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, footer, header, iframe, svg").Remove()
	text := doc.Find("body").Text()
	text = strings.Join(strings.Fields(text), " ")
	if len(text) < 80 {
		return ""
	}
	return text
}

// detectBusinessName prefers og:site_name, then the title up to the first
// separator, then the host.
func detectBusinessName(doc *goquery.Document, base *url.URL) string {
	if name, ok := doc.Find(`meta[property="og:site_name"]`).Attr("content"); ok {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	for _, sep := range []string{" | ", " - ", " – ", " — "} {
		if i := strings.Index(title, sep); i > 0 {
			title = title[:i]
			break
		}
	}
	if title != "" {
		return title
	}
	return strings.TrimPrefix(base.Hostname(), "www.")
}

// detectIndustryHint pulls a hint from meta keywords or description.
func detectIndustryHint(doc *goquery.Document) string {
	if kw, ok := doc.Find(`meta[name="keywords"]`).Attr("content"); ok {
		if first, _, found := strings.Cut(kw, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		desc = strings.TrimSpace(desc)
		if len(desc) > 120 {
			desc = desc[:120]
		}
		return desc
	}
	return ""
}

// candidateLinks returns up to max same-host links whose paths suggest
// business-descriptive pages.
func candidateLinks(doc *goquery.Document, base *url.URL, max int) []string {
	if max <= 0 {
		return nil
	}
	seen := map[string]struct{}{base.String(): {}}
	var out []string

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		link, err := base.Parse(href)
		if err != nil || link.Hostname() != base.Hostname() {
			return true
		}
		link.Fragment = ""
		link.RawQuery = ""
		key := link.String()
		if _, dup := seen[key]; dup {
			return true
		}
		lower := strings.ToLower(link.Path)
		for _, kw := range relevantPaths {
			if strings.Contains(lower, kw) {
				seen[key] = struct{}{}
				out = append(out, key)
				break
			}
		}
		return len(out) < max
	})
	return out
}

func normalizeURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, eris.New("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Hostname() == "" {
		return nil, eris.Errorf("no host in %q", raw)
	}
	return u, nil
}
