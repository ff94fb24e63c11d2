// Package gateway resolves proxied request paths to upstream URLs, fetching
// and caching upstream content and rewriting the references of HTML documents
// so that they point back at the proxy.
package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andesco/mirror/pkg/cache"
	"github.com/andesco/mirror/pkg/rewriter"
	"github.com/andesco/mirror/pkg/ruleset"
	"github.com/dustin/go-humanize"
)

const (
	DefaultProxyPrefix = "/proxy"
	DefaultTTL         = 30 * 24 * time.Hour
	DefaultUserAgent   = "Mozilla/5.0"
)

// Options configures a Gateway.
type Options struct {
	// UpstreamOrigin is the site being mirrored, e.g. "https://example.test".
	// When empty the gateway runs in open mode: every request names its own
	// absolute upstream URL, and only root-relative references are rewritten.
	UpstreamOrigin string

	// ProxyPrefix is the path the gateway is mounted at. In mirror mode
	// references are rewritten beneath it; in open mode rewritten references
	// point at ProxyPrefix?url=<upstream-url>.
	ProxyPrefix string

	CacheEnabled bool
	TTL          time.Duration

	// UserAgent is sent upstream unless a rule overrides it. Defaults to
	// DefaultUserAgent; "none" sends no User-Agent of our own.
	UserAgent string

	// Timeout bounds each upstream fetch. Zero means no timeout.
	Timeout time.Duration

	Rules ruleset.RuleSet

	// LogURLs logs every upstream fetch.
	LogURLs bool

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Response is a resolved resource.
type Response struct {
	Body        []byte
	ContentType string
	Status      int

	// Cached is true when the response was served from the store.
	Cached bool
}

// Gateway resolves requests against a single upstream configuration.
type Gateway struct {
	opts   Options
	origin *url.URL
	store  cache.Store
	client *http.Client
}

// New returns a Gateway. A nil store is replaced with an in-memory store when
// caching is enabled, and a nil client with one honouring opts.Timeout.
func New(opts Options, store cache.Store, client *http.Client) (*Gateway, error) {
	if opts.ProxyPrefix == "" {
		opts.ProxyPrefix = DefaultProxyPrefix
	}
	opts.ProxyPrefix = "/" + strings.Trim(opts.ProxyPrefix, "/")

	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	g := &Gateway{opts: opts, store: store, client: client}

	if opts.UpstreamOrigin != "" {
		g.opts.UpstreamOrigin = strings.TrimSuffix(opts.UpstreamOrigin, "/")
		origin, err := absoluteURL(g.opts.UpstreamOrigin)
		if err != nil {
			return nil, fmt.Errorf("error parsing upstream origin: %w", err)
		}
		g.origin = origin
	}

	if g.store == nil && opts.CacheEnabled {
		g.store = cache.NewMemory()
	}
	if g.client == nil {
		g.client = &http.Client{Timeout: opts.Timeout}
	}

	return g, nil
}

// Options returns the gateway's effective configuration.
func (g *Gateway) Options() Options {
	return g.opts
}

// Resolve returns the resource named by ref. In mirror mode ref is a request
// path (with optional query) beneath the proxy prefix; in open mode it is an
// absolute upstream URL.
//
// Fresh cached entries are returned without contacting the upstream. Otherwise
// the upstream is fetched and, if the fetch succeeds, the result is stored,
// replacing any earlier entry. Failed fetches are never stored.
func (g *Gateway) Resolve(ctx context.Context, ref string) (*Response, error) {
	target, root, err := g.Target(ref)
	if err != nil {
		return nil, err
	}

	if g.cached() {
		if e, ok := g.store.Get(ctx, target); ok && e.Fresh(g.opts.Clock(), g.opts.TTL) {
			return &Response{
				Body:        e.Payload,
				ContentType: e.ContentType,
				Status:      http.StatusOK,
				Cached:      true,
			}, nil
		}
	}

	resp, err := g.fetch(ctx, target, root)
	if err != nil {
		return nil, err
	}

	if g.cached() {
		entry := &cache.Entry{
			Payload:     resp.Body,
			ContentType: resp.ContentType,
			StoredAt:    g.opts.Clock(),
		}
		if err := g.store.Put(ctx, target, entry); err != nil {
			log.Printf("WARN: could not cache %s: %v", target, err)
		}
	}

	return resp, nil
}

// Purge removes every cached entry.
func (g *Gateway) Purge(ctx context.Context) error {
	if g.store == nil {
		return nil
	}
	return g.store.Clear(ctx)
}

// Target maps ref to the absolute upstream URL it names. root reports whether
// the URL is a document root rather than a sub-resource.
//
//	/proxy          -> https://origin/
//	/proxy/a/b?c=d  -> https://origin/a/b?c=d
func (g *Gateway) Target(ref string) (target string, root bool, err error) {
	if g.origin == nil {
		if ref == "" {
			return "", false, ErrMissingParameter
		}
		u, err := absoluteURL(ref)
		if err != nil {
			return "", false, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
		}
		return u.String(), true, nil
	}

	prefix := g.opts.ProxyPrefix
	if !strings.HasPrefix(ref, prefix) {
		return "", false, ErrNotMirrored
	}

	sub := ref[len(prefix):]
	if sub != "" && sub[0] != '/' && sub[0] != '?' {
		return "", false, ErrNotMirrored
	}

	p, query := sub, ""
	if i := strings.IndexByte(sub, '?'); i >= 0 {
		p, query = sub[:i], sub[i:]
	}
	if p == "" {
		p = "/"
	}

	return g.opts.UpstreamOrigin + p + query, p == "/", nil
}

func (g *Gateway) cached() bool {
	return g.opts.CacheEnabled && g.store != nil
}

func (g *Gateway) fetch(ctx context.Context, target string, root bool) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &UpstreamError{URL: target, Err: err}
	}

	rule := g.opts.Rules.Match(req.URL.Hostname(), req.URL.Path)
	rule.Apply(req, g.opts.UserAgent, target)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &UpstreamError{URL: target, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{URL: target, Err: fmt.Errorf("error reading response body: %w", err)}
	}

	ct := contentType(resp.Header, req.URL, root)
	if isHTML(ct) {
		var text string
		text, ct = decodeHTML(body, ct)
		body = []byte(rewriter.Document(text, g.rule(req.URL), rule.Inject))
	}

	if g.opts.LogURLs {
		log.Printf("INFO: fetched %s (%s, %s)", target, ct, humanize.Bytes(uint64(len(body))))
	}

	return &Response{
		Body:        body,
		ContentType: ct,
		Status:      resp.StatusCode,
	}, nil
}

func (g *Gateway) rule(u *url.URL) rewriter.Rule {
	if g.origin == nil {
		return rewriter.RootRule(u, g.opts.ProxyPrefix)
	}
	return rewriter.MirrorRule(g.origin, g.opts.ProxyPrefix)
}

func absoluteURL(s string) (*url.URL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("not an absolute http(s) url: %q", s)
	}
	return u, nil
}
