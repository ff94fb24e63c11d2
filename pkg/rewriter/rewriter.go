// Package rewriter rewrites resource references in HTML documents so that a
// browser requests them back through the proxy.
package rewriter

import (
	"log"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selector matches every element whose references are rewritten.
const Selector = `a[href], link[href], script[src], img[src], [style*="url("]`

var cssURL = regexp.MustCompile(`url\(\s*(['"]?)([^'")]*)(['"]?)\s*\)`)

// Rewrite rewrites the references of an HTML document fetched from
// upstreamOrigin so that they resolve beneath proxyPrefix. See MirrorRule for
// the individual rewriting rules.
func Rewrite(html string, upstreamOrigin string, proxyPrefix string) string {
	origin, err := url.Parse(upstreamOrigin)
	if err != nil {
		log.Printf("WARN: not rewriting, invalid origin %q: %v", upstreamOrigin, err)
		return html
	}

	return Document(html, MirrorRule(origin, proxyPrefix))
}

// Document applies rule to the href, src and inline style url() references of
// html and re-serializes the document. When an element carries both a
// non-empty href and src, the value derived from href is written to both. Malformed markup is
// handled by the HTML5 parser's error recovery; if the document cannot be
// parsed or rendered at all it is returned unchanged. Each edit runs on the
// parsed document after its references have been rewritten.
func Document(html string, rule Rule, edits ...func(*goquery.Document)) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.Printf("WARN: could not parse HTML for rewriting: %v", err)
		return html
	}

	Selection(doc.Selection, rule)
	for _, edit := range edits {
		edit(doc)
	}

	out, err := doc.Html()
	if err != nil {
		log.Printf("WARN: could not render HTML after rewriting: %v", err)
		return html
	}

	return out
}

// Selection applies rule to every matching element beneath s.
func Selection(s *goquery.Selection, rule Rule) {
	s.Find(Selector).Each(func(_ int, el *goquery.Selection) {
		rewriteElement(el, rule)
	})
}

func rewriteElement(el *goquery.Selection, rule Rule) {
	if style, ok := el.Attr("style"); ok && strings.Contains(style, "url(") {
		el.SetAttr("style", rewriteStyle(style, rule))
	}

	href, hasHref := el.Attr("href")
	src, hasSrc := el.Attr("src")

	var ref string
	switch {
	case hasHref && href != "":
		ref = rule(href)
	case hasSrc && src != "":
		ref = rule(src)
	default:
		return
	}

	if hasHref && href != "" {
		el.SetAttr("href", ref)
	}
	if hasSrc && src != "" {
		el.SetAttr("src", ref)
	}
}

// rewriteStyle applies rule to each url(...) in an inline style declaration,
// keeping the original quoting.
func rewriteStyle(style string, rule Rule) string {
	return cssURL.ReplaceAllStringFunc(style, func(m string) string {
		parts := cssURL.FindStringSubmatch(m)
		open, ref, closing := parts[1], strings.TrimSpace(parts[2]), parts[3]
		if ref == "" || open != closing {
			return m
		}
		return "url(" + open + rule(ref) + closing + ")"
	})
}
