package rewriter

import (
	"net/url"
	"strings"
)

// Rule maps a single reference value found in a document to the value that
// should replace it. Returning the input unchanged leaves the reference alone.
type Rule func(ref string) string

// MirrorRule rewrites references of a document fetched from origin so that they
// resolve beneath prefix:
//
//	https://origin/a/b?c#d  -> prefix/a/b?c#d
//	/a/b                    -> prefix/a/b
//	a/b                     -> prefix/a/b
//
// Path-relative references are prefixed as written; "../" segments are not
// resolved against the referring document. Absolute references to any other
// host, references with a non-http scheme, and fragment-only references are
// left untouched. References already beneath prefix are returned unchanged, so
// rewriting an already rewritten document is a no-op.
func MirrorRule(origin *url.URL, prefix string) Rule {
	prefix = strings.TrimSuffix(prefix, "/")

	return func(ref string) string {
		switch {
		case ref == "" || strings.HasPrefix(ref, "#"):
			return ref
		case underPrefix(ref, prefix):
			return ref
		case strings.HasPrefix(ref, "//"):
			if tail, ok := sameOrigin(ref, origin); ok {
				return prefix + tail
			}
			return ref
		case strings.HasPrefix(ref, "/"):
			return prefix + ref
		}

		scheme, ok := schemeOf(ref)
		if !ok {
			return prefix + "/" + ref
		}

		if scheme == "http" || scheme == "https" {
			if tail, ok := sameOrigin(ref, origin); ok {
				return prefix + tail
			}
		}

		return ref
	}
}

// RootRule rewrites only root-relative references, pointing each one at
// endpoint with the absolute upstream URL carried in the "url" query
// parameter. It is used when the upstream is chosen per request.
func RootRule(origin *url.URL, endpoint string) Rule {
	base := origin.Scheme + "://" + origin.Host

	return func(ref string) string {
		if !strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, "//") {
			return ref
		}
		return endpoint + "?url=" + url.QueryEscape(base+ref)
	}
}

func underPrefix(ref, prefix string) bool {
	if prefix == "" || !strings.HasPrefix(ref, prefix) {
		return false
	}

	rest := ref[len(prefix):]
	return rest == "" || rest[0] == '/' || rest[0] == '?' || rest[0] == '#'
}

// sameOrigin reports whether ref is an absolute or scheme-relative reference to
// origin's host, and returns everything after the authority. The tail is cut
// from ref itself so that escaping in the path, query and fragment survives.
func sameOrigin(ref string, origin *url.URL) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" || !strings.EqualFold(u.Host, origin.Host) {
		return "", false
	}

	i := strings.Index(ref, "//") + 2
	rest := ref[i:]
	end := strings.IndexAny(rest, "/?#")
	if end < 0 {
		return "", true
	}

	return rest[end:], true
}

// schemeOf returns the scheme of ref, if ref starts with one.
func schemeOf(ref string) (string, bool) {
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		switch {
		case 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z':
		case '0' <= c && c <= '9' || c == '+' || c == '-' || c == '.':
			if i == 0 {
				return "", false
			}
		case c == ':':
			if i == 0 {
				return "", false
			}
			return strings.ToLower(ref[:i]), true
		default:
			return "", false
		}
	}

	return "", false
}
