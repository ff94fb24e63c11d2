package gateway

import (
	"mime"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/golang/gddo/httputil/header"
	"golang.org/x/net/html/charset"
)

const (
	defaultDocumentType = "text/html"
	defaultAssetType    = "application/octet-stream"
	utf8HTMLType        = "text/html; charset=utf-8"
)

// contentType returns the upstream Content-Type, falling back to the type
// implied by the URL's file extension, then to HTML for root documents.
func contentType(h http.Header, u *url.URL, root bool) string {
	if ct := h.Get("Content-Type"); ct != "" {
		return ct
	}

	if ext := path.Ext(u.Path); ext != "" {
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
	}

	if root {
		return defaultDocumentType
	}
	return defaultAssetType
}

// isHTML reports whether contentType names an HTML document.
func isHTML(contentType string) bool {
	value, _ := mediaType(contentType)
	return value == "text/html" || value == "application/xhtml+xml"
}

func mediaType(contentType string) (string, map[string]string) {
	h := http.Header{"Content-Type": {contentType}}
	return header.ParseValueAndParams(h, "Content-Type")
}

// decodeHTML returns body as UTF-8 text. Bodies in another declared (or
// detectably non-UTF-8) encoding are transcoded, in which case the returned
// content type carries charset=utf-8.
func decodeHTML(body []byte, contentType string) (string, string) {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || (!certain && utf8.Valid(body)) {
		return string(body), contentType
	}

	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return string(body), contentType
	}

	return string(decoded), withUTF8(contentType)
}

func withUTF8(contentType string) string {
	value, params := mediaType(contentType)
	if value == "" {
		return utf8HTMLType
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if k != "charset" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(value)
	for _, k := range keys {
		b.WriteString("; " + k + "=" + params[k])
	}
	b.WriteString("; charset=utf-8")

	return b.String()
}
