package parse

import (
	"html"
	"net"
	"net/url"
	"strings"
)

// blockedHosts never serve a brand's own logo; search results pointing at them are skipped
var blockedHosts = []string{
	"facebook.com", "fbcdn.net", "instagram.com", "twitter.com", "x.com", "twimg.com",
	"pinterest.com", "pinimg.com", "linkedin.com", "licdn.com", "tiktok.com", "reddit.com",
}

// NormalizeURL standardizes an image URL for comparison.
// It lowercases the scheme and host, removes default ports, ensures an empty
// path becomes "/" and drops the fragment. The query string is kept because
// image CDNs use it to select the asset.
// Does not modify the input *url.URL
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	host, port, err := net.SplitHostPort(normalized.Host)
	if err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if normalized.Path == "" {
		normalized.Path = "/"
	}
	normalized.Fragment = ""
	normalized.RawFragment = ""

	return normalized.String()
}

// ParseAndNormalize parses an absolute http(s) URL and normalizes it.
// Returns the normalized string, the parsed URL object, and any parse error
func ParseAndNormalize(urlStr string) (string, *url.URL, error) {
	parsed, err := url.ParseRequestURI(strings.TrimSpace(urlStr))
	if err != nil {
		return "", nil, err
	}
	return NormalizeURL(parsed), parsed, nil
}

// IsCandidateURL reports whether rawURL is an absolute http(s) URL on a host that may hold a logo.
func IsCandidateURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, blocked := range blockedHosts {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return false
		}
	}
	return true
}

// UnescapeEmbedded undoes the escaping search engines apply to URLs embedded in JSON or HTML attributes.
func UnescapeEmbedded(s string) string {
	s = strings.ReplaceAll(s, `\/`, "/")
	s = strings.ReplaceAll(s, `\u0026`, "&")
	s = strings.ReplaceAll(s, `\u003d`, "=")
	s = strings.ReplaceAll(s, `\u002f`, "/")
	return html.UnescapeString(s)
}

// ResolveReference resolves a possibly relative reference (src, href) against base.
// Protocol-relative references inherit the base scheme.
func ResolveReference(base *url.URL, ref string) (*url.URL, error) {
	ref = strings.TrimSpace(ref)
	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(parsed), nil
}
