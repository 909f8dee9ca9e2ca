package httpcodec

import (
	"net/url"
	"strings"
)

// ParseQuery decodes a query string of the form "k=v&k2=v2&flag" into a
// string-keyed value map. A bare token with no "=" decodes to the
// boolean true, matching webrequest.py's read_headers: "+" is treated as
// a literal space before percent-decoding, as the original does via
// str.replace("+", " ") ahead of unquote().
func ParseQuery(raw string) map[string]any {
	out := make(map[string]any)
	if raw == "" {
		return out
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		if !strings.Contains(pair, "=") {
			out[decodeToken(pair)] = true
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		out[decodeToken(k)] = decodeToken(v)
	}
	return out
}

func decodeToken(s string) string {
	s = strings.ReplaceAll(s, "+", " ")
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// SplitTarget splits a raw request target into its path and query
// components on the first "?".
func SplitTarget(target string) (path, query string) {
	path, query, _ = strings.Cut(target, "?")
	return path, query
}
