package ingest

import (
	"net/url"
	"strings"
)

// ParseDenyList splits a comma separated list of domain suffixes.
// Entries are lowercased and trimmed; empty entries and leading dots are dropped.
func ParseDenyList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		tld := strings.TrimLeft(strings.ToLower(strings.TrimSpace(part)), ".")
		if tld != "" {
			out = append(out, tld)
		}
	}
	return out
}

// FilteredByTLD reports whether any URL's host equals or ends with a denied
// suffix. It returns the first offending host and suffix for logging.
// URLs that cannot be parsed are ignored.
func FilteredByTLD(urls []string, denyList []string) (bool, string, string) {
	if len(denyList) == 0 {
		return false, "", ""
	}

	for _, raw := range urls {
		host := hostOf(raw)
		if host == "" {
			continue
		}
		for _, tld := range denyList {
			if host == tld || strings.HasSuffix(host, "."+tld) {
				return true, host, tld
			}
		}
	}
	return false, "", ""
}

func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host == "" && u.Scheme == "" {
		// bare host without scheme, e.g. "cn" or "news.example.ru/path"
		host = strings.SplitN(u.Path, "/", 2)[0]
	}
	return strings.TrimSuffix(strings.ToLower(host), ".")
}
