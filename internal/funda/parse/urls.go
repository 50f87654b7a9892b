package parse

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	regionPathRe   = regexp.MustCompile(`funda\.nl/(?:zoeken/)?(?:koop|huur)/([^/?]+)`)
	selectedAreaRe = regexp.MustCompile(`selected_area=.*?"([^"]+)"`)
	globalIDRe     = regexp.MustCompile(`[/-](\d{6,})`)
)

// addressParams are query parameters that carry a searchable address.
var addressParams = []string{"q", "query", "address", "location", "loc"}

// NormalizeAddressInput turns arbitrary input (plain address text or a URL)
// into a best-effort searchable address query. Pure and deterministic.
func NormalizeAddressInput(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return trimmed
	}

	query := parsed.Query()
	for _, key := range addressParams {
		if value := strings.TrimSpace(query.Get(key)); value != "" {
			return value
		}
	}

	if slug := lastPathSegment(parsed.Path); slug != "" {
		decoded, err := url.PathUnescape(slug)
		if err != nil {
			decoded = slug
		}
		text := strings.NewReplacer("-", " ", "_", " ").Replace(decoded)
		text = strings.TrimSpace(text)
		if text != "" {
			// The source site's listing slugs are trustworthy addresses.
			// Foreign slugs are used only when they look like text.
			if IsSourceHost(parsed.Host) || containsLetter(text) {
				return text
			}
		}
	}

	return trimmed
}

// IsSourceHost reports whether the host belongs to the listing source site.
func IsSourceHost(host string) bool {
	host = strings.ToLower(host)
	return strings.Contains(host, "funda.nl") || strings.Contains(host, "funda.io")
}

// Region extracts the crawl region from a source-site search URL: the path
// segment after "koop"/"huur", or the value of a selected_area parameter.
func Region(searchURL string) (string, bool) {
	decoded, err := url.QueryUnescape(searchURL)
	if err != nil {
		decoded = searchURL
	}

	if m := regionPathRe.FindStringSubmatch(decoded); m != nil {
		region := strings.TrimSpace(m[1])
		if region != "" && !strings.HasPrefix(region, "?") {
			return strings.ToLower(region), true
		}
	}

	if m := selectedAreaRe.FindStringSubmatch(decoded); m != nil {
		region := strings.ToLower(strings.TrimSpace(m[1]))
		return region, region != ""
	}

	return "", false
}

// AbsoluteURL resolves a site-relative listing path against the source
// host. Absolute URLs pass through unchanged.
func AbsoluteURL(raw string) string {
	if raw == "" || strings.HasPrefix(raw, "http") {
		return raw
	}
	return "https://www.funda.nl" + raw
}

// GlobalID extracts the numeric listing identifier from a detail URL.
// The last six-or-more digit run wins, matching slugs like
// "huis-43224373-prinsengracht-1".
func GlobalID(detailURL string) (int64, bool) {
	matches := globalIDRe.FindAllStringSubmatch(detailURL, -1)
	if len(matches) == 0 {
		return 0, false
	}
	last := matches[len(matches)-1][1]
	id, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func lastPathSegment(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}

func containsLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
