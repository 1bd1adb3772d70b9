package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeWebsite checks that raw is an absolute http(s) URL with a host and
// returns it trimmed.
func NormalizeWebsite(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid website %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid website %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid website %q: missing host", raw)
	}
	return raw, nil
}
