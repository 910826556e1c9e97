package ratelimit

import (
	"strings"
)

// unlimited is returned for routes that are never limited.
var unlimited = EndpointConfig{Pattern: "/health", Method: "GET"}

// MatchEndpoint returns the most specific configuration for path and method,
// or nil when none applies. Exact and wildcard patterns win over prefixes;
// among prefixes the longest wins.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if path == "/health" && method == "GET" {
		cfg := unlimited
		return &cfg
	}

	var prefix *EndpointConfig
	for i := range configs {
		cfg := &configs[i]
		if cfg.Method != method {
			continue
		}
		if strings.HasSuffix(cfg.Pattern, "/") {
			if strings.HasPrefix(path, cfg.Pattern) && (prefix == nil || len(cfg.Pattern) > len(prefix.Pattern)) {
				prefix = cfg
			}
			continue
		}
		if matchSegments(cfg.Pattern, path) {
			return cfg
		}
	}
	return prefix
}

// matchSegments compares pattern and path segment by segment.
func matchSegments(pattern, path string) bool {
	want := strings.Split(strings.Trim(pattern, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i] == "*" {
			if got[i] == "" {
				return false
			}
			continue
		}
		if want[i] != got[i] {
			return false
		}
	}
	return true
}
