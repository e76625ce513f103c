// This file builds the per-session stream address from the configured
// endpoint.
package channel

import (
	"net/url"
	"strings"
)

// streamPath is the fixed routing path the backend mounts the generation
// stream under.
const streamPath = "/api/websocket/generation/"

// BuildURL combines the configured stream endpoint with the fixed routing
// path and the session id. The scheme follows the endpoint: https (or wss)
// selects wss, everything else ws.
//
// A malformed endpoint never fails: the host is recovered by stripping any
// protocol prefix and cutting at the first path separator.
func BuildURL(endpoint, sessionID string) string {
	scheme := "ws"
	host := ""

	u, err := url.Parse(endpoint)
	if err == nil && u.Host != "" {
		host = u.Host
		switch u.Scheme {
		case "https", "wss":
			scheme = "wss"
		}
	} else {
		host = fallbackHost(endpoint)
		if strings.HasPrefix(endpoint, "https://") || strings.HasPrefix(endpoint, "wss://") {
			scheme = "wss"
		}
	}

	return scheme + "://" + host + streamPath + sessionID
}

// fallbackHost extracts a host from a string url.Parse could not handle:
// strip everything up to "://" if present, then cut at the first "/".
func fallbackHost(endpoint string) string {
	host := endpoint
	if idx := strings.Index(host, "://"); idx >= 0 {
		host = host[idx+len("://"):]
	}
	if idx := strings.IndexByte(host, '/'); idx >= 0 {
		host = host[:idx]
	}
	return host
}
