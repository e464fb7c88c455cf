package api

import (
	"fmt"
	"net/url"
	"strings"
)

// parseOrigin returns the host of an origin such as https://party.example:8443.
// "*" and bare hosts are returned unchanged.
func parseOrigin(origin string) (string, error) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return "", fmt.Errorf("empty origin")
	}
	if origin == "*" || !strings.Contains(origin, "://") {
		return origin, nil
	}
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("invalid origin %q: %v", origin, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid origin %q", origin)
	}
	return u.Host, nil
}
