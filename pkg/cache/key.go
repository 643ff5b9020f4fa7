package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached Artforge API response.
type Key struct {
	// Endpoint is the API path (e.g. "/api/search/images").
	Endpoint string

	// Query is the request query string parameters.
	Query url.Values

	// UserID scopes authenticated responses; empty for public endpoints.
	UserID string
}

// String generates a deterministic storage key.
// Format: artforge:endpoint:query1=val1:query2=val2:user=u-123
func (k Key) String() string {
	parts := []string{"artforge"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.Query) > 0 {
		names := make([]string, 0, len(k.Query))
		for name := range k.Query {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, k.Query.Get(name)))
		}
	}

	if k.UserID != "" {
		parts = append(parts, "user="+k.UserID)
	}

	return strings.Join(parts, ":")
}
