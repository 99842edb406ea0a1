// Package origin decides which browser origins may call the API.
package origin

import (
	"slices"
	"strings"
	"sync"
)

// Policy reports whether a request Origin is allowed.
type Policy interface {
	IsAllowed(origin string) bool
}

// AllowList is a Policy backed by an exact-match list of origins. Requests
// without an Origin header (same-origin or non-browser clients) are always
// allowed. The list can be replaced at runtime with Set.
type AllowList struct {
	mu      sync.RWMutex
	origins map[string]struct{}
}

// NewAllowList creates an AllowList from origins.
func NewAllowList(origins ...string) *AllowList {
	a := &AllowList{}
	a.Set(origins)
	return a
}

// IsAllowed reports whether origin is empty or listed. Matching ignores a
// trailing slash but is otherwise exact, scheme and port included.
func (a *AllowList) IsAllowed(origin string) bool {
	if origin == "" {
		return true
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	_, ok := a.origins[normalize(origin)]
	return ok
}

// Set replaces the allowed origins. Blank entries are ignored.
func (a *AllowList) Set(origins []string) {
	m := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o = normalize(o); o != "" {
			m[o] = struct{}{}
		}
	}

	a.mu.Lock()
	a.origins = m
	a.mu.Unlock()
}

// List returns the allowed origins in sorted order.
func (a *AllowList) List() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]string, 0, len(a.origins))
	for o := range a.origins {
		out = append(out, o)
	}
	slices.Sort(out)
	return out
}

func normalize(origin string) string {
	return strings.TrimSuffix(strings.TrimSpace(origin), "/")
}
