package harvest

import (
	"strings"

	"github.com/go-rod/rod/lib/proto"
)

// filterCookies keeps cookies whose name contains any of markers, keyed by
// name. The returned map is never nil.
func filterCookies(cookies []*proto.NetworkCookie, markers []string) map[string]string {
	out := make(map[string]string)
	for _, c := range cookies {
		if c == nil {
			continue
		}
		if matchesAny(c.Name, markers) {
			out[c.Name] = c.Value
		}
	}
	return out
}

func matchesAny(name string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(name, m) {
			return true
		}
	}
	return false
}
