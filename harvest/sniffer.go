package harvest

import (
	"log/slog"
	"sync"

	"github.com/use-agent/cfharvest/sitekey"
)

// sniffer remembers the first site key seen in a challenge-platform
// response URL. Later matches are ignored.
type sniffer struct {
	mu      sync.Mutex
	sitekey string
	url     string
}

// observe is called from rod's event goroutine for every response.
func (s *sniffer) observe(responseURL string) {
	key := sitekey.FromURL(responseURL)
	if key == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sitekey != "" {
		return
	}
	s.sitekey = key
	s.url = responseURL
	slog.Debug("site key seen in network response", "url", responseURL)
}

// found returns the remembered site key, or "".
func (s *sniffer) found() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sitekey
}
