package proxy

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/user/animerank-crawler/internal/pacing"
)

// DefaultUserAgent is the desktop Chrome string the listing site is used to seeing.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.0.0 Safari/537.36"

var defaultUserAgents = []string{
	DefaultUserAgent,
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.0.0 Safari/537.36",
}

// Manager handles the rotation of proxies and user agents.
type Manager struct {
	proxies    []*url.URL
	userAgents []string
	jitter     *pacing.Jitter
	mu         sync.Mutex
	proxyIndex int
}

// NewManager parses the proxy list. An empty userAgents list falls back to the built-in set.
func NewManager(proxies []string, userAgents []string, jitter *pacing.Jitter) (*Manager, error) {
	m := &Manager{userAgents: userAgents, jitter: jitter}
	if len(m.userAgents) == 0 {
		m.userAgents = defaultUserAgents
	}
	if m.jitter == nil {
		m.jitter = pacing.NewJitter(0)
	}
	for _, raw := range proxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url %q: %w", raw, err)
		}
		m.proxies = append(m.proxies, u)
	}
	return m, nil
}

// GetProxy returns the next proxy, rotating sequentially, or nil when none are configured.
func (m *Manager) GetProxy() *url.URL {
	if len(m.proxies) == 0 {
		return nil // No proxy
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.proxies[m.proxyIndex]
	m.proxyIndex = (m.proxyIndex + 1) % len(m.proxies)
	return p
}

// ProxyFunc adapts the rotation to http.Transport.Proxy.
func (m *Manager) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(*http.Request) (*url.URL, error) {
		return m.GetProxy(), nil
	}
}

// GetUserAgent returns a random user agent string.
func (m *Manager) GetUserAgent() string {
	return m.userAgents[m.jitter.Intn(len(m.userAgents))]
}
