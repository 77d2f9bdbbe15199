// Package corsproxy decides whether an upstream URL must be routed through a
// CORS proxy and rewrites it when so.
package corsproxy

import (
	"net/url"
	"strings"
)

type Proxy interface {
	ShouldProxy(rawURL string) bool
	ProxiedURL(rawURL string) string
}

// Apply routes rawURL through p when p asks for it. A nil proxy is a no-op.
func Apply(p Proxy, rawURL string) string {
	if p == nil || !p.ShouldProxy(rawURL) {
		return rawURL
	}
	return p.ProxiedURL(rawURL)
}

// Prefix proxies absolute URLs by prefixing them with a proxy base, except
// for hosts listed as bypassed (they already send CORS headers).
type Prefix struct {
	base   string
	bypass []string
}

// New returns a prefix proxy. An empty base disables proxying. Bypass entries
// match a host exactly or as a domain suffix ("example.org" also matches
// "maps.example.org").
func New(base string, bypass []string) *Prefix {
	p := &Prefix{base: strings.TrimRight(strings.TrimSpace(base), "/")}
	for _, b := range bypass {
		b = strings.ToLower(strings.TrimSpace(b))
		if b != "" {
			p.bypass = append(p.bypass, strings.TrimPrefix(b, "."))
		}
	}
	return p
}

func (p *Prefix) ShouldProxy(rawURL string) bool {
	if p == nil || p.base == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, b := range p.bypass {
		if host == b || strings.HasSuffix(host, "."+b) {
			return false
		}
	}
	return true
}

func (p *Prefix) ProxiedURL(rawURL string) string {
	return p.base + "/" + rawURL
}
