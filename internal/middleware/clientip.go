package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP resolves the address a request came from. CF-Connecting-IP and
// X-Forwarded-For are honoured only when the direct peer is one of the
// trusted proxies; otherwise the peer address is the client.
type ClientIP struct {
	trusted []netip.Prefix
}

func NewClientIP(trusted []netip.Prefix) *ClientIP {
	return &ClientIP{trusted: trusted}
}

// Of returns the client address for r. A nil ClientIP trusts no proxy.
func (c *ClientIP) Of(r *http.Request) string {
	peer := peerAddr(r)
	if !c.isTrusted(peer) {
		return peer
	}
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		// Walk from the nearest hop back; the first address that is not
		// one of our proxies is the client.
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !c.isTrusted(hop) || i == 0 {
				return hop
			}
		}
	}
	return peer
}

// ByIPAndPath keys requests by client address and route so sign-in and
// sign-up attempts are counted separately.
func (c *ClientIP) ByIPAndPath(r *http.Request) string {
	return c.Of(r) + " " + r.URL.Path
}

func (c *ClientIP) isTrusted(addr string) bool {
	if c == nil || len(c.trusted) == 0 {
		return false
	}
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return false
	}
	ip = ip.Unmap()
	for _, p := range c.trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

func peerAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
