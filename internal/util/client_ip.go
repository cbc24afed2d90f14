package util

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"
)

// ProxyTrust is the set of reverse-proxy address ranges whose forwarding
// headers are believed. A nil ProxyTrust believes none, so audit logs and
// rate-limit keys fall back to the direct peer address.
type ProxyTrust struct {
	prefixes []netip.Prefix
}

// ParseProxyTrust builds a ProxyTrust from CIDR ranges or single addresses.
// An empty list yields nil: forwarded headers are then ignored entirely.
func ParseProxyTrust(entries []string) (*ProxyTrust, error) {
	var prefixes []netip.Prefix
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q is neither a CIDR nor an address", entry)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	if len(prefixes) == 0 {
		return nil, nil
	}
	return &ProxyTrust{prefixes: prefixes}, nil
}

// Trusts reports whether addr belongs to a trusted proxy range.
func (p *ProxyTrust) Trusts(addr netip.Addr) bool {
	if p == nil || !addr.IsValid() {
		return false
	}
	for _, prefix := range p.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the address to attribute a request to. X-Forwarded-For is
// walked right to left, skipping trusted proxy hops, and only when the
// direct peer itself is a trusted proxy; any other peer speaks for itself
// and its forwarding headers are ignored.
func ClientIP(r *http.Request, trust *ProxyTrust) string {
	peer, err := netip.ParseAddrPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		addr, err := netip.ParseAddr(strings.TrimSpace(r.RemoteAddr))
		if err != nil {
			return strings.TrimSpace(r.RemoteAddr)
		}
		peer = netip.AddrPortFrom(addr, 0)
	}
	if !trust.Trusts(peer.Addr()) {
		return peer.Addr().String()
	}

	hops := forwardedHops(r.Header.Get("X-Forwarded-For"))
	for i := len(hops) - 1; i >= 0; i-- {
		if !trust.Trusts(hops[i]) {
			return hops[i].String()
		}
	}
	if len(hops) > 0 {
		// Every listed hop is one of our proxies; the leftmost is the
		// closest thing to a client address we have.
		return hops[0].String()
	}
	return peer.Addr().String()
}

func forwardedHops(header string) []netip.Addr {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	hops := make([]netip.Addr, 0, len(parts))
	for _, part := range parts {
		addr, err := netip.ParseAddr(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		hops = append(hops, addr)
	}
	return hops
}
