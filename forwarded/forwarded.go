// Package forwarded implements the reverse-proxy header rewriting policy.
// The zero-valued Policy trusts nobody: the directly observed peer address
// and TLS state stay authoritative.
package forwarded

import (
	"net"
	"net/netip"
	"strings"

	"github.com/indigo-web/utils/strcomp"
	"github.com/weft-web/weft/kv"
)

const (
	forHeader   = "X-Forwarded-For"
	protoHeader = "X-Forwarded-Proto"
)

type Policy struct {
	// Trusted enumerates proxy networks whose forwarding headers are honored.
	Trusted []netip.Prefix
}

// Trust parses CIDRs (or single addresses) into a policy. Malformed entries
// are reported instead of being silently dropped, as a typo here widens the
// trust boundary.
func Trust(cidrs ...string) (Policy, error) {
	p := Policy{Trusted: make([]netip.Prefix, 0, len(cidrs))}

	for _, cidr := range cidrs {
		if !strings.Contains(cidr, "/") {
			addr, err := netip.ParseAddr(cidr)
			if err != nil {
				return Policy{}, err
			}

			p.Trusted = append(p.Trusted, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}

		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return Policy{}, err
		}

		p.Trusted = append(p.Trusted, prefix)
	}

	return p, nil
}

// ResolveRemote returns the effective peer address: the rightmost
// X-Forwarded-For entry if the directly connected peer is trusted and the
// entry parses, otherwise the connection address itself.
func (p Policy) ResolveRemote(headers *kv.Storage, conn net.Addr) net.Addr {
	if !p.trusts(conn) {
		return conn
	}

	value := headers.Value(forHeader)
	if value == "" {
		return conn
	}

	if comma := strings.LastIndexByte(value, ','); comma != -1 {
		value = value[comma+1:]
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(value))
	if err != nil {
		return conn
	}

	return &net.TCPAddr{IP: addr.AsSlice(), Zone: addr.Zone()}
}

// ResolveSecure returns the effective TLS flag, honoring X-Forwarded-Proto
// from trusted peers only.
func (p Policy) ResolveSecure(headers *kv.Storage, conn net.Addr, secure bool) bool {
	if !p.trusts(conn) {
		return secure
	}

	value := headers.Value(protoHeader)
	if value == "" {
		return secure
	}

	return strcomp.EqualFold(value, "https")
}

func (p Policy) trusts(conn net.Addr) bool {
	if len(p.Trusted) == 0 || conn == nil {
		return false
	}

	tcp, ok := conn.(*net.TCPAddr)
	if !ok {
		return false
	}

	addr, ok := netip.AddrFromSlice(tcp.IP)
	if !ok {
		return false
	}

	addr = addr.Unmap()
	for _, prefix := range p.Trusted {
		if prefix.Contains(addr) {
			return true
		}
	}

	return false
}
