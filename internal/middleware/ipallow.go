package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/go-faster/errors"

	"prdigest/server/internal/observability"
)

// IPAllowList admits requests whose client address matches one of its
// entries. An empty list admits everyone.
type IPAllowList struct {
	prefixes    []netip.Prefix
	proxyHeader string
}

// NewIPAllowList parses entries, each an exact address ("203.0.113.7") or a
// CIDR ("203.0.113.0/24"). When proxyHeader is set (e.g. X-Forwarded-For),
// the leftmost address in that header is used as the client address.
func NewIPAllowList(entries []string, proxyHeader string) (*IPAllowList, error) {
	l := &IPAllowList{proxyHeader: proxyHeader}
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, errors.Wrapf(err, "allowed IP %q", entry)
			}
			l.prefixes = append(l.prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, errors.Wrapf(err, "allowed IP %q", entry)
		}
		addr = addr.Unmap()
		l.prefixes = append(l.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return l, nil
}

// Enabled reports whether the list restricts anything.
func (l *IPAllowList) Enabled() bool {
	return len(l.prefixes) > 0
}

// Allows reports whether addr matches an entry.
func (l *IPAllowList) Allows(addr netip.Addr) bool {
	if !l.Enabled() {
		return true
	}
	addr = addr.Unmap()
	for _, p := range l.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Middleware rejects requests from addresses outside the list with 403.
func (l *IPAllowList) Middleware(next http.Handler) http.Handler {
	if !l.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r, l.proxyHeader)
		addr, err := netip.ParseAddr(ip)
		if err != nil || !l.Allows(addr) {
			observability.LogSecurityEvent(GetRequestID(r.Context()), "", "ip_denied", map[string]any{
				"client_ip": ip,
			})
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("Access denied"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the client address of r: the leftmost entry of
// proxyHeader when set and present, otherwise the host of RemoteAddr.
func ClientIP(r *http.Request, proxyHeader string) string {
	if proxyHeader != "" {
		if v := r.Header.Get(proxyHeader); v != "" {
			first, _, _ := strings.Cut(v, ",")
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
