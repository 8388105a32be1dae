// Package urlvalidation guards outbound callbacks (profile hooks, avatar
// hooks, event webhooks) against requests into private networks.
package urlvalidation

import (
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// Option configures URL validation.
type Option func(*options)

type options struct {
	allowPrivate bool
	lookup       func(host string) ([]string, error)
}

// AllowPrivateIPs disables the private address check. Use only in tests
// and trusted local deployments.
func AllowPrivateIPs() Option {
	return func(o *options) { o.allowPrivate = true }
}

// WithLookup replaces DNS resolution.
func WithLookup(lookup func(host string) ([]string, error)) Option {
	return func(o *options) { o.lookup = lookup }
}

// blocked are the loopback, private, link-local, shared and reserved ranges.
var blocked = mustPrefixes(
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"::/128",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
	"ff00::/8",
)

func mustPrefixes(cidrs ...string) []netip.Prefix {
	out := make([]netip.Prefix, len(cidrs))
	for i, c := range cidrs {
		out[i] = netip.MustParsePrefix(c)
	}
	return out
}

// Validate checks that rawURL is an http(s) URL whose host resolves only
// to public addresses.
func Validate(rawURL string, opts ...Option) error {
	o := options{lookup: net.LookupHost}
	for _, opt := range opts {
		opt(&o)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if s := strings.ToLower(u.Scheme); s != "https" && s != "http" {
		return fmt.Errorf("URL scheme %q not allowed; use http or https", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("URL must have a hostname")
	}
	if u.User != nil {
		return fmt.Errorf("URL must not carry credentials")
	}

	if o.allowPrivate {
		return nil
	}
	addrs, err := o.lookup(host)
	if err != nil {
		return fmt.Errorf("cannot resolve hostname %q: %w", host, err)
	}
	for _, a := range addrs {
		ip, err := netip.ParseAddr(a)
		if err != nil {
			continue
		}
		if IsPrivate(ip) {
			return fmt.Errorf("URL resolves to private or reserved address %s", ip)
		}
	}
	return nil
}

// IsPrivate reports whether ip must not be reached by outbound callbacks.
// IPv4-mapped IPv6 addresses are checked as IPv4.
func IsPrivate(ip netip.Addr) bool {
	ip = ip.Unmap()
	for _, p := range blocked {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}
