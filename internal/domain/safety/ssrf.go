package safety

import (
	"context"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	apperrors "github.com/ngoclaw/agentcore/pkg/errors"
)

// Resolver abstracts DNS resolution so tests can inject deterministic results.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// URLFilterConfig configures SSRFFilter.
type URLFilterConfig struct {
	AllowedHTTPHosts []string      // hosts for which plain http:// is permitted
	ResolveDNS       bool          // if true, resolve hostnames and check every address
	CacheTTL         time.Duration // bounded TTL for resolution caching
	Resolver         Resolver      // nil uses net.DefaultResolver
}

// SSRFFilter decides whether an outbound URL is safe to fetch.
type SSRFFilter struct {
	cfg   URLFilterConfig
	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	safe    bool
	err     error
	expires time.Time
}

// NewSSRFFilter constructs a filter with the given config, defaulting the
// cache TTL to 5 minutes.
func NewSSRFFilter(cfg URLFilterConfig) *SSRFFilter {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &SSRFFilter{cfg: cfg, cache: make(map[string]cacheEntry)}
}

// IsSafeURL validates scheme, host allowlisting, and (optionally) every
// resolved address.
func (f *SSRFFilter) IsSafeURL(ctx context.Context, rawURL string) error {
	f.mu.Lock()
	if e, ok := f.cache[rawURL]; ok && time.Now().Before(e.expires) {
		f.mu.Unlock()
		return e.err
	}
	f.mu.Unlock()

	err := f.check(ctx, rawURL)

	f.mu.Lock()
	f.cache[rawURL] = cacheEntry{safe: err == nil, err: err, expires: time.Now().Add(f.cfg.CacheTTL)}
	f.mu.Unlock()

	return err
}

func (f *SSRFFilter) check(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return apperrors.NewInvalidInputError("invalid URL: " + err.Error())
	}

	switch u.Scheme {
	case "https":
		// allowed regardless of host allowlist; host/IP checks still apply below
	case "http":
		if !f.httpAllowed(u.Hostname()) {
			return apperrors.NewSafetyError("http scheme only permitted for allowlisted or loopback hosts")
		}
	default:
		return apperrors.NewSafetyError("unsupported URL scheme: " + u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return apperrors.NewSafetyError("URL has no host")
	}

	if ip := net.ParseIP(host); ip != nil {
		loopbackHTTP := u.Scheme == "http" && ip.IsLoopback()
		if isPrivateAddr(ip) && !loopbackHTTP && !f.hostAllowlisted(host) {
			return apperrors.NewSafetyError("URL resolves to a private address")
		}
		return nil
	}

	if f.hostAllowlisted(host) {
		return nil
	}

	if !f.cfg.ResolveDNS {
		return nil
	}

	resolver := f.cfg.Resolver
	addrs, err := resolveHost(ctx, resolver, host)
	if err != nil {
		return apperrors.NewUpstreamError("DNS resolution failed", err)
	}
	for _, addr := range addrs {
		if isPrivateAddr(addr.IP) {
			return apperrors.NewSafetyError("URL resolves to a private address")
		}
	}
	return nil
}

func resolveHost(ctx context.Context, resolver Resolver, host string) ([]net.IPAddr, error) {
	if resolver != nil {
		return resolver.LookupIPAddr(ctx, host)
	}
	return net.DefaultResolver.LookupIPAddr(ctx, host)
}

func (f *SSRFFilter) httpAllowed(host string) bool {
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	return f.hostAllowlisted(host)
}

func (f *SSRFFilter) hostAllowlisted(host string) bool {
	for _, h := range f.cfg.AllowedHTTPHosts {
		if strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}

var ulaBlock = mustParseCIDR("fc00::/7")

func mustParseCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

// isPrivateAddr rejects loopback, link-local, RFC1918 IPv4 ranges, and
// IPv6 ULA addresses.
func isPrivateAddr(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	if ip.IsPrivate() {
		// covers 10/8, 172.16/12, 192.168/16 and IPv6 ULA (Go 1.17+ IsPrivate
		// implements both RFC1918 and RFC4193).
		return true
	}
	if ip4 := ip.To4(); ip4 == nil && ulaBlock.Contains(ip) {
		return true
	}
	return false
}
