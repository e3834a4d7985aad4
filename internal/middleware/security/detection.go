// Package security holds the response hardening headers and a log-only
// detector for scanner traffic.
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"wallet/internal/log"
)

const (
	maxURLLength  = 2048
	maxProxyHops  = 6
	headerXFF     = "X-Forwarded-For"
	headerRealIP  = "X-Real-IP"
	reasonLongURL = "url too long"
)

var (
	// Matched against the lower-cased path and decoded query.
	attackMarkers = []string{
		"../", "..\\", ".env", ".git", ".ssh", "etc/passwd", "cmd.exe",
		"wp-admin", "phpmyadmin", "admin.php", "config.php",
		"<script", "javascript:", "eval(", "union select",
	}

	// curl and HTTP libraries are legitimate API clients; only scanners count.
	scannerAgents = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab"}

	probeMethods = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}

	defaultTrusted = []string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}
)

type DetectionMetrics struct {
	SuspiciousRequests int64
	InvalidIPAttempts  int64
}

// Detector flags requests that look like probes and resolves the client
// address, trusting forwarding headers only from known proxy networks.
type Detector struct {
	suspicious atomic.Int64
	invalidIP  atomic.Int64

	mu      sync.RWMutex
	trusted []netip.Prefix
}

// NewDetector trusts loopback and RFC 1918 networks.
func NewDetector() *Detector {
	d := &Detector{}
	for _, cidr := range defaultTrusted {
		d.trusted = append(d.trusted, netip.MustParsePrefix(cidr))
	}
	return d
}

// AddTrustedProxy trusts forwarding headers from peers inside cidr.
func (d *Detector) AddTrustedProxy(cidr string) error {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.mu.Lock()
	d.trusted = append(d.trusted, p.Masked())
	d.mu.Unlock()
	return nil
}

// Inspect returns why r looks hostile, or "" when it does not.
func (d *Detector) Inspect(r *http.Request) string {
	reason := classify(r)
	if reason != "" {
		d.suspicious.Add(1)
	}
	return reason
}

func classify(r *http.Request) string {
	target := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	if unescaped, err := url.QueryUnescape(query); err == nil {
		query = unescaped
	}
	for _, m := range attackMarkers {
		if strings.Contains(target, m) || strings.Contains(query, m) {
			return "pattern " + m
		}
	}

	ua := strings.ToLower(r.Header.Get("User-Agent"))
	if i := slices.IndexFunc(scannerAgents, func(a string) bool { return strings.Contains(ua, a) }); i >= 0 {
		return "user agent " + scannerAgents[i]
	}

	if slices.Contains(probeMethods, r.Method) {
		return "method " + r.Method
	}
	if len(r.URL.String()) > maxURLLength {
		return reasonLongURL
	}
	if hops := strings.Count(r.Header.Get(headerXFF), ",") + 1; hops > maxProxyHops {
		return "forwarding chain too long"
	}
	return ""
}

// Middleware warns about suspicious requests and always passes them on.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason := d.Inspect(r); reason != "" {
			ctx := r.Context()
			log.FromContext(ctx).WarnContext(ctx, "Suspicious request",
				"reason", reason,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, d.ExtractClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractClientIP returns the peer address, or the forwarded client when
// the peer is a trusted proxy. X-Forwarded-For wins over X-Real-IP.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil {
		d.invalidIP.Add(1)
		return host
	}
	if !d.trusts(peer.Unmap()) {
		return host
	}

	first, _, _ := strings.Cut(r.Header.Get(headerXFF), ",")
	for _, candidate := range []string{first, r.Header.Get(headerRealIP)} {
		if a, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
			return a.String()
		}
	}
	return host
}

func (d *Detector) trusts(a netip.Addr) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.ContainsFunc(d.trusted, func(p netip.Prefix) bool { return p.Contains(a) })
}

func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: d.suspicious.Load(),
		InvalidIPAttempts:  d.invalidIP.Load(),
	}
}
