// Package security holds the HTTP hardening middleware: response headers,
// body limits, suspicious request detection and client IP extraction.
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync/atomic"
)

const (
	maxURLLength    = 2048
	maxForwardHops  = 6
	headerForwarded = "X-Forwarded-For"
	headerRealIP    = "X-Real-IP"
)

type DetectionMetrics struct {
	SuspiciousRequests int64
	InvalidIPAttempts  int64
}

// Detector flags requests that look like scanner traffic and resolves the client
// IP behind trusted proxies.
type Detector struct {
	suspicious atomic.Int64
	invalidIP  atomic.Int64
	trusted    []netip.Prefix
}

// Loopback and private ranges: the app normally sits behind a local proxy.
var privateRanges = []string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "::1/128"}

// scanMarkers appear in paths or queries of scanners, never in the app's own URLs.
var scanMarkers = []string{
	"../", "..\\", "/.env", "/.git", "/.ssh", "wp-admin", "wp-login", "phpmyadmin",
	".php", "etc/passwd", "cmd.exe", "<script", "javascript:", "union select", "eval(",
}

var scannerAgents = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab", "nuclei"}

func NewDetector() *Detector {
	d := &Detector{}
	for _, cidr := range privateRanges {
		d.trusted = append(d.trusted, netip.MustParsePrefix(cidr))
	}
	return d
}

// AddTrustedProxy trusts forwarded headers from the given network.
func (d *Detector) AddTrustedProxy(cidr string) error {
	p, err := netip.ParsePrefix(strings.TrimSpace(cidr))
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trusted = append(d.trusted, p.Masked())
	return nil
}

// DetectSuspiciousRequest reports whether r looks like scanner traffic.
func (d *Detector) DetectSuspiciousRequest(r *http.Request) bool {
	_, hit := d.Inspect(r)
	return hit
}

// Inspect is DetectSuspiciousRequest that also says which rule matched.
func (d *Detector) Inspect(r *http.Request) (reason string, suspicious bool) {
	reason = scanReason(r)
	if reason == "" {
		return "", false
	}
	d.suspicious.Add(1)
	return reason, true
}

func scanReason(r *http.Request) string {
	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)
	for _, m := range scanMarkers {
		if strings.Contains(target, m) {
			return "marker " + m
		}
	}
	agent := strings.ToLower(r.Header.Get("User-Agent"))
	for _, s := range scannerAgents {
		if strings.Contains(agent, s) {
			return "agent " + s
		}
	}
	switch r.Method {
	case "TRACE", "TRACK", "DEBUG", http.MethodConnect:
		return "method " + r.Method
	}
	if len(r.URL.String()) > maxURLLength {
		return "long url"
	}
	if hops := strings.Count(r.Header.Get(headerForwarded), ",") + 1; hops > maxForwardHops {
		return "forward chain"
	}
	return ""
}

// ExtractClientIP returns the forwarded client address when the peer is a
// trusted proxy and the peer address otherwise.
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
	if !d.isTrusted(peer) {
		return host
	}

	if xff := r.Header.Get(headerForwarded); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if a, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return a.String()
		}
		d.invalidIP.Add(1)
	}
	if a, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get(headerRealIP))); err == nil {
		return a.String()
	}
	return host
}

func (d *Detector) isTrusted(a netip.Addr) bool {
	a = a.Unmap()
	for _, p := range d.trusted {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: d.suspicious.Load(),
		InvalidIPAttempts:  d.invalidIP.Load(),
	}
}
