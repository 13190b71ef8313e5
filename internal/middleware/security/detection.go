// Package security flags attack traffic and sets response hardening headers.
package security

import (
	"net"
	"net/http"
	"net/netip"
	"slices"
	"strings"
	"sync/atomic"

	"spendrag/internal/log"
)

// DetectionMetrics counts what the detector has seen since start.
type DetectionMetrics struct {
	SuspiciousRequests int64 `json:"suspicious_requests"`
	BlockedRequests    int64 `json:"blocked_requests"`
}

// Finding describes why a request looked suspicious. Blocking findings are
// rejected; the rest are only logged.
type Finding struct {
	Reason   string
	Blocking bool
}

const (
	maxURLLength   = 2048
	maxForwardHops = 5
)

var (
	attackPatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", ".git", ".ssh",
		"eval(", "javascript:", "<script", "union select",
		"etc/passwd", "cmd.exe",
	}
	scannerAgents = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab"}
	rejectMethods = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}

	// Forwarded headers are honoured only from loopback and private ranges.
	trustedProxies = []netip.Prefix{
		netip.MustParsePrefix("127.0.0.0/8"),
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("172.16.0.0/12"),
		netip.MustParsePrefix("192.168.0.0/16"),
		netip.MustParsePrefix("::1/128"),
	}
)

// rules run in order; the first hit wins.
var rules = []func(r *http.Request) (Finding, bool){
	func(r *http.Request) (Finding, bool) {
		path, query := strings.ToLower(r.URL.Path), strings.ToLower(r.URL.RawQuery)
		for _, p := range attackPatterns {
			if strings.Contains(path, p) || strings.Contains(query, p) {
				return Finding{Reason: "attack pattern " + p, Blocking: true}, true
			}
		}
		return Finding{}, false
	},
	func(r *http.Request) (Finding, bool) {
		if slices.Contains(rejectMethods, r.Method) {
			return Finding{Reason: "unusual method " + r.Method, Blocking: true}, true
		}
		return Finding{}, false
	},
	func(r *http.Request) (Finding, bool) {
		if len(r.URL.String()) > maxURLLength {
			return Finding{Reason: "url too long", Blocking: true}, true
		}
		return Finding{}, false
	},
	func(r *http.Request) (Finding, bool) {
		ua := strings.ToLower(r.Header.Get("User-Agent"))
		for _, agent := range scannerAgents {
			if strings.Contains(ua, agent) {
				return Finding{Reason: "scanner user agent " + agent}, true
			}
		}
		return Finding{}, false
	},
	func(r *http.Request) (Finding, bool) {
		if strings.Count(r.Header.Get("X-Forwarded-For"), ",") > maxForwardHops {
			return Finding{Reason: "long forwarding chain"}, true
		}
		return Finding{}, false
	},
}

type Detector struct {
	suspicious atomic.Int64
	blocked    atomic.Int64
	logger     *log.Logger
}

func NewDetector(logger *log.Logger) *Detector {
	if logger == nil {
		logger = log.Discard()
	}
	return &Detector{logger: logger.WithComponent(log.ComponentSecurity)}
}

// Inspect reports the first rule r trips, if any.
func (d *Detector) Inspect(r *http.Request) (Finding, bool) {
	for _, rule := range rules {
		if f, hit := rule(r); hit {
			return f, true
		}
	}
	return Finding{}, false
}

// Middleware logs suspicious requests and rejects blocking ones with 400.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		finding, suspicious := d.Inspect(r)
		if !suspicious {
			next.ServeHTTP(w, r)
			return
		}

		d.suspicious.Add(1)
		d.logger.WarnContext(r.Context(), "Suspicious request",
			log.FieldReason, finding.Reason,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, d.ExtractClientIP(r),
			"blocked", finding.Blocking)

		if finding.Blocking {
			d.blocked.Add(1)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractClientIP returns the peer address, or the first X-Forwarded-For
// (then X-Real-IP) entry when the peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !isTrustedProxy(peer.Unmap()) {
		return host
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.String()
	}
	return host
}

func isTrustedProxy(addr netip.Addr) bool {
	for _, p := range trustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: d.suspicious.Load(),
		BlockedRequests:    d.blocked.Load(),
	}
}
