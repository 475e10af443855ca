package auth

import (
	"net/http"
	"strings"
)

// Policy determines required capabilities by request.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request should skip auth.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredCapability resolves the capability a request needs.
func (p Policy) RequiredCapability(r *http.Request) (Capability, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	method := r.Method

	switch {
	case path == "/api/v1/commissions/calculate", path == "/api/v1/commissions/open-period":
		return CapCalculate, true
	case strings.HasPrefix(path, "/api/v1/commissions/") && method == http.MethodPost:
		return CapSettle, true
	case path == "/api/v1/commissions", strings.HasPrefix(path, "/api/v1/commissions/"):
		return CapView, true
	}

	if strings.HasPrefix(path, "/api/") {
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return CapView, true
		}
		return CapSettle, true
	}
	return "", false
}
