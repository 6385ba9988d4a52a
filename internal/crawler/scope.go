package crawler

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// DomainScope admits URLs that share the seed's registrable domain, so
// www.example.com and docs.example.com both belong to example.com.
type DomainScope struct {
	domain string
}

// NewDomainScope builds a scope anchored at base.
func NewDomainScope(base *url.URL) DomainScope {
	return DomainScope{domain: RegistrableDomain(base.Hostname())}
}

// Domain returns the registrable domain of the scope.
func (s DomainScope) Domain() string {
	return s.domain
}

// Contains reports whether u is an http(s) URL inside the scope.
func (s DomainScope) Contains(u *url.URL) bool {
	if u == nil || s.domain == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return RegistrableDomain(u.Hostname()) == s.domain
}

// ContainsString parses raw and reports whether it is inside the scope.
func (s DomainScope) ContainsString(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return s.Contains(u)
}

// RegistrableDomain returns the eTLD+1 for host. IP literals, single-label
// hosts and hosts the suffix list cannot resolve are returned unchanged.
func RegistrableDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" {
		return ""
	}
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
