package search

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// AllowList holds the registrable domains (eTLD+1) pages may come from.
type AllowList struct {
	domains map[string]struct{}
}

// AllowedDomainsFile is the on-disk shape of the allow-list.
type AllowedDomainsFile struct {
	AllowedDomains []string `json:"allowed_domains"`
}

// NewAllowList normalizes each entry, which may be a bare host or a URL, to
// its registrable domain. Unparseable entries are returned as an error.
func NewAllowList(entries []string) (*AllowList, error) {
	a := &AllowList{domains: make(map[string]struct{}, len(entries))}
	var bad []string
	for _, e := range entries {
		if strings.TrimSpace(e) == "" {
			continue
		}
		d, err := RegistrableDomain(e)
		if err != nil {
			bad = append(bad, e)
			continue
		}
		a.domains[d] = struct{}{}
	}
	if len(bad) > 0 {
		return a, fmt.Errorf("invalid allow-list entries: %s", strings.Join(bad, ", "))
	}
	return a, nil
}

// LoadAllowList reads {"allowed_domains": [...]} from path.
func LoadAllowList(path string) (*AllowList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read allow-list: %w", err)
	}
	var f AllowedDomainsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse allow-list %s: %w", path, err)
	}
	return NewAllowList(f.AllowedDomains)
}

// RegistrableDomain returns the eTLD+1 of a URL or bare host, lowercased and
// without a port.
func RegistrableDomain(raw string) (string, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	host := raw
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", err
		}
		host = u.Hostname()
	} else {
		if i := strings.IndexAny(host, "/?#"); i >= 0 {
			host = host[:i]
		}
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("no host in %q", raw)
	}
	return publicsuffix.EffectiveTLDPlusOne(host)
}

// Allowed reports whether rawURL's registrable domain is on the list.
func (a *AllowList) Allowed(rawURL string) bool {
	if a == nil {
		return false
	}
	d, err := RegistrableDomain(rawURL)
	if err != nil {
		return false
	}
	_, ok := a.domains[d]
	return ok
}

// Domains returns the sorted domain set.
func (a *AllowList) Domains() []string {
	out := make([]string, 0, len(a.domains))
	for d := range a.domains {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (a *AllowList) Len() int {
	return len(a.domains)
}
