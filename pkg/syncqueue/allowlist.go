package syncqueue

import (
	"net/url"
	"strings"
)

// DefaultAllowedEndpoints are the only paths queued writes may be replayed to.
var DefaultAllowedEndpoints = []string{
	"/api/signature",
}

// AllowList decides whether a queued item may be sent. A target is allowed
// when it is on the origin and its path equals an endpoint or lies below it.
type AllowList struct {
	origin    *url.URL
	endpoints []string
}

// NewAllowList creates an allow-list for targets on origin.
func NewAllowList(origin *url.URL, endpoints []string) AllowList {
	o := *origin
	return AllowList{
		origin:    &o,
		endpoints: append([]string(nil), endpoints...),
	}
}

// Resolve resolves raw against the origin and reports whether the result
// may be replayed to.
func (a AllowList) Resolve(raw string) (*url.URL, bool) {
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	target := a.origin.ResolveReference(ref)

	if !strings.EqualFold(target.Scheme, a.origin.Scheme) || !strings.EqualFold(target.Host, a.origin.Host) {
		return target, false
	}
	for _, ep := range a.endpoints {
		if target.Path == ep || strings.HasPrefix(target.Path, ep+"/") {
			return target, true
		}
	}
	return target, false
}
