package cache

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrNotCacheable indicates a request that can never be stored (non-GET,
// relative or non-HTTP(S) URL).
var ErrNotCacheable = errors.New("request not cacheable")

// RequestKey identifies a cached response: the GET method plus the
// normalized absolute request URL.
type RequestKey struct {
	Method string
	URL    string
}

// NewRequestKey normalizes rawURL and builds a key for method.
// Scheme and host are lowercased, the fragment is dropped and an empty
// path becomes "/". Only GET requests produce a key.
func NewRequestKey(method, rawURL string) (RequestKey, error) {
	method = strings.ToUpper(method)
	if method == "" {
		method = http.MethodGet
	}
	if method != http.MethodGet {
		return RequestKey{}, fmt.Errorf("%w: method %s", ErrNotCacheable, method)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return RequestKey{}, fmt.Errorf("%w: %v", ErrNotCacheable, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return RequestKey{}, fmt.Errorf("%w: scheme %q", ErrNotCacheable, u.Scheme)
	}
	if u.Host == "" {
		return RequestKey{}, fmt.Errorf("%w: relative url %q", ErrNotCacheable, rawURL)
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}

	return RequestKey{Method: method, URL: u.String()}, nil
}

// String returns the storage field for the key.
// Format: GET https://example.com/path?query
func (k RequestKey) String() string {
	return k.Method + " " + k.URL
}
