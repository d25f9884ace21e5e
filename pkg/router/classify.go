package router

import (
	"net/http"
	"regexp"
	"strings"
)

// Strategy is the retrieval strategy chosen for a request.
type Strategy string

const (
	// StrategyPassThrough forwards the request to the origin untouched.
	StrategyPassThrough Strategy = "passthrough"

	// StrategyImage serves cache-first from the image namespace.
	StrategyImage Strategy = "image"

	// StrategyShell serves network-first with cache and offline fallback.
	StrategyShell Strategy = "shell"
)

var imageExtension = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp|svg|ico)$`)

// Classify picks the strategy for r. Non-GET requests, WebSocket upgrades
// and non-HTTP(S) schemes always pass through.
func Classify(r *http.Request) Strategy {
	if r.Method != http.MethodGet {
		return StrategyPassThrough
	}
	if isUpgrade(r) {
		return StrategyPassThrough
	}
	if s := r.URL.Scheme; s != "" && s != "http" && s != "https" {
		return StrategyPassThrough
	}

	if IsImage(r) {
		return StrategyImage
	}
	if IsCacheable(r) {
		return StrategyShell
	}
	return StrategyPassThrough
}

// IsImage reports whether r targets an image by destination or extension.
func IsImage(r *http.Request) bool {
	return r.Header.Get("Sec-Fetch-Dest") == "image" || imageExtension.MatchString(r.URL.Path)
}

// IsCacheable reports whether r may be stored in the shell namespace.
// Uploads and signature-bearing paths never are.
func IsCacheable(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	p := r.URL.Path
	return !strings.HasPrefix(p, "/uploads/") && !strings.Contains(p, "signature")
}

// IsNavigation reports whether r is a top-level page navigation. Without
// Sec-Fetch metadata it falls back to the Accept header.
func IsNavigation(r *http.Request) bool {
	mode := r.Header.Get("Sec-Fetch-Mode")
	dest := r.Header.Get("Sec-Fetch-Dest")
	if mode != "" || dest != "" {
		return mode == "navigate" || dest == "document"
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func isUpgrade(r *http.Request) bool {
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return true
	}
	for _, v := range r.Header.Values("Connection") {
		for _, tok := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(tok), "upgrade") {
				return true
			}
		}
	}
	return false
}
