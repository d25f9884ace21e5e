package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		target  string
		headers map[string]string
		want    Strategy
	}{
		{"page", http.MethodGet, "/index.html", nil, StrategyShell},
		{"root", http.MethodGet, "/", nil, StrategyShell},
		{"stylesheet", http.MethodGet, "/assets/styles/galaxy.css", nil, StrategyShell},
		{"png", http.MethodGet, "/assets/images/a.png", nil, StrategyImage},
		{"uppercase extension", http.MethodGet, "/assets/images/A.JPEG", nil, StrategyImage},
		{"favicon", http.MethodGet, "/favicon.ico", nil, StrategyImage},
		{"image destination", http.MethodGet, "/api/thumbnail?id=4", map[string]string{"Sec-Fetch-Dest": "image"}, StrategyImage},
		{"uploaded image stays image", http.MethodGet, "/uploads/photo.png", nil, StrategyImage},
		{"uploads", http.MethodGet, "/uploads/list", nil, StrategyPassThrough},
		{"signature", http.MethodGet, "/api/signature", nil, StrategyPassThrough},
		{"post", http.MethodPost, "/api/contact", nil, StrategyPassThrough},
		{"head", http.MethodHead, "/index.html", nil, StrategyPassThrough},
		{"websocket", http.MethodGet, "/live", map[string]string{"Connection": "keep-alive, Upgrade", "Upgrade": "websocket"}, StrategyPassThrough},
		{"extension scheme", http.MethodGet, "chrome-extension://abc/icon.png", nil, StrategyPassThrough},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := Classify(req); got != tt.want {
				t.Errorf("Classify(%s %s) = %q, want %q", tt.method, tt.target, got, tt.want)
			}
		})
	}
}

func TestIsNavigation(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    bool
	}{
		{"navigate mode", map[string]string{"Sec-Fetch-Mode": "navigate"}, true},
		{"document destination", map[string]string{"Sec-Fetch-Dest": "document"}, true},
		{"script", map[string]string{"Sec-Fetch-Mode": "no-cors", "Sec-Fetch-Dest": "script"}, false},
		{"fetch metadata wins over accept", map[string]string{"Sec-Fetch-Mode": "cors", "Accept": "text/html"}, false},
		{"accept fallback", map[string]string{"Accept": "text/html,application/xhtml+xml"}, true},
		{"no hints", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/page", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := IsNavigation(req); got != tt.want {
				t.Errorf("IsNavigation = %v, want %v", got, tt.want)
			}
		})
	}
}
