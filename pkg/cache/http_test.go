package cache

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestIsOK(t *testing.T) {
	for status, want := range map[int]bool{
		199: false, 200: true, 204: true, 299: true, 304: false, 404: false, 503: false,
	} {
		if got := IsOK(status); got != want {
			t.Errorf("IsOK(%d) = %v, want %v", status, got, want)
		}
	}
}

func TestResponseToEntry(t *testing.T) {
	key, _ := NewRequestKey(http.MethodGet, "https://example.com/gallery/index.html")

	tests := []struct {
		name    string
		resp    *http.Response
		wantErr bool
	}{
		{
			name: "valid response with validators",
			resp: &http.Response{
				StatusCode: 200,
				Header: http.Header{
					"Last-Modified": []string{time.Now().Add(-1 * time.Hour).Format(http.TimeFormat)},
					"ETag":          []string{`"abc123"`},
					"Content-Type":  []string{"text/html"},
				},
				Body: io.NopCloser(bytes.NewReader([]byte(`<html>gallery</html>`))),
			},
			wantErr: false,
		},
		{
			name: "response without validators",
			resp: &http.Response{
				StatusCode: 200,
				Header: http.Header{
					"Content-Type": []string{"text/css"},
				},
				Body: io.NopCloser(bytes.NewReader([]byte(`body{}`))),
			},
			wantErr: false,
		},
		{
			name:    "nil response",
			resp:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := ResponseToEntry(key, tt.resp)
			if (err != nil) != tt.wantErr {
				t.Errorf("ResponseToEntry() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}

			// Verify body was read and restored
			body, _ := io.ReadAll(tt.resp.Body)
			if len(body) == 0 {
				t.Error("Response body was not restored")
			}
			if !bytes.Equal(body, entry.Data) {
				t.Errorf("Data = %q, restored body = %q", entry.Data, body)
			}

			if entry.StatusCode != tt.resp.StatusCode {
				t.Errorf("StatusCode = %v, want %v", entry.StatusCode, tt.resp.StatusCode)
			}
			if entry.ETag != tt.resp.Header.Get("ETag") {
				t.Errorf("ETag = %v, want %v", entry.ETag, tt.resp.Header.Get("ETag"))
			}
			if entry.URL != key.URL {
				t.Errorf("URL = %q, want %q", entry.URL, key.URL)
			}
			if entry.CachedAt.IsZero() {
				t.Error("CachedAt was not set")
			}
		})
	}
}

func TestEntryToResponse(t *testing.T) {
	entry := &CacheEntry{
		Data:       []byte("offline"),
		StatusCode: 200,
		Headers:    http.Header{"Content-Type": []string{"text/html"}},
	}

	resp := EntryToResponse(entry)
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if string(body) != "offline" {
		t.Errorf("body = %q", body)
	}
	if resp.Header.Get("Content-Type") != "text/html" {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("Content-Length") != "7" {
		t.Errorf("Content-Length = %q, want 7", resp.Header.Get("Content-Length"))
	}

	// The snapshot must not be mutated through the response.
	resp.Header.Set("X-Test", "1")
	if entry.Headers.Get("X-Test") != "" {
		t.Error("EntryToResponse must clone headers")
	}
}

func TestShouldMakeConditionalRequest(t *testing.T) {
	tests := []struct {
		name  string
		entry *CacheEntry
		want  bool
	}{
		{name: "nil entry", entry: nil, want: false},
		{name: "entry with ETag", entry: &CacheEntry{ETag: `"abc123"`}, want: true},
		{name: "entry with Last-Modified", entry: &CacheEntry{LastModified: time.Now()}, want: true},
		{name: "entry without validators", entry: &CacheEntry{Data: []byte("data")}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldMakeConditionalRequest(tt.entry); got != tt.want {
				t.Errorf("ShouldMakeConditionalRequest() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddConditionalHeaders(t *testing.T) {
	tests := []struct {
		name       string
		entry      *CacheEntry
		wantHeader string
		wantValue  string
	}{
		{
			name:       "add If-None-Match with ETag",
			entry:      &CacheEntry{ETag: `"abc123"`},
			wantHeader: "If-None-Match",
			wantValue:  `"abc123"`,
		},
		{
			name:       "add If-Modified-Since with Last-Modified",
			entry:      &CacheEntry{LastModified: time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)},
			wantHeader: "If-Modified-Since",
			wantValue:  "Sun, 01 Jan 2023 12:00:00 GMT",
		},
		{
			name: "prefer ETag over Last-Modified",
			entry: &CacheEntry{
				ETag:         `"abc123"`,
				LastModified: time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC),
			},
			wantHeader: "If-None-Match",
			wantValue:  `"abc123"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", "https://example.com", nil)
			AddConditionalHeaders(req, tt.entry)

			if got := req.Header.Get(tt.wantHeader); got != tt.wantValue {
				t.Errorf("Header %s = %v, want %v", tt.wantHeader, got, tt.wantValue)
			}
		})
	}
}

func TestAddConditionalHeaders_NilInputs(t *testing.T) {
	// Should not panic with nil inputs
	AddConditionalHeaders(nil, &CacheEntry{ETag: "test"})
	AddConditionalHeaders(&http.Request{}, nil)
}

func TestAddRevalidateHeaders(t *testing.T) {
	req, _ := http.NewRequest("GET", "https://example.com/index.html", nil)
	AddRevalidateHeaders(req)

	if req.Header.Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q", req.Header.Get("Cache-Control"))
	}
	if req.Header.Get("Pragma") != "no-cache" {
		t.Errorf("Pragma = %q", req.Header.Get("Pragma"))
	}
}
