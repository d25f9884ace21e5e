package network

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("museum-edge/test"),
			expectError: false,
		},
		{
			name:        "missing user agent",
			config:      Config{Timeout: time.Second},
			expectError: true,
		},
		{
			name:        "zero timeout",
			config:      Config{UserAgent: "museum-edge/test"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)
			if tt.expectError {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client == nil {
				t.Fatal("Client is nil")
			}
		})
	}
}

func TestClient_Do_SetsUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client, err := New(DefaultConfig("museum-edge/1.0"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	resp, err := client.Do(WithPurpose(req, PurposeInstall))
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()

	if gotUA != "museum-edge/1.0" {
		t.Errorf("User-Agent = %q, want %q", gotUA, "museum-edge/1.0")
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("body = %q, want %q", body, "ok")
	}
}

func TestClient_Do_ReturnsErrorStatusWithoutError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := New(DefaultConfig("museum-edge/test"))
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do should not fail on HTTP 500: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", resp.StatusCode)
	}
}

func TestClient_Do_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, _ := New(DefaultConfig("museum-edge/test"))
	req, _ := http.NewRequest(http.MethodGet, url, nil)

	_, err := client.Do(req)
	if err == nil {
		t.Fatal("Expected error for closed server")
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected *FetchError, got %T", err)
	}
	if fe.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want %q", fe.ErrorClass, ErrorClassNetwork)
	}
	if !IsOffline(err) {
		t.Error("IsOffline should report true")
	}
}

func TestPurposeFrom_Default(t *testing.T) {
	if got := purposeFrom(context.Background()); got != PurposePage {
		t.Errorf("purposeFrom(empty) = %q, want %q", got, PurposePage)
	}
	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	if got := purposeFrom(WithPurpose(req, PurposeReplay).Context()); got != PurposeReplay {
		t.Errorf("purposeFrom = %q, want %q", got, PurposeReplay)
	}
}
