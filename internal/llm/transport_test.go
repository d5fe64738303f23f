package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStatusError(t *testing.T) {
	tests := []struct {
		code          int
		wantTemporary bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
		{http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			err := fmt.Errorf("batch 0-2: %w", &StatusError{StatusCode: tt.code, Body: "x"})
			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatal("StatusError not found in chain")
			}
			if statusErr.Temporary() != tt.wantTemporary {
				t.Errorf("Temporary() = %v, want %v", statusErr.Temporary(), tt.wantTemporary)
			}
			if IsPermanent(err) == tt.wantTemporary {
				t.Errorf("IsPermanent() = %v for status %d", IsPermanent(err), tt.code)
			}
		})
	}

	if IsPermanent(errors.New("connection refused")) {
		t.Error("transport errors must not be permanent")
	}
}

func TestDoJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/get":
			if r.Header.Get("Authorization") != "" || r.Header.Get("Content-Type") != "" {
				t.Errorf("unexpected headers on bodiless request: %v", r.Header)
			}
			_, _ = w.Write([]byte(`{"value":"ok"}`))
		case "/fail":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(strings.Repeat("x", maxErrorBody+100)))
		}
	}))
	defer server.Close()

	client := server.Client()
	var out struct {
		Value string `json:"value"`
	}
	if err := doJSON(context.Background(), client, http.MethodGet, server.URL+"/get", "", nil, &out); err != nil {
		t.Fatalf("doJSON() error = %v", err)
	}
	if out.Value != "ok" {
		t.Errorf("Value = %q, want ok", out.Value)
	}

	err := doJSON(context.Background(), client, http.MethodGet, server.URL+"/fail", "key", nil, &out)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("doJSON() error = %v, want StatusError", err)
	}
	if statusErr.StatusCode != http.StatusUnauthorized || len(statusErr.Body) != maxErrorBody {
		t.Errorf("StatusError = code %d, body %d bytes", statusErr.StatusCode, len(statusErr.Body))
	}
}
