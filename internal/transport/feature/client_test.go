package feature

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/v0idness/archipanion-ve/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClientWithBaseURL(srv.URL, srv.Client(), nil)
}

func TestExtract_Success(t *testing.T) {
	var gotData, gotPath, gotType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		_ = r.ParseForm()
		gotData = r.PostForm.Get("data")
		_, _ = w.Write([]byte("0.5, -1,2.25\n"))
	})

	vec, err := c.Extract(context.Background(), "/extract/clip_text", "data:text/plain;charset=utf-8;base64,aGk=")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.5 || vec[1] != -1 || vec[2] != 2.25 {
		t.Fatalf("unexpected vector %v", vec)
	}
	if gotPath != "/extract/clip_text" {
		t.Errorf("path = %q", gotPath)
	}
	if gotType != "application/x-www-form-urlencoded" {
		t.Errorf("content type = %q", gotType)
	}
	if gotData != "data:text/plain;charset=utf-8;base64,aGk=" {
		t.Errorf("data = %q", gotData)
	}
}

func TestExtract_NonSuccessYieldsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	vec, err := c.Extract(context.Background(), "/extract/clip_image", "data:image/png;base64,")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(vec) != 0 {
		t.Fatalf("expected empty vector, got %v", vec)
	}
}

func TestExtract_MalformedYieldsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not,a,vector"))
	})
	vec, err := c.Extract(context.Background(), "/x", "d")
	if err != nil || len(vec) != 0 {
		t.Fatalf("expected empty result, got %v, %v", vec, err)
	}
}

func TestExtract_CancelledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("1"))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Extract(ctx, "/x", "d"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestParseVector(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"1,2,3", 3, false},
		{"[0.1, 0.2]", 2, false},
		{"  ", 0, false},
		{"[]", 0, false},
		{"1,,2", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		vec, err := ParseVector(tt.in)
		if tt.wantErr {
			if !errors.Is(err, domain.ErrEmbeddingProviderError) {
				t.Errorf("ParseVector(%q): expected provider error, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || len(vec) != tt.want {
			t.Errorf("ParseVector(%q) = %v, %v; want %d elements", tt.in, vec, err, tt.want)
		}
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{})
	if c.baseURL != "http://localhost:8888" {
		t.Errorf("baseURL = %q", c.baseURL)
	}
	if c.limiter != nil {
		t.Error("expected no limiter by default")
	}
	if NewClient(Config{RequestsPerSecond: 5}).limiter == nil {
		t.Error("expected limiter when rate configured")
	}
}
